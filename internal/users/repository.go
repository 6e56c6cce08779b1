package users

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vesta-hotels/vesta/internal/authz"
	"github.com/vesta-hotels/vesta/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for users, their role
// assignments, overrides and tenant placement. It is also the snapshot
// source the permission cache loads from.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, password_hash, legacy_role, organization_id, property_id, department_id, is_platform_admin, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.LegacyRole,
		&u.OrganizationID, &u.PropertyID, &u.DepartmentID, &u.PlatformAdmin,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// CreateUser inserts a new account.
func (r *Repository) CreateUser(ctx context.Context, u User) (User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, password_hash, legacy_role, organization_id, property_id, department_id, is_platform_admin, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		 RETURNING `+userColumns,
		u.Email, u.Name, u.PasswordHash, u.LegacyRole, u.OrganizationID, u.PropertyID, u.DepartmentID, u.PlatformAdmin)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicateEmail
		}
		return User{}, err
	}
	return created, nil
}

// CreateUserWithRole inserts a new account and its initial role assignment
// in one transaction, so a failed assignment never leaves a role-less
// account behind.
func (r *Repository) CreateUserWithRole(ctx context.Context, u User, roleID, assignedBy int64) (User, error) {
	var created User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO users (email, name, password_hash, legacy_role, organization_id, property_id, department_id, is_platform_admin, is_active)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
			 RETURNING `+userColumns,
			u.Email, u.Name, u.PasswordHash, u.LegacyRole, u.OrganizationID, u.PropertyID, u.DepartmentID, u.PlatformAdmin)
		var err error
		created, err = scanUser(row)
		if err != nil {
			return err
		}
		if roleID > 0 {
			_, err = tx.Exec(ctx,
				`INSERT INTO user_role_assignments (user_id, role_id, assigned_by) VALUES ($1, $2, $3)`,
				created.ID, roleID, assignedBy)
		}
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicateEmail
		}
		return User{}, err
	}
	return created, nil
}

// GetUser fetches an account by id.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail fetches an account by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// ListUsers returns active accounts in an organization.
func (r *Repository) ListUsers(ctx context.Context, organizationID *int64, limit, offset int) ([]User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE organization_id IS NOT DISTINCT FROM $1 AND is_active
		 ORDER BY name LIMIT $2 OFFSET $3`, organizationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// AssignRole records a custom-role grant.
func (r *Repository) AssignRole(ctx context.Context, userID, roleID, assignedBy int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_role_assignments (user_id, role_id, assigned_by, assigned_at)
		 VALUES ($1, $2, $3, NOW())`, userID, roleID, assignedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyAssigned
		}
		return err
	}
	return nil
}

// RevokeRole removes a custom-role grant.
func (r *Repository) RevokeRole(ctx context.Context, userID, roleID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_role_assignments WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAssignments returns the user's custom-role grants with role names.
func (r *Repository) ListAssignments(ctx context.Context, userID int64) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.role_id, r.name, a.assigned_by, a.assigned_at
		 FROM user_role_assignments a JOIN roles r ON r.id = a.role_id
		 WHERE a.user_id = $1 ORDER BY a.assigned_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.RoleID, &a.RoleName, &a.AssignedBy, &a.AssignedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetOverride upserts a per-user grant or revoke.
func (r *Repository) SetOverride(ctx context.Context, userID int64, ov authz.Override) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_overrides (user_id, permission_key, granted, granted_by, granted_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (user_id, permission_key)
		 DO UPDATE SET granted = EXCLUDED.granted, granted_by = EXCLUDED.granted_by, granted_at = NOW()`,
		userID, ov.Key, ov.Granted, ov.GrantedBy)
	return err
}

// RemoveOverride deletes a per-user override.
func (r *Repository) RemoveOverride(ctx context.Context, userID int64, key string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_overrides WHERE user_id = $1 AND permission_key = $2`, userID, key)
	return err
}

// ReassignTenant moves the user within the tenant hierarchy.
func (r *Repository) ReassignTenant(ctx context.Context, userID int64, tenant authz.TenantContext) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET organization_id = $2, property_id = $3, department_id = $4, updated_at = NOW()
		 WHERE id = $1`, userID, tenant.OrganizationID, tenant.PropertyID, tenant.DepartmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLegacyRole updates the coarse fallback role on the account.
func (r *Repository) SetLegacyRole(ctx context.Context, userID int64, role authz.LegacyRole) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET legacy_role = $2, updated_at = NOW() WHERE id = $1`, userID, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UserSnapshot assembles the resolver inputs for one user: identity, tenant
// placement, assignments, overrides, plus every role the resolution can
// reference (assigned roles and all system roles for the legacy mapping).
func (r *Repository) UserSnapshot(ctx context.Context, userID int64) (authz.UserContext, []authz.Role, error) {
	user, err := r.ActorContext(ctx, userID)
	if err != nil {
		return authz.UserContext{}, nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, name, is_system_role, organization_id, property_id, priority, is_active, created_at
		 FROM roles
		 WHERE is_system_role OR id IN (SELECT role_id FROM user_role_assignments WHERE user_id = $1)`, userID)
	if err != nil {
		return authz.UserContext{}, nil, err
	}
	defer rows.Close()
	var roles []authz.Role
	for rows.Next() {
		var role authz.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.IsSystemRole, &role.OrganizationID,
			&role.PropertyID, &role.Priority, &role.IsActive, &role.CreatedAt); err != nil {
			return authz.UserContext{}, nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return authz.UserContext{}, nil, err
	}
	for i := range roles {
		grants, err := r.roleGrants(ctx, roles[i].ID)
		if err != nil {
			return authz.UserContext{}, nil, err
		}
		roles[i].Grants = grants
	}
	return user, roles, nil
}

// ActorContext builds the user context without role records, for request
// middleware that only needs identity and tenant placement.
func (r *Repository) ActorContext(ctx context.Context, userID int64) (authz.UserContext, error) {
	u, err := r.GetUser(ctx, userID)
	if err != nil {
		return authz.UserContext{}, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT role_id, assigned_by, assigned_at FROM user_role_assignments WHERE user_id = $1`, userID)
	if err != nil {
		return authz.UserContext{}, err
	}
	defer rows.Close()
	var assignments []authz.RoleAssignment
	for rows.Next() {
		var a authz.RoleAssignment
		if err := rows.Scan(&a.RoleID, &a.AssignedBy, &a.AssignedAt); err != nil {
			return authz.UserContext{}, err
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return authz.UserContext{}, err
	}

	overrides, err := r.listOverrides(ctx, userID)
	if err != nil {
		return authz.UserContext{}, err
	}

	return authz.UserContext{
		UserID:        u.ID,
		LegacyRole:    u.LegacyRole,
		Assignments:   assignments,
		Tenant:        u.Tenant(),
		Overrides:     overrides,
		PlatformAdmin: u.PlatformAdmin,
	}, nil
}

func (r *Repository) listOverrides(ctx context.Context, userID int64) ([]authz.Override, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT permission_key, granted, granted_by, granted_at
		 FROM user_overrides WHERE user_id = $1 ORDER BY granted_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []authz.Override
	for rows.Next() {
		var ov authz.Override
		if err := rows.Scan(&ov.Key, &ov.Granted, &ov.GrantedBy, &ov.GrantedAt); err != nil {
			return nil, err
		}
		out = append(out, ov)
	}
	return out, rows.Err()
}

func (r *Repository) roleGrants(ctx context.Context, roleID int64) ([]authz.Grant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT permission_key, granted FROM role_grants WHERE role_id = $1 ORDER BY position`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []authz.Grant
	for rows.Next() {
		var g authz.Grant
		if err := rows.Scan(&g.Key, &g.Granted); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
