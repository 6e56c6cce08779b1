package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vesta-hotels/vesta/internal/authz"
)

// Repository provides PostgreSQL backed persistence for roles and their
// permission grants.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, description, is_system_role, organization_id, property_id, priority, is_active, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystemRole,
		&role.OrganizationID, &role.PropertyID, &role.Priority, &role.IsActive,
		&role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrNotFound
	}
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description, is_system_role, organization_id, property_id, priority, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		 RETURNING `+roleColumns,
		role.Name, role.Description, role.IsSystemRole, role.OrganizationID, role.PropertyID, role.Priority)
	created, err := scanRole(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Role{}, ErrDuplicateName
		}
		return Role{}, err
	}
	return created, nil
}

// GetRole fetches a role with its ordered grants.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		return Role{}, err
	}
	grants, err := r.listGrants(ctx, id)
	if err != nil {
		return Role{}, err
	}
	role.Grants = grants
	return role, nil
}

// ListRoles returns the roles visible to an organization (system roles
// included).
func (r *Repository) ListRoles(ctx context.Context, organizationID *int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+roleColumns+` FROM roles
		 WHERE is_system_role OR organization_id IS NOT DISTINCT FROM $1
		 ORDER BY priority, created_at`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// UpdateRole changes name, description and priority.
func (r *Repository) UpdateRole(ctx context.Context, id int64, name, description string, priority int) (Role, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, priority = $4, updated_at = NOW()
		 WHERE id = $1 RETURNING `+roleColumns,
		id, name, description, priority)
	return scanRole(row)
}

// Deactivate soft-deletes a role. Assignments stay for audit; the role
// stops contributing to resolution.
func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE roles SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetGrant upserts one (permission, granted) entry on a role. Idempotent.
// The user last-modified touch for holders rides on the cache invalidation
// signalled by the service.
func (r *Repository) SetGrant(ctx context.Context, roleID int64, grant authz.Grant) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO role_grants (role_id, permission_key, granted, position)
		 VALUES ($1, $2, $3, COALESCE((SELECT MAX(position) + 1 FROM role_grants WHERE role_id = $1), 0))
		 ON CONFLICT (role_id, permission_key) DO UPDATE SET granted = EXCLUDED.granted`,
		roleID, grant.Key, grant.Granted)
	return err
}

// RemoveGrant deletes one grant entry from a role.
func (r *Repository) RemoveGrant(ctx context.Context, roleID int64, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM role_grants WHERE role_id = $1 AND permission_key = $2`, roleID, key)
	return err
}

func (r *Repository) listGrants(ctx context.Context, roleID int64) ([]authz.Grant, error) {
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

// ListHolders returns the ids of every user currently assigned the role,
// backing the role→users invalidation index.
func (r *Repository) ListHolders(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM user_role_assignments WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AllHolders scans the full assignment table for the bootstrap index
// rebuild.
func (r *Repository) AllHolders(ctx context.Context) (map[int64][]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_id, user_id FROM user_role_assignments`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	holders := make(map[int64][]int64)
	for rows.Next() {
		var roleID, userID int64
		if err := rows.Scan(&roleID, &userID); err != nil {
			return nil, err
		}
		holders[roleID] = append(holders[roleID], userID)
	}
	return holders, rows.Err()
}

// LegacyRoleMap loads the mapping from coarse fallback roles to the system
// roles that carry their grants.
func (r *Repository) LegacyRoleMap(ctx context.Context) (map[authz.LegacyRole]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT legacy_role, role_id FROM legacy_role_map`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	mapping := make(map[authz.LegacyRole]int64)
	for rows.Next() {
		var legacy string
		var roleID int64
		if err := rows.Scan(&legacy, &roleID); err != nil {
			return nil, err
		}
		mapping[authz.LegacyRole(legacy)] = roleID
	}
	return mapping, rows.Err()
}
