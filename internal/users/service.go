package users

import (
	"context"
	"strconv"

	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/vesta-hotels/vesta/internal/authz"
	"github.com/vesta-hotels/vesta/internal/shared"
)

// RepositoryPort defines data access methods for user administration.
type RepositoryPort interface {
	CreateUser(ctx context.Context, u User) (User, error)
	CreateUserWithRole(ctx context.Context, u User, roleID, assignedBy int64) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context, organizationID *int64, limit, offset int) ([]User, error)
	AssignRole(ctx context.Context, userID, roleID, assignedBy int64) error
	RevokeRole(ctx context.Context, userID, roleID int64) error
	ListAssignments(ctx context.Context, userID int64) ([]Assignment, error)
	SetOverride(ctx context.Context, userID int64, ov authz.Override) error
	RemoveOverride(ctx context.Context, userID int64, key string) error
	ReassignTenant(ctx context.Context, userID int64, tenant authz.TenantContext) error
	SetLegacyRole(ctx context.Context, userID int64, role authz.LegacyRole) error
}

// CachePort is the slice of the permission cache the user store drives.
type CachePort interface {
	Get(ctx context.Context, userID int64) (authz.EffectiveSet, error)
	Invalidate(userID int64)
	IndexRole(roleID, userID int64)
	UnindexRole(roleID, userID int64)
}

// Refresher forces outstanding credentials for a user to re-authenticate.
type Refresher interface {
	ForceRefresh(ctx context.Context, userID int64) (int64, error)
}

// Service handles user administration. Every write that changes what a user
// can do invalidates their cached permission set before returning.
type Service struct {
	repo    RepositoryPort
	catalog *authz.Catalog
	cache   CachePort
	tokens  Refresher
	audit   shared.Recorder
	logger  *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, catalog *authz.Catalog, cache CachePort, tokens Refresher, audit shared.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, catalog: catalog, cache: cache, tokens: tokens, audit: audit, logger: logger}
}

// CreateUser registers an account, optionally with an initial role. The
// password is hashed here so callers never store plaintext.
func (s *Service) CreateUser(ctx context.Context, actorID int64, u User, password string, initialRoleID int64) (User, error) {
	if err := validateAncestry(u.Tenant()); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	u.PasswordHash = string(hash)
	created, err := s.repo.CreateUserWithRole(ctx, u, initialRoleID, actorID)
	if err != nil {
		return User{}, err
	}
	if initialRoleID > 0 {
		s.cache.IndexRole(initialRoleID, created.ID)
	}
	after := map[string]any{"email": created.Email}
	if initialRoleID > 0 {
		after["role_id"] = initialRoleID
	}
	s.recordAudit(ctx, actorID, "user.create", created.ID, nil, after)
	return created, nil
}

// GetUser fetches a user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// ListUsers returns an organization's accounts.
func (s *Service) ListUsers(ctx context.Context, organizationID *int64, page shared.Pagination) ([]User, error) {
	return s.repo.ListUsers(ctx, organizationID, page.Limit(), page.Offset())
}

// ListAssignments returns the user's custom-role grants.
func (s *Service) ListAssignments(ctx context.Context, userID int64) ([]Assignment, error) {
	return s.repo.ListAssignments(ctx, userID)
}

// AssignRole grants a custom role. The holder index is updated in the same
// operation so a later role-level invalidation reaches this user.
func (s *Service) AssignRole(ctx context.Context, actorID, userID, roleID int64) error {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.AssignRole(ctx, userID, roleID, actorID); err != nil {
		return err
	}
	s.cache.IndexRole(roleID, userID)
	s.cache.Invalidate(userID)
	s.recordAudit(ctx, actorID, "user.assign_role", userID, nil, map[string]any{"role_id": roleID})
	return nil
}

// RevokeRole removes a custom role. The revocation is visible to the next
// authorization check before this returns.
func (s *Service) RevokeRole(ctx context.Context, actorID, userID, roleID int64) error {
	if err := s.repo.RevokeRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.cache.UnindexRole(roleID, userID)
	s.cache.Invalidate(userID)
	s.recordAudit(ctx, actorID, "user.revoke_role", userID, map[string]any{"role_id": roleID}, nil)
	return nil
}

// SetOverride records a per-user grant or revoke for a known permission.
func (s *Service) SetOverride(ctx context.Context, actorID, userID int64, key string, granted bool) error {
	if _, err := s.catalog.Lookup(key); err != nil {
		return err
	}
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return err
	}
	ov := authz.Override{Key: key, Granted: granted, GrantedBy: actorID}
	if err := s.repo.SetOverride(ctx, userID, ov); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	s.recordAudit(ctx, actorID, "user.set_override", userID, nil,
		map[string]any{"permission": key, "granted": granted})
	return nil
}

// RemoveOverride deletes a per-user override.
func (s *Service) RemoveOverride(ctx context.Context, actorID, userID int64, key string) error {
	if err := s.repo.RemoveOverride(ctx, userID, key); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	s.recordAudit(ctx, actorID, "user.remove_override", userID,
		map[string]any{"permission": key}, nil)
	return nil
}

// ReassignTenant moves the user within the tenant hierarchy. Identifiers
// must respect ancestry: a department implies a property implies an
// organization.
func (s *Service) ReassignTenant(ctx context.Context, actorID, userID int64, tenant authz.TenantContext) error {
	if err := validateAncestry(tenant); err != nil {
		return err
	}
	before, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.repo.ReassignTenant(ctx, userID, tenant); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	s.recordAudit(ctx, actorID, "user.reassign_tenant", userID,
		tenantState(before.Tenant()), tenantState(tenant))
	return nil
}

// SetLegacyRole changes the coarse fallback role on the account.
func (s *Service) SetLegacyRole(ctx context.Context, actorID, userID int64, role authz.LegacyRole) error {
	before, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.repo.SetLegacyRole(ctx, userID, role); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	s.recordAudit(ctx, actorID, "user.set_legacy_role", userID,
		map[string]any{"legacy_role": string(before.LegacyRole)},
		map[string]any{"legacy_role": string(role)})
	return nil
}

// EffectivePermissions resolves the user's current permission set through
// the cache.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	set, err := s.cache.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return set.Keys(), nil
}

// ForceRefresh invalidates the user's outstanding tokens and cached set.
func (s *Service) ForceRefresh(ctx context.Context, actorID, userID int64) error {
	ver, err := s.tokens.ForceRefresh(ctx, userID)
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "user.force_refresh", userID, nil,
		map[string]any{"permissions_version": ver})
	return nil
}

func validateAncestry(t authz.TenantContext) error {
	if t.DepartmentID != nil && t.PropertyID == nil {
		return shared.ErrTenantAncestry
	}
	if t.PropertyID != nil && t.OrganizationID == nil {
		return shared.ErrTenantAncestry
	}
	return nil
}

func tenantState(t authz.TenantContext) map[string]any {
	out := map[string]any{}
	if t.OrganizationID != nil {
		out["organization_id"] = *t.OrganizationID
	}
	if t.PropertyID != nil {
		out["property_id"] = *t.PropertyID
	}
	if t.DepartmentID != nil {
		out["department_id"] = *t.DepartmentID
	}
	return out
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, userID int64, before, after map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Before:   before,
		After:    after,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Error("record user audit", slog.String("action", action), slog.Any("error", err))
	}
}
