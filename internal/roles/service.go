package roles

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"log/slog"

	"github.com/vesta-hotels/vesta/internal/authz"
	"github.com/vesta-hotels/vesta/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	CreateRole(ctx context.Context, role Role) (Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	ListRoles(ctx context.Context, organizationID *int64) ([]Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string, priority int) (Role, error)
	Deactivate(ctx context.Context, id int64) error
	SetGrant(ctx context.Context, roleID int64, grant authz.Grant) error
	RemoveGrant(ctx context.Context, roleID int64, key string) error
	ListHolders(ctx context.Context, roleID int64) ([]int64, error)
	AllHolders(ctx context.Context) (map[int64][]int64, error)
}

// Invalidation is the slice of the permission cache the role store signals.
type Invalidation interface {
	InvalidateByRole(roleID int64)
}

// Service handles role administration. Every successful write signals cache
// invalidation for the role's holders before returning, so a privilege
// decrease is never served from a stale entry.
type Service struct {
	repo    RepositoryPort
	catalog *authz.Catalog
	cache   Invalidation
	audit   shared.Recorder
	logger  *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, catalog *authz.Catalog, cache Invalidation, audit shared.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, catalog: catalog, cache: cache, audit: audit, logger: logger}
}

// CreateRole creates a tenant-defined custom role.
func (s *Service) CreateRole(ctx context.Context, actorID int64, role Role) (Role, error) {
	role.Name = strings.TrimSpace(role.Name)
	if role.Name == "" {
		return Role{}, fmt.Errorf("roles: role name required")
	}
	role.IsSystemRole = false
	created, err := s.repo.CreateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, actorID, "role.create", created.ID, nil, roleState(created))
	return created, nil
}

// GetRole fetches a role with its grants.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// ListRoles returns roles visible to the organization.
func (s *Service) ListRoles(ctx context.Context, organizationID *int64) ([]Role, error) {
	return s.repo.ListRoles(ctx, organizationID)
}

// UpdateRole changes mutable role attributes and invalidates holders, since
// a priority change can flip conflict resolution.
func (s *Service) UpdateRole(ctx context.Context, actorID, id int64, name, description string, priority int) (Role, error) {
	before, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if before.IsSystemRole {
		return Role{}, ErrSystemRole
	}
	updated, err := s.repo.UpdateRole(ctx, id, strings.TrimSpace(name), strings.TrimSpace(description), priority)
	if err != nil {
		return Role{}, err
	}
	s.cache.InvalidateByRole(id)
	s.recordAudit(ctx, actorID, "role.update", id, roleState(before), roleState(updated))
	return updated, nil
}

// SetPermission attaches or flips one (permission, granted) entry on a
// role. Idempotent: re-applying the same grant is a no-op at the store.
func (s *Service) SetPermission(ctx context.Context, actorID, roleID int64, key string, granted bool) error {
	if _, err := s.catalog.Lookup(key); err != nil {
		return err
	}
	before, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if before.IsSystemRole {
		return ErrSystemRole
	}
	if err := s.repo.SetGrant(ctx, roleID, authz.Grant{Key: key, Granted: granted}); err != nil {
		return err
	}
	if !hasGrant(before.Grants, key) {
		if err := s.catalog.Retain(key); err != nil {
			return err
		}
	}
	s.cache.InvalidateByRole(roleID)
	s.recordAudit(ctx, actorID, "role.set_permission", roleID,
		map[string]any{"permission": key, "granted": grantValue(before.Grants, key)},
		map[string]any{"permission": key, "granted": granted})
	return nil
}

// RemovePermission detaches a grant entry from a role.
func (s *Service) RemovePermission(ctx context.Context, actorID, roleID int64, key string) error {
	before, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if before.IsSystemRole {
		return ErrSystemRole
	}
	if !hasGrant(before.Grants, key) {
		return nil
	}
	if err := s.repo.RemoveGrant(ctx, roleID, key); err != nil {
		return err
	}
	s.catalog.Release(key)
	s.cache.InvalidateByRole(roleID)
	s.recordAudit(ctx, actorID, "role.remove_permission", roleID,
		map[string]any{"permission": key, "granted": grantValue(before.Grants, key)}, nil)
	return nil
}

// Deactivate soft-deletes a role. The role keeps its assignments for audit
// but stops contributing to resolution.
func (s *Service) Deactivate(ctx context.Context, actorID, roleID int64) error {
	before, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if before.IsSystemRole {
		return ErrSystemRole
	}
	if err := s.repo.Deactivate(ctx, roleID); err != nil {
		return err
	}
	s.cache.InvalidateByRole(roleID)
	s.recordAudit(ctx, actorID, "role.deactivate", roleID, roleState(before), nil)
	return nil
}

// SeedCatalogRefs walks every role's grants at bootstrap and retains their
// catalog references so in-use accounting survives restarts.
func (s *Service) SeedCatalogRefs(ctx context.Context) error {
	all, err := s.repo.ListRoles(ctx, nil)
	if err != nil {
		return err
	}
	for _, role := range all {
		full, err := s.repo.GetRole(ctx, role.ID)
		if err != nil {
			return err
		}
		for _, g := range full.Grants {
			if err := s.catalog.Retain(g.Key); err != nil {
				s.logger.Warn("role grant references unregistered permission",
					slog.Int64("role_id", role.ID), slog.String("permission", g.Key))
			}
		}
	}
	return nil
}

// HolderIndex builds the role→users map for the cache's bootstrap rebuild.
func (s *Service) HolderIndex(ctx context.Context) (map[int64][]int64, error) {
	return s.repo.AllHolders(ctx)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, roleID int64, before, after map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "role",
		EntityID: strconv.FormatInt(roleID, 10),
		Before:   before,
		After:    after,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Error("record role audit", slog.String("action", action), slog.Any("error", err))
	}
}

func roleState(role Role) map[string]any {
	return map[string]any{
		"name":        role.Name,
		"priority":    role.Priority,
		"is_active":   role.IsActive,
		"grant_count": len(role.Grants),
	}
}

func hasGrant(grants []authz.Grant, key string) bool {
	for _, g := range grants {
		if g.Key == key {
			return true
		}
	}
	return false
}

func grantValue(grants []authz.Grant, key string) any {
	for _, g := range grants {
		if g.Key == key {
			return g.Granted
		}
	}
	return nil
}
