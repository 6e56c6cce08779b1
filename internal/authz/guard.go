package authz

import (
	"context"
	"fmt"
	"log/slog"
)

// Guard is the single enforcement chokepoint. Every protected operation
// resolves the actor's effective set through the cache, checks membership,
// then validates tenant scope against the concrete target. No other code
// path may bypass it to reach protected resources.
type Guard struct {
	catalog *Catalog
	cache   *Cache
	logger  *slog.Logger
}

// NewGuard wires the guard over an explicit catalog and cache instance.
func NewGuard(catalog *Catalog, cache *Cache, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{catalog: catalog, cache: cache, logger: logger}
}

// Authorize decides whether the actor may perform the operation named by the
// permission key against the target.
//
// An unknown permission key is a server misconfiguration: the decision
// denies and a non-nil error surfaces it. A snapshot fetch failure also
// returns an error; the decision fails closed rather than open.
func (g *Guard) Authorize(ctx context.Context, actor UserContext, key string, target Target) (Decision, error) {
	perm, err := g.catalog.Lookup(key)
	if err != nil {
		g.logger.Error("authorize against unregistered permission",
			slog.Int64("actor_id", actor.UserID),
			slog.String("permission", key))
		return Deny(DenyUnknownPermission), err
	}

	set, err := g.cache.Get(ctx, actor.UserID)
	if err != nil {
		g.logger.Error("effective set unavailable, denying",
			slog.Int64("actor_id", actor.UserID),
			slog.String("permission", key),
			slog.Any("error", err))
		return Deny(DenyPermissionNotGranted), fmt.Errorf("authz: resolve actor %d: %w", actor.UserID, err)
	}

	if !set.Has(key) {
		g.logger.Debug("permission not granted",
			slog.Int64("actor_id", actor.UserID),
			slog.String("permission", key))
		return Deny(DenyPermissionNotGranted), nil
	}

	if !Permitted(perm, actor, target) {
		g.logger.Info("scope mismatch",
			slog.Int64("actor_id", actor.UserID),
			slog.String("permission", key),
			slog.Any("target_owner", target.OwnerID))
		return Deny(DenyScopeMismatch), nil
	}

	return Allow(), nil
}

// Effective exposes the actor's resolved permission set, used by the UI to
// decide what to render and by diagnostics.
func (g *Guard) Effective(ctx context.Context, userID int64) (EffectiveSet, error) {
	return g.cache.Get(ctx, userID)
}
