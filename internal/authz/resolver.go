package authz

import (
	"errors"
	"log/slog"
	"sort"
)

// TiePolicy picks the winner when two roles of equal priority carry opposite
// grants for the same permission key. The default favours the earlier
// created role; this is deliberate policy, selectable at construction, not
// hard-coded business logic.
type TiePolicy int

const (
	TieEarliestRoleWins TiePolicy = iota
	TieLatestRoleWins
)

// Resolver computes a user's effective permission set from an in-memory
// snapshot of role records. It is a pure function of its inputs: no I/O, no
// side effects beyond logging, deterministic given identical snapshots.
type Resolver struct {
	catalog *Catalog
	legacy  map[LegacyRole]int64
	tie     TiePolicy
	logger  *slog.Logger
}

// NewResolver builds a resolver. legacy maps each legacy role variant to its
// seeded system role id so both role systems merge through the same path.
func NewResolver(catalog *Catalog, legacy map[LegacyRole]int64, tie TiePolicy, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{catalog: catalog, legacy: legacy, tie: tie, logger: logger}
}

type grantState struct {
	granted  bool
	priority int
	roleID   int64
}

// Resolve merges role grants and direct overrides into the user's effective
// permission set.
//
// Precedence, lowest to highest: roles in ascending priority order (a later
// applied role overwrites earlier values for the same key), then direct
// overrides unconditionally. Inactive roles contribute nothing. An empty
// role list with no overrides yields the empty set: deny by default.
func (r *Resolver) Resolve(user UserContext, roles []Role) EffectiveSet {
	held := r.heldRoles(user, roles)

	sort.SliceStable(held, func(i, j int) bool {
		if held[i].Priority != held[j].Priority {
			return held[i].Priority < held[j].Priority
		}
		// Equal priority: the winner must be applied last.
		if r.tie == TieEarliestRoleWins {
			if !held[i].CreatedAt.Equal(held[j].CreatedAt) {
				return held[i].CreatedAt.After(held[j].CreatedAt)
			}
			return held[i].ID > held[j].ID
		}
		if !held[i].CreatedAt.Equal(held[j].CreatedAt) {
			return held[i].CreatedAt.Before(held[j].CreatedAt)
		}
		return held[i].ID < held[j].ID
	})

	state := make(map[string]grantState)
	for _, role := range held {
		for _, g := range role.Grants {
			if prev, ok := state[g.Key]; ok && prev.priority == role.Priority && prev.granted != g.Granted {
				if prev.roleID == role.ID {
					// One role listing opposite values for the same key;
					// the last entry in grant order applies.
					r.logger.Warn("potential misconfiguration: role carries conflicting entries for one permission",
						slog.String("permission", g.Key),
						slog.Int64("role", role.ID))
				} else {
					r.logger.Warn("potential misconfiguration: equal-priority roles disagree",
						slog.String("permission", g.Key),
						slog.Int64("role_a", prev.roleID),
						slog.Int64("role_b", role.ID),
						slog.Int("priority", role.Priority))
				}
			}
			state[g.Key] = grantState{granted: g.Granted, priority: role.Priority, roleID: role.ID}
		}
	}

	for _, o := range user.Overrides {
		perm, err := r.catalog.Lookup(o.Key)
		if err != nil {
			r.logger.Warn("override references unknown permission",
				slog.Int64("user_id", user.UserID),
				slog.String("permission", o.Key))
			continue
		}
		if o.Granted && !r.overrideInReach(user, perm.Scope) {
			r.logger.Warn("override scope out of reach for user tenant context",
				slog.Int64("user_id", user.UserID),
				slog.String("permission", o.Key),
				slog.String("scope", perm.Scope.String()))
			continue
		}
		state[o.Key] = grantState{granted: o.Granted, roleID: -1}
	}

	keys := make(map[string]struct{}, len(state))
	for key, st := range state {
		if st.granted {
			keys[key] = struct{}{}
		}
	}
	return NewEffectiveSet(user.UserID, user.Tenant, keys)
}

// heldRoles materializes the active roles the user holds, legacy role
// included, skipping deactivated or missing records.
func (r *Resolver) heldRoles(user UserContext, roles []Role) []Role {
	byID := make(map[int64]Role, len(roles))
	for _, role := range roles {
		byID[role.ID] = role
	}
	held := make([]Role, 0, len(user.Assignments)+1)
	seen := make(map[int64]struct{})
	for _, id := range user.RoleIDs(r.legacy) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		role, ok := byID[id]
		if !ok || !role.IsActive {
			continue
		}
		held = append(held, role)
	}
	return held
}

// overrideInReach reports whether a self-serving grant at the given scope is
// backed by the user's own tenant identifiers. Platform admins bypass the
// check.
func (r *Resolver) overrideInReach(user UserContext, scope ScopeLevel) bool {
	if user.PlatformAdmin {
		return true
	}
	return user.Tenant.Satisfies(scope)
}

// IsUnknownPermission reports whether err stems from a missing catalog entry.
func IsUnknownPermission(err error) bool {
	return errors.Is(err, ErrUnknownPermission)
}
