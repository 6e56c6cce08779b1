package authz

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ScopeLevel is the tenant-hierarchy level at which a permission's reach is
// evaluated. Levels are totally ordered from narrowest to widest. A wider
// scope subsumes narrower tenant reach but never implies that narrower
// permissions are granted; scope is a reach qualifier, not a hierarchy of
// permissions.
type ScopeLevel int

const (
	ScopeOwn ScopeLevel = iota
	ScopeDepartment
	ScopeProperty
	ScopeOrganization
	ScopePlatform
)

var scopeNames = map[ScopeLevel]string{
	ScopeOwn:          "own",
	ScopeDepartment:   "department",
	ScopeProperty:     "property",
	ScopeOrganization: "organization",
	ScopePlatform:     "platform",
}

// String returns the wire name of the scope level.
func (s ScopeLevel) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// ParseScope maps a wire name back to its ScopeLevel.
func ParseScope(name string) (ScopeLevel, error) {
	for level, n := range scopeNames {
		if n == name {
			return level, nil
		}
	}
	return 0, fmt.Errorf("authz: unknown scope %q", name)
}

// Permission is uniquely identified by its (resource, action, scope) triple
// and immutable once registered in the catalog.
type Permission struct {
	ID       int32
	Resource string
	Action   string
	Scope    ScopeLevel
}

// Key renders the canonical "resource.action.scope" form.
func (p Permission) Key() string {
	return p.Resource + "." + p.Action + "." + p.Scope.String()
}

// ParseKey splits a canonical permission key into its triple.
func ParseKey(key string) (resource, action string, scope ScopeLevel, err error) {
	parts := strings.Split(key, ".")
	if len(parts) != 3 {
		return "", "", 0, fmt.Errorf("authz: malformed permission key %q", key)
	}
	scope, err = ParseScope(parts[2])
	if err != nil {
		return "", "", 0, err
	}
	return parts[0], parts[1], scope, nil
}

// Grant pairs a permission key with its granted flag inside a role. A role
// may explicitly deny a permission to carve out an exception.
type Grant struct {
	Key     string
	Granted bool
}

// Role holds an ordered collection of grants plus the metadata the resolver
// needs for precedence. Roles are soft-deactivated, never hard-deleted while
// referenced.
type Role struct {
	ID             int64
	Name           string
	IsSystemRole   bool
	OrganizationID *int64
	PropertyID     *int64
	Priority       int
	IsActive       bool
	CreatedAt      time.Time
	Grants         []Grant
}

// LegacyRole is the coarse fallback role kept for accounts predating custom
// roles. Each variant maps to a seeded system role so both role systems
// resolve through the same merge path.
type LegacyRole string

const (
	LegacyNone       LegacyRole = ""
	LegacyStaff      LegacyRole = "staff"
	LegacyManager    LegacyRole = "manager"
	LegacyOrgAdmin   LegacyRole = "org_admin"
	LegacySuperAdmin LegacyRole = "super_admin"
)

// RoleAssignment records an explicit custom-role grant to a user.
type RoleAssignment struct {
	RoleID     int64
	AssignedBy int64
	AssignedAt time.Time
}

// Override is a per-user grant or revoke that takes precedence over any
// role-derived value for the same permission key.
type Override struct {
	Key       string
	Granted   bool
	GrantedBy int64
	GrantedAt time.Time
}

// TenantContext carries the tenant identifiers of an actor or a target
// resource. It is always passed explicitly; nothing reads tenant identity
// out of ambient request state.
type TenantContext struct {
	OrganizationID *int64
	PropertyID     *int64
	DepartmentID   *int64
}

// At returns the tenant identifier for the given scope level, or nil when
// the level has no tenant identifier (own, platform).
func (t TenantContext) At(level ScopeLevel) *int64 {
	switch level {
	case ScopeDepartment:
		return t.DepartmentID
	case ScopeProperty:
		return t.PropertyID
	case ScopeOrganization:
		return t.OrganizationID
	default:
		return nil
	}
}

// Satisfies reports whether the actor's own tenant identifiers can carry a
// grant at the given scope. Used to drop self-serving overrides the user's
// tenant context cannot back.
func (t TenantContext) Satisfies(level ScopeLevel) bool {
	switch level {
	case ScopeOwn:
		return true
	case ScopeDepartment, ScopeProperty, ScopeOrganization:
		return t.At(level) != nil
	default:
		return false
	}
}

// UserContext is the snapshot of a user's identity the resolver operates on.
// All data fetches happen before resolution; the resolver itself performs no
// I/O.
type UserContext struct {
	UserID        int64
	LegacyRole    LegacyRole
	Assignments   []RoleAssignment
	Tenant        TenantContext
	Overrides     []Override
	PlatformAdmin bool
}

// RoleIDs lists every role id the user holds, legacy mapping included.
func (u UserContext) RoleIDs(legacy map[LegacyRole]int64) []int64 {
	ids := make([]int64, 0, len(u.Assignments)+1)
	if u.LegacyRole != LegacyNone {
		if id, ok := legacy[u.LegacyRole]; ok {
			ids = append(ids, id)
		}
	}
	for _, a := range u.Assignments {
		ids = append(ids, a.RoleID)
	}
	return ids
}

// EffectiveSet is the resolved permission set for one user, tagged with the
// tenant identifiers used to compute it and a per-user generation stamp for
// cache correctness.
type EffectiveSet struct {
	UserID     int64
	Tenant     TenantContext
	Generation uint64
	ResolvedAt time.Time
	keys       map[string]struct{}
}

// NewEffectiveSet builds a set from resolved permission keys.
func NewEffectiveSet(userID int64, tenant TenantContext, keys map[string]struct{}) EffectiveSet {
	return EffectiveSet{UserID: userID, Tenant: tenant, ResolvedAt: time.Now().UTC(), keys: keys}
}

// Has reports membership of a permission key.
func (s EffectiveSet) Has(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of granted permissions.
func (s EffectiveSet) Len() int { return len(s.keys) }

// Keys returns the granted permission keys in sorted order.
func (s EffectiveSet) Keys() []string {
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Target identifies the resource an action is attempted against: its owning
// user and its tenant identifiers, extracted by the caller from the resource
// being acted upon.
type Target struct {
	OwnerID int64
	Tenant  TenantContext
}

// SelfTarget builds a target owned by the actor within their own tenant.
func SelfTarget(actor UserContext) Target {
	return Target{OwnerID: actor.UserID, Tenant: actor.Tenant}
}

// DenyReason explains a denial from the guard.
type DenyReason string

const (
	DenyPermissionNotGranted DenyReason = "permission_not_granted"
	DenyScopeMismatch        DenyReason = "scope_mismatch"
	DenyUnknownPermission    DenyReason = "unknown_permission"
)

// Decision is the guard's verdict for one authorization check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Allow is the positive decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny builds a negative decision with the given reason.
func Deny(reason DenyReason) Decision { return Decision{Reason: reason} }
