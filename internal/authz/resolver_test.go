package authz

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"log/slog"
)

func ptr(v int64) *int64 { return &v }

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := NewCatalog()
	c.MustRegisterKeys(
		"reservation.view.property",
		"reservation.manage.property",
		"document.read.own",
		"document.read.department",
		"payroll.view.organization",
		"user.read.platform",
	)
	return c
}

func newTestResolver(t *testing.T, tie TiePolicy) *Resolver {
	t.Helper()
	return NewResolver(testCatalog(t), map[LegacyRole]int64{LegacyStaff: 1}, tie, nil)
}

func TestResolveDenyByDefault(t *testing.T) {
	r := newTestResolver(t, TieEarliestRoleWins)
	set := r.Resolve(UserContext{UserID: 7}, nil)
	if set.Len() != 0 {
		t.Fatalf("expected empty set, got %v", set.Keys())
	}
}

func TestResolveDeterminism(t *testing.T) {
	r := newTestResolver(t, TieEarliestRoleWins)
	user := UserContext{
		UserID:      7,
		Tenant:      TenantContext{OrganizationID: ptr(1), PropertyID: ptr(2)},
		Assignments: []RoleAssignment{{RoleID: 10}, {RoleID: 11}},
		Overrides:   []Override{{Key: "reservation.manage.property", Granted: false}},
	}
	roles := []Role{
		{ID: 10, Priority: 10, IsActive: true, CreatedAt: time.Unix(100, 0), Grants: []Grant{
			{Key: "reservation.view.property", Granted: true},
			{Key: "reservation.manage.property", Granted: true},
		}},
		{ID: 11, Priority: 20, IsActive: true, CreatedAt: time.Unix(200, 0), Grants: []Grant{
			{Key: "document.read.own", Granted: true},
		}},
	}
	first := r.Resolve(user, roles)
	second := r.Resolve(user, roles)
	if !reflect.DeepEqual(first.Keys(), second.Keys()) {
		t.Fatalf("resolution not deterministic: %v vs %v", first.Keys(), second.Keys())
	}
}

func TestResolvePriorityPrecedence(t *testing.T) {
	r := newTestResolver(t, TieEarliestRoleWins)
	user := UserContext{
		UserID:      7,
		Tenant:      TenantContext{PropertyID: ptr(2)},
		Assignments: []RoleAssignment{{RoleID: 10}, {RoleID: 11}},
	}
	roles := []Role{
		{ID: 10, Priority: 10, IsActive: true, CreatedAt: time.Unix(100, 0), Grants: []Grant{
			{Key: "reservation.view.property", Granted: true},
		}},
		{ID: 11, Priority: 20, IsActive: true, CreatedAt: time.Unix(200, 0), Grants: []Grant{
			{Key: "reservation.view.property", Granted: false},
		}},
	}
	set := r.Resolve(user, roles)
	if set.Has("reservation.view.property") {
		t.Fatal("higher-priority deny should win over lower-priority grant")
	}
}

func TestResolveEqualPriorityTieBreak(t *testing.T) {
	user := UserContext{
		UserID:      7,
		Tenant:      TenantContext{PropertyID: ptr(2)},
		Assignments: []RoleAssignment{{RoleID: 10}, {RoleID: 11}},
	}
	roles := []Role{
		{ID: 10, Priority: 10, IsActive: true, CreatedAt: time.Unix(100, 0), Grants: []Grant{
			{Key: "reservation.view.property", Granted: true},
		}},
		{ID: 11, Priority: 10, IsActive: true, CreatedAt: time.Unix(200, 0), Grants: []Grant{
			{Key: "reservation.view.property", Granted: false},
		}},
	}

	earliest := newTestResolver(t, TieEarliestRoleWins).Resolve(user, roles)
	if !earliest.Has("reservation.view.property") {
		t.Fatal("earliest-wins policy: earlier-created grant should stand")
	}

	latest := newTestResolver(t, TieLatestRoleWins).Resolve(user, roles)
	if latest.Has("reservation.view.property") {
		t.Fatal("latest-wins policy: later-created deny should stand")
	}
}

// recordingHandler collects warn messages emitted during resolution.
type recordingHandler struct {
	mu       sync.Mutex
	messages []string
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.messages = append(h.messages, r.Message)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) contains(substr string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, msg := range h.messages {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

func TestResolveIntraRoleConflictWarnsAndLastEntryWins(t *testing.T) {
	handler := &recordingHandler{}
	r := NewResolver(testCatalog(t), nil, TieEarliestRoleWins, slog.New(handler))
	user := UserContext{
		UserID:      7,
		Tenant:      TenantContext{PropertyID: ptr(2)},
		Assignments: []RoleAssignment{{RoleID: 10}},
	}
	roles := []Role{
		{ID: 10, Priority: 10, IsActive: true, CreatedAt: time.Unix(100, 0), Grants: []Grant{
			{Key: "reservation.view.property", Granted: true},
			{Key: "reservation.view.property", Granted: false},
		}},
	}

	set := r.Resolve(user, roles)
	if set.Has("reservation.view.property") {
		t.Fatal("last entry in grant order should apply")
	}
	if !handler.contains("conflicting entries") {
		t.Fatalf("expected intra-role conflict warning, got %v", handler.messages)
	}
}

func TestResolveOverridePrecedence(t *testing.T) {
	r := newTestResolver(t, TieEarliestRoleWins)
	user := UserContext{
		UserID:      7,
		Tenant:      TenantContext{OrganizationID: ptr(1), PropertyID: ptr(2)},
		Assignments: []RoleAssignment{{RoleID: 10}},
		Overrides: []Override{
			{Key: "reservation.view.property", Granted: false},
			{Key: "payroll.view.organization", Granted: true},
		},
	}
	roles := []Role{
		{ID: 10, Priority: 100, IsActive: true, CreatedAt: time.Unix(100, 0), Grants: []Grant{
			{Key: "reservation.view.property", Granted: true},
		}},
	}
	set := r.Resolve(user, roles)
	if set.Has("reservation.view.property") {
		t.Fatal("direct revoke must win over any role grant")
	}
	if !set.Has("payroll.view.organization") {
		t.Fatal("direct grant must apply without any role backing it")
	}
}

func TestResolveInactiveRoleContributesNothing(t *testing.T) {
	r := newTestResolver(t, TieEarliestRoleWins)
	user := UserContext{
		UserID:      7,
		Tenant:      TenantContext{PropertyID: ptr(2)},
		Assignments: []RoleAssignment{{RoleID: 10}},
	}
	roles := []Role{
		{ID: 10, Priority: 10, IsActive: false, CreatedAt: time.Unix(100, 0), Grants: []Grant{
			{Key: "reservation.view.property", Granted: true},
		}},
	}
	if set := r.Resolve(user, roles); set.Len() != 0 {
		t.Fatalf("deactivated role still contributed: %v", set.Keys())
	}
}

func TestResolveOutOfReachOverrideIgnored(t *testing.T) {
	r := newTestResolver(t, TieEarliestRoleWins)
	// No organization membership: an organization-scoped self-serving grant
	// cannot be held.
	user := UserContext{
		UserID:    7,
		Overrides: []Override{{Key: "payroll.view.organization", Granted: true}},
	}
	if set := r.Resolve(user, nil); set.Has("payroll.view.organization") {
		t.Fatal("out-of-reach override should be ignored")
	}

	// Platform admins bypass the reach check.
	admin := UserContext{
		UserID:        8,
		PlatformAdmin: true,
		Overrides:     []Override{{Key: "payroll.view.organization", Granted: true}},
	}
	if set := r.Resolve(admin, nil); !set.Has("payroll.view.organization") {
		t.Fatal("platform admin override should apply")
	}

	// A revoke is never self-serving and always applies.
	revoked := UserContext{
		UserID:      9,
		Assignments: []RoleAssignment{{RoleID: 10}},
		Overrides:   []Override{{Key: "payroll.view.organization", Granted: false}},
	}
	roles := []Role{{ID: 10, Priority: 1, IsActive: true, Grants: []Grant{{Key: "payroll.view.organization", Granted: true}}}}
	if set := r.Resolve(revoked, roles); set.Has("payroll.view.organization") {
		t.Fatal("revoke override should apply regardless of reach")
	}
}

func TestResolveLegacyRoleMergesThroughSamePath(t *testing.T) {
	r := newTestResolver(t, TieEarliestRoleWins)
	user := UserContext{
		UserID:     7,
		LegacyRole: LegacyStaff,
		Tenant:     TenantContext{PropertyID: ptr(2)},
	}
	roles := []Role{
		{ID: 1, Name: "Staff", IsSystemRole: true, Priority: 1, IsActive: true, Grants: []Grant{
			{Key: "reservation.view.property", Granted: true},
		}},
	}
	if set := r.Resolve(user, roles); !set.Has("reservation.view.property") {
		t.Fatal("legacy role should resolve through its mapped system role")
	}
}

func TestResolveUnknownOverrideKeySkipped(t *testing.T) {
	r := newTestResolver(t, TieEarliestRoleWins)
	user := UserContext{
		UserID:    7,
		Overrides: []Override{{Key: "ghost.read.own", Granted: true}},
	}
	if set := r.Resolve(user, nil); set.Len() != 0 {
		t.Fatalf("override for unregistered permission should be skipped, got %v", set.Keys())
	}
}
