package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vesta-hotels/vesta/internal/authz"
	"github.com/vesta-hotels/vesta/internal/shared"
)

// memStore backs both the administration port and the cache's snapshot
// source so service tests exercise the real resolver and cache.
type memStore struct {
	nextID      int64
	users       map[int64]User
	roles       map[int64]authz.Role
	assignments map[int64][]authz.RoleAssignment
	overrides   map[int64][]authz.Override
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[int64]User),
		roles:       make(map[int64]authz.Role),
		assignments: make(map[int64][]authz.RoleAssignment),
		overrides:   make(map[int64][]authz.Override),
	}
}

func (m *memStore) CreateUser(_ context.Context, u User) (User, error) {
	m.nextID++
	u.ID = m.nextID
	u.IsActive = true
	m.users[u.ID] = u
	return u, nil
}

func (m *memStore) CreateUserWithRole(ctx context.Context, u User, roleID, assignedBy int64) (User, error) {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return User{}, ErrDuplicateEmail
		}
	}
	created, err := m.CreateUser(ctx, u)
	if err != nil {
		return User{}, err
	}
	if roleID > 0 {
		m.assignments[created.ID] = append(m.assignments[created.ID],
			authz.RoleAssignment{RoleID: roleID, AssignedAt: time.Now()})
	}
	return created, nil
}

func (m *memStore) GetUser(_ context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memStore) GetByEmail(_ context.Context, email string) (User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *memStore) ListUsers(context.Context, *int64, int, int) ([]User, error) {
	var out []User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memStore) AssignRole(_ context.Context, userID, roleID, assignedBy int64) error {
	for _, a := range m.assignments[userID] {
		if a.RoleID == roleID {
			return ErrAlreadyAssigned
		}
	}
	m.assignments[userID] = append(m.assignments[userID],
		authz.RoleAssignment{RoleID: roleID, AssignedBy: assignedBy, AssignedAt: time.Now()})
	return nil
}

func (m *memStore) RevokeRole(_ context.Context, userID, roleID int64) error {
	kept := m.assignments[userID][:0]
	found := false
	for _, a := range m.assignments[userID] {
		if a.RoleID == roleID {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return ErrNotFound
	}
	m.assignments[userID] = kept
	return nil
}

func (m *memStore) ListAssignments(_ context.Context, userID int64) ([]Assignment, error) {
	var out []Assignment
	for _, a := range m.assignments[userID] {
		out = append(out, Assignment{RoleID: a.RoleID, AssignedBy: a.AssignedBy, AssignedAt: a.AssignedAt})
	}
	return out, nil
}

func (m *memStore) SetOverride(_ context.Context, userID int64, ov authz.Override) error {
	for i, existing := range m.overrides[userID] {
		if existing.Key == ov.Key {
			m.overrides[userID][i] = ov
			return nil
		}
	}
	m.overrides[userID] = append(m.overrides[userID], ov)
	return nil
}

func (m *memStore) RemoveOverride(_ context.Context, userID int64, key string) error {
	kept := m.overrides[userID][:0]
	for _, ov := range m.overrides[userID] {
		if ov.Key != key {
			kept = append(kept, ov)
		}
	}
	m.overrides[userID] = kept
	return nil
}

func (m *memStore) ReassignTenant(_ context.Context, userID int64, tenant authz.TenantContext) error {
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.OrganizationID = tenant.OrganizationID
	u.PropertyID = tenant.PropertyID
	u.DepartmentID = tenant.DepartmentID
	m.users[userID] = u
	return nil
}

func (m *memStore) SetLegacyRole(_ context.Context, userID int64, role authz.LegacyRole) error {
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.LegacyRole = role
	m.users[userID] = u
	return nil
}

func (m *memStore) UserSnapshot(_ context.Context, userID int64) (authz.UserContext, []authz.Role, error) {
	u, ok := m.users[userID]
	if !ok {
		return authz.UserContext{}, nil, ErrNotFound
	}
	ctx := authz.UserContext{
		UserID:        u.ID,
		LegacyRole:    u.LegacyRole,
		Assignments:   append([]authz.RoleAssignment(nil), m.assignments[userID]...),
		Tenant:        u.Tenant(),
		Overrides:     append([]authz.Override(nil), m.overrides[userID]...),
		PlatformAdmin: u.PlatformAdmin,
	}
	var roles []authz.Role
	for _, role := range m.roles {
		roles = append(roles, role)
	}
	return ctx, roles, nil
}

type stubRefresher struct {
	refreshed []int64
}

func (s *stubRefresher) ForceRefresh(_ context.Context, userID int64) (int64, error) {
	s.refreshed = append(s.refreshed, userID)
	return int64(len(s.refreshed)) + 1, nil
}

type userFixture struct {
	store    *memStore
	catalog  *authz.Catalog
	cache    *authz.Cache
	guard    *authz.Guard
	tokens   *stubRefresher
	audit    *memRecorder
	service  *Service
	resolver *authz.Resolver
}

type memRecorder struct {
	logs []shared.AuditLog
}

func (m *memRecorder) Record(_ context.Context, log shared.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	catalog := authz.NewCatalog()
	catalog.MustRegisterKeys(
		shared.PermReservationsViewProperty,
		shared.PermReservationsManageProperty,
		shared.PermPayrollViewOrg,
	)
	store := newMemStore()
	resolver := authz.NewResolver(catalog, nil, authz.TieEarliestRoleWins, nil)
	cache := authz.NewCache(store, resolver, authz.CacheConfig{}, nil)
	tokens := &stubRefresher{}
	audit := &memRecorder{}
	return &userFixture{
		store:    store,
		catalog:  catalog,
		cache:    cache,
		guard:    authz.NewGuard(catalog, cache, nil),
		tokens:   tokens,
		audit:    audit,
		resolver: resolver,
		service:  NewService(store, catalog, cache, tokens, audit, nil),
	}
}

func (f *userFixture) seedUser(t *testing.T, org, prop int64) User {
	t.Helper()
	u, err := f.store.CreateUser(context.Background(), User{
		Email:          "desk@vesta.test",
		Name:           "Desk Agent",
		OrganizationID: &org,
		PropertyID:     &prop,
	})
	require.NoError(t, err)
	return u
}

func (f *userFixture) seedRole(id int64, priority int, grants ...authz.Grant) {
	f.store.roles[id] = authz.Role{
		ID: id, Name: "role", Priority: priority, IsActive: true,
		CreatedAt: time.Now(), Grants: grants,
	}
}

func TestAssignRoleGrantsImmediately(t *testing.T) {
	f := newUserFixture(t)
	u := f.seedUser(t, 1, 10)
	f.seedRole(5, 10, authz.Grant{Key: shared.PermReservationsViewProperty, Granted: true})

	set, err := f.cache.Get(context.Background(), u.ID)
	require.NoError(t, err)
	require.False(t, set.Has(shared.PermReservationsViewProperty))

	require.NoError(t, f.service.AssignRole(context.Background(), 99, u.ID, 5))

	set, err = f.cache.Get(context.Background(), u.ID)
	require.NoError(t, err)
	require.True(t, set.Has(shared.PermReservationsViewProperty))
}

func TestRevokeRoleDeniesImmediately(t *testing.T) {
	f := newUserFixture(t)
	u := f.seedUser(t, 1, 10)
	f.seedRole(5, 10, authz.Grant{Key: shared.PermReservationsViewProperty, Granted: true})
	require.NoError(t, f.service.AssignRole(context.Background(), 99, u.ID, 5))

	prop := int64(10)
	target := authz.Target{Tenant: authz.TenantContext{PropertyID: &prop}}
	actor, _, err := f.store.UserSnapshot(context.Background(), u.ID)
	require.NoError(t, err)

	dec, err := f.guard.Authorize(context.Background(), actor, shared.PermReservationsViewProperty, target)
	require.NoError(t, err)
	require.True(t, dec.Allowed)

	// The revocation must win the next check without waiting for expiry.
	require.NoError(t, f.service.RevokeRole(context.Background(), 99, u.ID, 5))
	dec, err = f.guard.Authorize(context.Background(), actor, shared.PermReservationsViewProperty, target)
	require.NoError(t, err)
	require.False(t, dec.Allowed)
	require.Equal(t, authz.DenyPermissionNotGranted, dec.Reason)
}

func TestOverrideRevokeBeatsRoleGrant(t *testing.T) {
	f := newUserFixture(t)
	u := f.seedUser(t, 1, 10)
	f.seedRole(5, 10, authz.Grant{Key: shared.PermReservationsViewProperty, Granted: true})
	require.NoError(t, f.service.AssignRole(context.Background(), 99, u.ID, 5))

	require.NoError(t, f.service.SetOverride(context.Background(), 99, u.ID, shared.PermReservationsViewProperty, false))

	set, err := f.cache.Get(context.Background(), u.ID)
	require.NoError(t, err)
	require.False(t, set.Has(shared.PermReservationsViewProperty))

	// Lifting the override restores the role grant.
	require.NoError(t, f.service.RemoveOverride(context.Background(), 99, u.ID, shared.PermReservationsViewProperty))
	set, err = f.cache.Get(context.Background(), u.ID)
	require.NoError(t, err)
	require.True(t, set.Has(shared.PermReservationsViewProperty))
}

func TestSetOverrideRejectsUnknownPermission(t *testing.T) {
	f := newUserFixture(t)
	u := f.seedUser(t, 1, 10)
	err := f.service.SetOverride(context.Background(), 99, u.ID, "spa.levitate.property", true)
	require.True(t, authz.IsUnknownPermission(err))
	require.Empty(t, f.store.overrides[u.ID])
}

func TestReassignTenantValidatesAncestry(t *testing.T) {
	f := newUserFixture(t)
	u := f.seedUser(t, 1, 10)
	dept := int64(3)

	err := f.service.ReassignTenant(context.Background(), 99, u.ID, authz.TenantContext{DepartmentID: &dept})
	require.ErrorIs(t, err, shared.ErrTenantAncestry)

	prop := int64(10)
	err = f.service.ReassignTenant(context.Background(), 99, u.ID, authz.TenantContext{PropertyID: &prop, DepartmentID: &dept})
	require.ErrorIs(t, err, shared.ErrTenantAncestry)

	org := int64(1)
	err = f.service.ReassignTenant(context.Background(), 99, u.ID, authz.TenantContext{OrganizationID: &org, PropertyID: &prop, DepartmentID: &dept})
	require.NoError(t, err)

	stored, err := f.store.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, dept, *stored.DepartmentID)
}

func TestReassignTenantChangesScopeReach(t *testing.T) {
	f := newUserFixture(t)
	u := f.seedUser(t, 1, 10)
	f.seedRole(5, 10, authz.Grant{Key: shared.PermReservationsViewProperty, Granted: true})
	require.NoError(t, f.service.AssignRole(context.Background(), 99, u.ID, 5))

	propA, propB, org := int64(10), int64(20), int64(1)
	targetB := authz.Target{Tenant: authz.TenantContext{PropertyID: &propB}}

	actor, _, err := f.store.UserSnapshot(context.Background(), u.ID)
	require.NoError(t, err)
	dec, err := f.guard.Authorize(context.Background(), actor, shared.PermReservationsViewProperty, targetB)
	require.NoError(t, err)
	require.False(t, dec.Allowed)
	require.Equal(t, authz.DenyScopeMismatch, dec.Reason)

	require.NoError(t, f.service.ReassignTenant(context.Background(), 99, u.ID,
		authz.TenantContext{OrganizationID: &org, PropertyID: &propB}))
	actor, _, err = f.store.UserSnapshot(context.Background(), u.ID)
	require.NoError(t, err)
	dec, err = f.guard.Authorize(context.Background(), actor, shared.PermReservationsViewProperty, targetB)
	require.NoError(t, err)
	require.True(t, dec.Allowed)
	_ = propA
}

func TestSetLegacyRoleResolvesThroughMapping(t *testing.T) {
	catalog := authz.NewCatalog()
	catalog.MustRegisterKeys(shared.PermReservationsViewProperty)
	store := newMemStore()
	resolver := authz.NewResolver(catalog, map[authz.LegacyRole]int64{authz.LegacyStaff: 7}, authz.TieEarliestRoleWins, nil)
	cache := authz.NewCache(store, resolver, authz.CacheConfig{}, nil)
	svc := NewService(store, catalog, cache, &stubRefresher{}, &memRecorder{}, nil)

	org, prop := int64(1), int64(10)
	u, err := store.CreateUser(context.Background(), User{Email: "x@vesta.test", OrganizationID: &org, PropertyID: &prop})
	require.NoError(t, err)
	store.roles[7] = authz.Role{ID: 7, Name: "Staff", IsSystemRole: true, Priority: 1, IsActive: true,
		CreatedAt: time.Now(), Grants: []authz.Grant{{Key: shared.PermReservationsViewProperty, Granted: true}}}

	set, err := cache.Get(context.Background(), u.ID)
	require.NoError(t, err)
	require.False(t, set.Has(shared.PermReservationsViewProperty))

	require.NoError(t, svc.SetLegacyRole(context.Background(), 99, u.ID, authz.LegacyStaff))
	set, err = cache.Get(context.Background(), u.ID)
	require.NoError(t, err)
	require.True(t, set.Has(shared.PermReservationsViewProperty))
}

func TestForceRefreshDelegatesAndAudits(t *testing.T) {
	f := newUserFixture(t)
	u := f.seedUser(t, 1, 10)
	require.NoError(t, f.service.ForceRefresh(context.Background(), 99, u.ID))
	require.Equal(t, []int64{u.ID}, f.tokens.refreshed)

	last := f.audit.logs[len(f.audit.logs)-1]
	require.Equal(t, "user.force_refresh", last.Action)
}

func TestEffectivePermissionsSorted(t *testing.T) {
	f := newUserFixture(t)
	u := f.seedUser(t, 1, 10)
	f.seedRole(5, 10,
		authz.Grant{Key: shared.PermReservationsViewProperty, Granted: true},
		authz.Grant{Key: shared.PermPayrollViewOrg, Granted: true},
	)
	require.NoError(t, f.service.AssignRole(context.Background(), 99, u.ID, 5))

	keys, err := f.service.EffectivePermissions(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, []string{shared.PermPayrollViewOrg, shared.PermReservationsViewProperty}, keys)
}

func TestCreateUserHashesPasswordAndAssignsRole(t *testing.T) {
	f := newUserFixture(t)
	f.seedRole(5, 10, authz.Grant{Key: shared.PermReservationsViewProperty, Granted: true})

	org, prop := int64(1), int64(10)
	created, err := f.service.CreateUser(context.Background(), 99, User{
		Email:          "new@vesta.test",
		Name:           "New Hire",
		OrganizationID: &org,
		PropertyID:     &prop,
	}, "first-day-pass", 5)
	require.NoError(t, err)
	require.NotEqual(t, "first-day-pass", created.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("first-day-pass")))

	set, err := f.cache.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.True(t, set.Has(shared.PermReservationsViewProperty))
}

func TestCreateUserValidatesAncestry(t *testing.T) {
	f := newUserFixture(t)
	dept := int64(100)
	_, err := f.service.CreateUser(context.Background(), 99, User{
		Email:        "orphan@vesta.test",
		Name:         "Orphan Dept",
		DepartmentID: &dept,
	}, "first-day-pass", 0)
	require.ErrorIs(t, err, shared.ErrTenantAncestry)
	require.Empty(t, f.store.users)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	f := newUserFixture(t)
	u := f.seedUser(t, 1, 10)

	org := int64(1)
	_, err := f.service.CreateUser(context.Background(), 99, User{
		Email:          u.Email,
		Name:           "Copy Cat",
		OrganizationID: &org,
	}, "first-day-pass", 0)
	require.ErrorIs(t, err, ErrDuplicateEmail)
}
