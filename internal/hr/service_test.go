package hr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vesta-hotels/vesta/internal/authz"
	"github.com/vesta-hotels/vesta/internal/shared"
)

type memRepo struct {
	nextID    int64
	documents map[int64]Document
}

func newMemRepo() *memRepo {
	return &memRepo{documents: make(map[int64]Document)}
}

func (m *memRepo) Create(_ context.Context, d Document) (Document, error) {
	m.nextID++
	d.ID = m.nextID
	d.UploadedAt = time.Now()
	m.documents[d.ID] = d
	return d, nil
}

func (m *memRepo) Get(_ context.Context, id int64) (Document, error) {
	d, ok := m.documents[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return d, nil
}

func (m *memRepo) ListByEmployee(_ context.Context, employeeID int64) ([]Document, error) {
	var out []Document
	for _, d := range m.documents {
		if d.EmployeeID == employeeID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.documents[id]; !ok {
		return ErrNotFound
	}
	delete(m.documents, id)
	return nil
}

type snapshotFake struct {
	users map[int64]authz.UserContext
	roles []authz.Role
}

func (f *snapshotFake) UserSnapshot(_ context.Context, userID int64) (authz.UserContext, []authz.Role, error) {
	u, ok := f.users[userID]
	if !ok {
		return authz.UserContext{}, nil, ErrNotFound
	}
	return u, f.roles, nil
}

const (
	roleStaff   = int64(1)
	roleHRAdmin = int64(2)
)

type hrFixture struct {
	repo    *memRepo
	source  *snapshotFake
	service *Service
}

func newHRFixture(t *testing.T) *hrFixture {
	t.Helper()
	catalog := authz.NewCatalog()
	catalog.MustRegisterKeys(
		shared.PermDocumentsReadOwn,
		shared.PermDocumentsReadDept,
		shared.PermDocumentsManageProp,
	)
	source := &snapshotFake{
		users: make(map[int64]authz.UserContext),
		roles: []authz.Role{
			{
				ID: roleStaff, Name: "Staff", Priority: 1, IsActive: true, CreatedAt: time.Now(),
				Grants: []authz.Grant{{Key: shared.PermDocumentsReadOwn, Granted: true}},
			},
			{
				ID: roleHRAdmin, Name: "HR Admin", Priority: 20, IsActive: true, CreatedAt: time.Now(),
				Grants: []authz.Grant{
					{Key: shared.PermDocumentsReadDept, Granted: true},
					{Key: shared.PermDocumentsManageProp, Granted: true},
				},
			},
		},
	}
	resolver := authz.NewResolver(catalog, nil, authz.TieEarliestRoleWins, nil)
	cache := authz.NewCache(source, resolver, authz.CacheConfig{}, nil)
	guard := authz.NewGuard(catalog, cache, nil)
	repo := newMemRepo()
	return &hrFixture{repo: repo, source: source, service: NewService(repo, guard, nil, nil)}
}

func worker(userID, org, prop, dept int64, roles ...int64) authz.UserContext {
	assignments := make([]authz.RoleAssignment, 0, len(roles))
	for _, id := range roles {
		assignments = append(assignments, authz.RoleAssignment{RoleID: id})
	}
	return authz.UserContext{
		UserID:      userID,
		Assignments: assignments,
		Tenant: authz.TenantContext{
			OrganizationID: &org, PropertyID: &prop, DepartmentID: &dept,
		},
	}
}

func contract(employeeID int64, dept int64) Document {
	return Document{
		EmployeeID:     employeeID,
		OrganizationID: 1,
		PropertyID:     10,
		DepartmentID:   dept,
		Title:          "Employment Contract",
		Kind:           "contract",
		StoragePath:    "s3://vesta-hr/contracts/1.pdf",
	}
}

func (f *hrFixture) seedDocument(t *testing.T, d Document) Document {
	t.Helper()
	created, err := f.repo.Create(context.Background(), d)
	require.NoError(t, err)
	return created
}

func TestEmployeeReadsOwnDocument(t *testing.T) {
	f := newHRFixture(t)
	employee := worker(7, 1, 10, 100, roleStaff)
	f.source.users[7] = employee
	doc := f.seedDocument(t, contract(7, 100))

	got, err := f.service.ReadDocument(context.Background(), employee, doc.ID)
	require.NoError(t, err)
	require.Equal(t, doc.ID, got.ID)
}

func TestEmployeeCannotReadColleagueDocument(t *testing.T) {
	f := newHRFixture(t)
	employee := worker(7, 1, 10, 100, roleStaff)
	f.source.users[7] = employee
	doc := f.seedDocument(t, contract(8, 100))

	// Same department, but the staff role only reads at own scope.
	_, err := f.service.ReadDocument(context.Background(), employee, doc.ID)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestHRAdminReadsDepartmentDocuments(t *testing.T) {
	f := newHRFixture(t)
	admin := worker(9, 1, 10, 100, roleHRAdmin)
	f.source.users[9] = admin
	doc := f.seedDocument(t, contract(8, 100))

	got, err := f.service.ReadDocument(context.Background(), admin, doc.ID)
	require.NoError(t, err)
	require.Equal(t, int64(8), got.EmployeeID)
}

func TestHRAdminBlockedAcrossDepartments(t *testing.T) {
	f := newHRFixture(t)
	admin := worker(9, 1, 10, 100, roleHRAdmin)
	f.source.users[9] = admin
	doc := f.seedDocument(t, contract(8, 200))

	// The admin's department grant does not reach department 200, and
	// the document is not theirs, so both read paths deny.
	_, err := f.service.ReadDocument(context.Background(), admin, doc.ID)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestUploadRequiresManagePermission(t *testing.T) {
	f := newHRFixture(t)
	employee := worker(7, 1, 10, 100, roleStaff)
	f.source.users[7] = employee

	_, err := f.service.UploadDocument(context.Background(), employee, contract(7, 100))
	require.ErrorIs(t, err, ErrForbidden)

	admin := worker(9, 1, 10, 100, roleHRAdmin)
	f.source.users[9] = admin
	created, err := f.service.UploadDocument(context.Background(), admin, contract(7, 100))
	require.NoError(t, err)
	require.Equal(t, int64(9), created.UploadedBy)
}

func TestListEmployeeDocumentsFiltersUnreadable(t *testing.T) {
	f := newHRFixture(t)
	employee := worker(7, 1, 10, 100, roleStaff)
	f.source.users[7] = employee
	f.seedDocument(t, contract(7, 100))
	f.seedDocument(t, contract(7, 100))

	docs, err := f.service.ListEmployeeDocuments(context.Background(), employee, 7)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	// A colleague with only own-scope reads sees nothing of employee 7.
	colleague := worker(8, 1, 10, 100, roleStaff)
	f.source.users[8] = colleague
	_, err = f.service.ListEmployeeDocuments(context.Background(), colleague, 7)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestDeleteDocument(t *testing.T) {
	f := newHRFixture(t)
	admin := worker(9, 1, 10, 100, roleHRAdmin)
	f.source.users[9] = admin
	doc := f.seedDocument(t, contract(7, 100))

	require.NoError(t, f.service.DeleteDocument(context.Background(), admin, doc.ID))
	_, err := f.repo.Get(context.Background(), doc.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
