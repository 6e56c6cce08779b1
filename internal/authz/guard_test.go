package authz

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newGuardFixture(t *testing.T) (*Guard, *fakeSource) {
	t.Helper()
	source := newFakeSource()
	cache := newTestCache(t, source, CacheConfig{TTL: time.Hour})
	return NewGuard(testCatalog(t), cache, nil), source
}

func TestGuardAllowAndDenyReasons(t *testing.T) {
	guard, source := newGuardFixture(t)
	source.set(7, UserContext{
		Tenant:      TenantContext{OrganizationID: ptr(1), PropertyID: ptr(10)},
		Assignments: []RoleAssignment{{RoleID: 5}},
	}, []Role{
		{ID: 5, Priority: 1, IsActive: true, Grants: []Grant{{Key: "reservation.view.property", Granted: true}}},
	})
	actor := UserContext{UserID: 7, Tenant: TenantContext{OrganizationID: ptr(1), PropertyID: ptr(10)}}

	decision, err := guard.Authorize(context.Background(), actor, "reservation.view.property",
		Target{Tenant: TenantContext{OrganizationID: ptr(1), PropertyID: ptr(10)}})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected allow, got deny(%s)", decision.Reason)
	}

	decision, err = guard.Authorize(context.Background(), actor, "reservation.view.property",
		Target{Tenant: TenantContext{OrganizationID: ptr(1), PropertyID: ptr(20)}})
	if err != nil {
		t.Fatalf("authorize mismatch: %v", err)
	}
	if decision.Allowed || decision.Reason != DenyScopeMismatch {
		t.Fatalf("expected scope mismatch, got %+v", decision)
	}

	decision, err = guard.Authorize(context.Background(), actor, "reservation.manage.property",
		Target{Tenant: TenantContext{PropertyID: ptr(10)}})
	if err != nil {
		t.Fatalf("authorize ungranted: %v", err)
	}
	if decision.Allowed || decision.Reason != DenyPermissionNotGranted {
		t.Fatalf("expected permission not granted, got %+v", decision)
	}
}

func TestGuardUnknownPermissionIsServerError(t *testing.T) {
	guard, _ := newGuardFixture(t)
	decision, err := guard.Authorize(context.Background(), UserContext{UserID: 7}, "ghost.read.own", Target{OwnerID: 7})
	if !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("expected ErrUnknownPermission, got %v", err)
	}
	if decision.Allowed || decision.Reason != DenyUnknownPermission {
		t.Fatalf("expected unknown-permission deny, got %+v", decision)
	}
}

func TestGuardFailsClosedOnStoreFailure(t *testing.T) {
	guard, source := newGuardFixture(t)
	source.err = errors.New("store down")
	decision, err := guard.Authorize(context.Background(), UserContext{UserID: 7}, "document.read.own", Target{OwnerID: 7})
	if err == nil {
		t.Fatal("expected surfaced error")
	}
	if decision.Allowed {
		t.Fatal("guard must fail closed, never open")
	}
}

func TestGuardPlatformBypassScenario(t *testing.T) {
	guard, source := newGuardFixture(t)
	source.set(1, UserContext{
		PlatformAdmin: true,
		Assignments:   []RoleAssignment{{RoleID: 5}},
	}, []Role{
		{ID: 5, Priority: 1, IsActive: true, Grants: []Grant{{Key: "user.read.platform", Granted: true}}},
	})
	actor := UserContext{UserID: 1, PlatformAdmin: true}

	decision, err := guard.Authorize(context.Background(), actor, "user.read.platform",
		Target{OwnerID: 42, Tenant: TenantContext{OrganizationID: ptr(99)}})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("platform admin should reach any organization, got deny(%s)", decision.Reason)
	}
}

func TestGuardDepartmentIsolationScenario(t *testing.T) {
	guard, source := newGuardFixture(t)
	source.set(7, UserContext{
		Tenant:      TenantContext{OrganizationID: ptr(1), PropertyID: ptr(2), DepartmentID: ptr(100)},
		Assignments: []RoleAssignment{{RoleID: 5}},
	}, []Role{
		{ID: 5, Priority: 1, IsActive: true, Grants: []Grant{{Key: "document.read.department", Granted: true}}},
	})
	actor := UserContext{UserID: 7, Tenant: TenantContext{OrganizationID: ptr(1), PropertyID: ptr(2), DepartmentID: ptr(100)}}

	decision, err := guard.Authorize(context.Background(), actor, "document.read.department",
		Target{Tenant: TenantContext{OrganizationID: ptr(1), PropertyID: ptr(2), DepartmentID: ptr(200)}})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if decision.Allowed || decision.Reason != DenyScopeMismatch {
		t.Fatalf("expected department isolation deny, got %+v", decision)
	}
}
