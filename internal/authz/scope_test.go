package authz

import "testing"

func TestPermittedExactLevelMatch(t *testing.T) {
	perm := Permission{Resource: "document", Action: "read", Scope: ScopeDepartment}
	actor := UserContext{
		UserID: 7,
		Tenant: TenantContext{OrganizationID: ptr(1), PropertyID: ptr(2), DepartmentID: ptr(3)},
	}

	match := Target{Tenant: TenantContext{OrganizationID: ptr(1), PropertyID: ptr(2), DepartmentID: ptr(3)}}
	if !Permitted(perm, actor, match) {
		t.Fatal("same department should match")
	}

	// Same organization, different department: reach is exact, not
	// transitive through the hierarchy.
	other := Target{Tenant: TenantContext{OrganizationID: ptr(1), PropertyID: ptr(2), DepartmentID: ptr(4)}}
	if Permitted(perm, actor, other) {
		t.Fatal("different department must not match even within the same organization")
	}
}

func TestPermittedPropertyScopeNotReachTransitive(t *testing.T) {
	perm := Permission{Resource: "reservation", Action: "view", Scope: ScopeProperty}
	actor := UserContext{
		UserID: 7,
		Tenant: TenantContext{OrganizationID: ptr(1), PropertyID: ptr(10)},
	}
	target := Target{Tenant: TenantContext{OrganizationID: ptr(1), PropertyID: ptr(20)}}
	if Permitted(perm, actor, target) {
		t.Fatal("property mismatch must deny even when organizations match")
	}
}

func TestPermittedOwnScopeIgnoresTenant(t *testing.T) {
	perm := Permission{Resource: "document", Action: "read", Scope: ScopeOwn}
	// Actor outside any organization can still read what they own.
	actor := UserContext{UserID: 7}
	if !Permitted(perm, actor, Target{OwnerID: 7}) {
		t.Fatal("owner should read their own resource with null tenant ids")
	}
	if Permitted(perm, actor, Target{OwnerID: 8}) {
		t.Fatal("own scope must not reach another user's resource")
	}
	if Permitted(perm, actor, Target{}) {
		t.Fatal("target without an owner must not match own scope")
	}
}

func TestPermittedPlatformRequiresCapability(t *testing.T) {
	perm := Permission{Resource: "user", Action: "read", Scope: ScopePlatform}
	target := Target{OwnerID: 99, Tenant: TenantContext{OrganizationID: ptr(5)}}

	admin := UserContext{UserID: 1, PlatformAdmin: true}
	if !Permitted(perm, admin, target) {
		t.Fatal("platform admin should bypass tenant checks")
	}

	mortal := UserContext{UserID: 2, Tenant: TenantContext{OrganizationID: ptr(5)}}
	if Permitted(perm, mortal, target) {
		t.Fatal("platform scope must require the platform-admin capability")
	}
}

func TestPermittedNilTenantDenies(t *testing.T) {
	perm := Permission{Resource: "reservation", Action: "view", Scope: ScopeProperty}
	actor := UserContext{UserID: 7}
	target := Target{Tenant: TenantContext{PropertyID: ptr(2)}}
	if Permitted(perm, actor, target) {
		t.Fatal("actor without a property must not match property scope")
	}
	if Permitted(perm, UserContext{UserID: 7, Tenant: TenantContext{PropertyID: ptr(2)}}, Target{}) {
		t.Fatal("target without a property must not match property scope")
	}
}
