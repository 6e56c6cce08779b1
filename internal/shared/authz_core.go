package shared

// Core platform permissions. Keys follow the canonical
// resource.action.scope form consumed by the authorization catalog.
const (
	PermUsersViewProperty  = "user.view.property"
	PermUsersManageOrg     = "user.manage.organization"
	PermUsersReadPlatform  = "user.read.platform"
	PermRolesViewOrg       = "role.view.organization"
	PermRolesManageOrg     = "role.manage.organization"
	PermPermissionsView    = "permission.view.platform"
	PermAuditViewOrg       = "audit.view.organization"
	PermAuditViewPlatform  = "audit.view.platform"
	PermOverridesManageOrg = "override.manage.organization"
)

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	return []string{
		PermUsersViewProperty,
		PermUsersManageOrg,
		PermUsersReadPlatform,
		PermRolesViewOrg,
		PermRolesManageOrg,
		PermPermissionsView,
		PermAuditViewOrg,
		PermAuditViewPlatform,
		PermOverridesManageOrg,
	}
}
