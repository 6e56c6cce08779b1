package authz

import "errors"

var (
	// ErrDuplicateDefinition indicates the permission triple is already
	// registered.
	ErrDuplicateDefinition = errors.New("authz: permission already defined")
	// ErrUnknownPermission indicates a catalog reference that does not
	// exist. Treated as a deploy-time misconfiguration, never a user error.
	ErrUnknownPermission = errors.New("authz: unknown permission")
	// ErrPermissionInUse blocks removal of a permission still referenced by
	// a role.
	ErrPermissionInUse = errors.New("authz: permission in use")
	// ErrReauthenticationRequired signals a token whose embedded permissions
	// version is behind the user's current version. Callers should reissue
	// credentials rather than retry the action.
	ErrReauthenticationRequired = errors.New("authz: reauthentication required")
)
