package users

import (
	"errors"
	"time"

	"github.com/vesta-hotels/vesta/internal/authz"
)

// User is a staff account. Tenant placement is stored directly on the
// account; a user belongs to at most one department within one property
// within one organization.
type User struct {
	ID             int64
	Email          string
	Name           string
	PasswordHash   string
	LegacyRole     authz.LegacyRole
	OrganizationID *int64
	PropertyID     *int64
	DepartmentID   *int64
	PlatformAdmin  bool
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Tenant returns the user's tenant placement.
func (u User) Tenant() authz.TenantContext {
	return authz.TenantContext{
		OrganizationID: u.OrganizationID,
		PropertyID:     u.PropertyID,
		DepartmentID:   u.DepartmentID,
	}
}

// Assignment is the administrative view of a custom-role grant.
type Assignment struct {
	RoleID     int64
	RoleName   string
	AssignedBy int64
	AssignedAt time.Time
}

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = errors.New("users: not found")
	// ErrDuplicateEmail indicates an email collision.
	ErrDuplicateEmail = errors.New("users: duplicate email")
	// ErrAlreadyAssigned indicates the role is already assigned to the user.
	ErrAlreadyAssigned = errors.New("users: role already assigned")
)
