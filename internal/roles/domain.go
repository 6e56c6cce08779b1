package roles

import (
	"errors"
	"time"

	"github.com/vesta-hotels/vesta/internal/authz"
)

// Role is the administrative view of an authorization role.
type Role struct {
	ID             int64
	Name           string
	Description    string
	IsSystemRole   bool
	OrganizationID *int64
	PropertyID     *int64
	Priority       int
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Grants         []authz.Grant
}

// Authz converts the administrative record into the resolver's role shape.
func (r Role) Authz() authz.Role {
	return authz.Role{
		ID:             r.ID,
		Name:           r.Name,
		IsSystemRole:   r.IsSystemRole,
		OrganizationID: r.OrganizationID,
		PropertyID:     r.PropertyID,
		Priority:       r.Priority,
		IsActive:       r.IsActive,
		CreatedAt:      r.CreatedAt,
		Grants:         r.Grants,
	}
}

var (
	// ErrNotFound indicates the role does not exist.
	ErrNotFound = errors.New("roles: not found")
	// ErrDuplicateName indicates a role name collision within the tenant.
	ErrDuplicateName = errors.New("roles: duplicate name")
	// ErrSystemRole blocks mutation of seeded system roles.
	ErrSystemRole = errors.New("roles: system role is immutable")
)
