package hr

import (
	"errors"
	"time"

	"github.com/vesta-hotels/vesta/internal/authz"
)

// Document is an employee file: a contract, a certificate, a payslip.
type Document struct {
	ID             int64
	EmployeeID     int64
	OrganizationID int64
	PropertyID     int64
	DepartmentID   int64
	Title          string
	Kind           string
	StoragePath    string
	UploadedBy     int64
	UploadedAt     time.Time
}

// Target returns the tenant target authorization checks run against. The
// owning employee is the target owner, so own-scoped reads pass for the
// employee themselves.
func (d Document) Target() authz.Target {
	org, prop, dept := d.OrganizationID, d.PropertyID, d.DepartmentID
	return authz.Target{
		OwnerID: d.EmployeeID,
		Tenant: authz.TenantContext{
			OrganizationID: &org,
			PropertyID:     &prop,
			DepartmentID:   &dept,
		},
	}
}

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = errors.New("hr: document not found")
	// ErrForbidden indicates the actor may not access this document.
	ErrForbidden = errors.New("hr: forbidden")
)
