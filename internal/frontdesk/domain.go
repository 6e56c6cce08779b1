package frontdesk

import (
	"errors"
	"time"

	"github.com/vesta-hotels/vesta/internal/authz"
)

// ReservationStatus tracks the lifecycle of a stay.
type ReservationStatus string

const (
	StatusBooked     ReservationStatus = "booked"
	StatusCheckedIn  ReservationStatus = "checked_in"
	StatusCheckedOut ReservationStatus = "checked_out"
	StatusCancelled  ReservationStatus = "cancelled"
)

var statusTransitions = map[ReservationStatus][]ReservationStatus{
	StatusBooked:    {StatusCheckedIn, StatusCancelled},
	StatusCheckedIn: {StatusCheckedOut},
}

// CanTransition reports whether the status change is a legal lifecycle step.
func (s ReservationStatus) CanTransition(next ReservationStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Reservation is a guest stay at one property.
type Reservation struct {
	ID             int64
	OrganizationID int64
	PropertyID     int64
	GuestName      string
	GuestEmail     string
	RoomNumber     string
	CheckIn        time.Time
	CheckOut       time.Time
	Status         ReservationStatus
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Target returns the tenant target authorization checks run against.
func (r Reservation) Target() authz.Target {
	org, prop := r.OrganizationID, r.PropertyID
	return authz.Target{
		OwnerID: r.CreatedBy,
		Tenant:  authz.TenantContext{OrganizationID: &org, PropertyID: &prop},
	}
}

var (
	// ErrNotFound indicates the reservation does not exist.
	ErrNotFound = errors.New("frontdesk: reservation not found")
	// ErrBadTransition indicates an illegal status change.
	ErrBadTransition = errors.New("frontdesk: illegal status transition")
	// ErrForbidden indicates the actor may not act on this reservation.
	ErrForbidden = errors.New("frontdesk: forbidden")
)
