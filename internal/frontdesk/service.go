package frontdesk

import (
	"context"
	"fmt"
	"strconv"

	"log/slog"

	"github.com/vesta-hotels/vesta/internal/authz"
	"github.com/vesta-hotels/vesta/internal/shared"
)

// RepositoryPort defines data access methods for reservations.
type RepositoryPort interface {
	Create(ctx context.Context, res Reservation) (Reservation, error)
	Get(ctx context.Context, id int64) (Reservation, error)
	ListByProperty(ctx context.Context, propertyID int64, limit, offset int) ([]Reservation, error)
	UpdateStatus(ctx context.Context, id int64, status ReservationStatus) (Reservation, error)
}

// Authorizer decides reservation access against a concrete target.
type Authorizer interface {
	Authorize(ctx context.Context, actor authz.UserContext, key string, target authz.Target) (authz.Decision, error)
}

// IdempotencyPort deduplicates retried booking requests.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service handles front desk operations. Reads check the view permission
// against the reservation's property; writes check the manage permission.
type Service struct {
	repo   RepositoryPort
	guard  Authorizer
	audit  shared.Recorder
	idem   IdempotencyPort
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, guard Authorizer, audit shared.Recorder, idem IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, guard: guard, audit: audit, idem: idem, logger: logger}
}

// CreateReservation books a stay at a property the actor can manage. A
// non-empty idemKey deduplicates network retries of the same booking.
func (s *Service) CreateReservation(ctx context.Context, actor authz.UserContext, res Reservation, idemKey string) (Reservation, error) {
	if res.GuestName == "" {
		return Reservation{}, fmt.Errorf("frontdesk: guest name required")
	}
	if !res.CheckOut.After(res.CheckIn) {
		return Reservation{}, fmt.Errorf("frontdesk: check-out must follow check-in")
	}
	res.Status = StatusBooked
	res.CreatedBy = actor.UserID
	if err := s.authorize(ctx, actor, shared.PermReservationsManageProperty, res.Target()); err != nil {
		return Reservation{}, err
	}
	if idemKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idemKey, "frontdesk"); err != nil {
			return Reservation{}, err
		}
	}
	created, err := s.repo.Create(ctx, res)
	if err != nil {
		if idemKey != "" && s.idem != nil {
			if derr := s.idem.Delete(ctx, idemKey); derr != nil {
				s.logger.Error("release idempotency key", slog.Any("error", derr))
			}
		}
		return Reservation{}, err
	}
	s.recordAudit(ctx, actor.UserID, "reservation.create", created.ID, nil, map[string]any{
		"guest": created.GuestName, "property_id": created.PropertyID, "room": created.RoomNumber,
	})
	return created, nil
}

// GetReservation fetches a reservation the actor may view.
func (s *Service) GetReservation(ctx context.Context, actor authz.UserContext, id int64) (Reservation, error) {
	res, err := s.repo.Get(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if err := s.authorize(ctx, actor, shared.PermReservationsViewProperty, res.Target()); err != nil {
		return Reservation{}, err
	}
	return res, nil
}

// ListReservations returns reservations for one property the actor may view.
func (s *Service) ListReservations(ctx context.Context, actor authz.UserContext, propertyID int64, page shared.Pagination) ([]Reservation, error) {
	org := int64(0)
	if actor.Tenant.OrganizationID != nil {
		org = *actor.Tenant.OrganizationID
	}
	target := authz.Target{Tenant: authz.TenantContext{OrganizationID: &org, PropertyID: &propertyID}}
	if err := s.authorize(ctx, actor, shared.PermReservationsViewProperty, target); err != nil {
		return nil, err
	}
	return s.repo.ListByProperty(ctx, propertyID, page.Limit(), page.Offset())
}

// ChangeStatus applies a lifecycle transition to a reservation the actor may
// manage.
func (s *Service) ChangeStatus(ctx context.Context, actor authz.UserContext, id int64, next ReservationStatus) (Reservation, error) {
	res, err := s.repo.Get(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if err := s.authorize(ctx, actor, shared.PermReservationsManageProperty, res.Target()); err != nil {
		return Reservation{}, err
	}
	if !res.Status.CanTransition(next) {
		return Reservation{}, fmt.Errorf("%w: %s to %s", ErrBadTransition, res.Status, next)
	}
	updated, err := s.repo.UpdateStatus(ctx, id, next)
	if err != nil {
		return Reservation{}, err
	}
	s.recordAudit(ctx, actor.UserID, "reservation.status", id,
		map[string]any{"status": string(res.Status)},
		map[string]any{"status": string(next)})
	return updated, nil
}

func (s *Service) authorize(ctx context.Context, actor authz.UserContext, key string, target authz.Target) error {
	dec, err := s.guard.Authorize(ctx, actor, key, target)
	if err != nil {
		return err
	}
	if !dec.Allowed {
		return fmt.Errorf("%w: %s (%s)", ErrForbidden, key, dec.Reason)
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, before, after map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "reservation",
		EntityID: strconv.FormatInt(id, 10),
		Before:   before,
		After:    after,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Error("record reservation audit", slog.String("action", action), slog.Any("error", err))
	}
}
