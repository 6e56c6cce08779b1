package frontdesk

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vesta-hotels/vesta/internal/authz"
	"github.com/vesta-hotels/vesta/internal/platform/httpx"
	"github.com/vesta-hotels/vesta/internal/shared"
)

// Handler exposes the front desk API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	mw       authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), mw: mw}
}

// MountRoutes registers reservation routes. Target-level scope checks run in
// the service against each reservation's property, so routes only need the
// actor loaded.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.WithActor)
		r.Get("/reservations", h.listReservations)
		r.Get("/reservations/{reservationID}", h.getReservation)
		r.Post("/reservations", h.createReservation)
		r.Post("/reservations/{reservationID}/status", h.changeStatus)
	})
}

type createReservationRequest struct {
	PropertyID int64     `json:"propertyId" validate:"required,gt=0"`
	GuestName  string    `json:"guestName" validate:"required,min=2,max=200"`
	GuestEmail string    `json:"guestEmail" validate:"omitempty,email"`
	RoomNumber string    `json:"roomNumber" validate:"required,max=20"`
	CheckIn    time.Time `json:"checkIn" validate:"required"`
	CheckOut   time.Time `json:"checkOut" validate:"required"`
}

type changeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=booked checked_in checked_out cancelled"`
}

type reservationResponse struct {
	ID         int64     `json:"id"`
	PropertyID int64     `json:"propertyId"`
	GuestName  string    `json:"guestName"`
	GuestEmail string    `json:"guestEmail,omitempty"`
	RoomNumber string    `json:"roomNumber"`
	CheckIn    time.Time `json:"checkIn"`
	CheckOut   time.Time `json:"checkOut"`
	Status     string    `json:"status"`
}

func toReservationResponse(res Reservation) reservationResponse {
	return reservationResponse{
		ID:         res.ID,
		PropertyID: res.PropertyID,
		GuestName:  res.GuestName,
		GuestEmail: res.GuestEmail,
		RoomNumber: res.RoomNumber,
		CheckIn:    res.CheckIn,
		CheckOut:   res.CheckOut,
		Status:     string(res.Status),
	}
}

func (h *Handler) listReservations(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())
	propertyID, err := strconv.ParseInt(r.URL.Query().Get("property_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Property ID", "property_id query parameter required")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	list, err := h.service.ListReservations(r.Context(), actor, propertyID, shared.NewPagination(page, perPage, 0))
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]reservationResponse, 0, len(list))
	for _, res := range list {
		out = append(out, toReservationResponse(res))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getReservation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "reservationID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Reservation ID", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	res, err := h.service.GetReservation(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReservationResponse(res))
}

func (h *Handler) createReservation(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	org := int64(0)
	if actor.Tenant.OrganizationID != nil {
		org = *actor.Tenant.OrganizationID
	}
	res, err := h.service.CreateReservation(r.Context(), actor, Reservation{
		OrganizationID: org,
		PropertyID:     req.PropertyID,
		GuestName:      req.GuestName,
		GuestEmail:     req.GuestEmail,
		RoomNumber:     req.RoomNumber,
		CheckIn:        req.CheckIn,
		CheckOut:       req.CheckOut,
	}, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toReservationResponse(res))
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "reservationID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Reservation ID", err.Error())
		return
	}
	var req changeStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	res, err := h.service.ChangeStatus(r.Context(), actor, id, ReservationStatus(req.Status))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReservationResponse(res))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrBadTransition):
		httpx.Problem(w, http.StatusConflict, "Illegal Transition", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	default:
		h.logger.Error("frontdesk handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
