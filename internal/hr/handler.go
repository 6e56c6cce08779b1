package hr

import (
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vesta-hotels/vesta/internal/authz"
	"github.com/vesta-hotels/vesta/internal/platform/httpx"
)

// Handler exposes the employee documents API.
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

// MountRoutes registers document routes. Scope checks run per document in
// the service.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.WithActor)
		r.Get("/documents/{documentID}", h.readDocument)
		r.Get("/employees/{employeeID}/documents", h.listDocuments)
		r.Post("/documents", h.uploadDocument)
		r.Delete("/documents/{documentID}", h.deleteDocument)
	})
}

type uploadDocumentRequest struct {
	EmployeeID     int64  `json:"employeeId" validate:"required,gt=0"`
	OrganizationID int64  `json:"organizationId" validate:"required,gt=0"`
	PropertyID     int64  `json:"propertyId" validate:"required,gt=0"`
	DepartmentID   int64  `json:"departmentId" validate:"required,gt=0"`
	Title          string `json:"title" validate:"required,max=200"`
	Kind           string `json:"kind" validate:"required,oneof=contract certificate payslip review other"`
	StoragePath    string `json:"storagePath" validate:"required"`
}

type documentResponse struct {
	ID           int64  `json:"id"`
	EmployeeID   int64  `json:"employeeId"`
	PropertyID   int64  `json:"propertyId"`
	DepartmentID int64  `json:"departmentId"`
	Title        string `json:"title"`
	Kind         string `json:"kind"`
	UploadedBy   int64  `json:"uploadedBy"`
}

func toDocumentResponse(d Document) documentResponse {
	return documentResponse{
		ID:           d.ID,
		EmployeeID:   d.EmployeeID,
		PropertyID:   d.PropertyID,
		DepartmentID: d.DepartmentID,
		Title:        d.Title,
		Kind:         d.Kind,
		UploadedBy:   d.UploadedBy,
	}
}

func (h *Handler) readDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "documentID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Document ID", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	d, err := h.service.ReadDocument(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDocumentResponse(d))
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	employeeID, err := strconv.ParseInt(chi.URLParam(r, "employeeID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Employee ID", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	docs, err := h.service.ListEmployeeDocuments(r.Context(), actor, employeeID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResponse(d))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	var req uploadDocumentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	d, err := h.service.UploadDocument(r.Context(), actor, Document{
		EmployeeID:     req.EmployeeID,
		OrganizationID: req.OrganizationID,
		PropertyID:     req.PropertyID,
		DepartmentID:   req.DepartmentID,
		Title:          req.Title,
		Kind:           req.Kind,
		StoragePath:    req.StoragePath,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDocumentResponse(d))
}

func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "documentID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Document ID", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	if err := h.service.DeleteDocument(r.Context(), actor, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		h.logger.Error("hr handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
