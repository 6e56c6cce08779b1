package roles

import (
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vesta-hotels/vesta/internal/authz"
	"github.com/vesta-hotels/vesta/internal/platform/httpx"
	"github.com/vesta-hotels/vesta/internal/shared"
)

// Handler exposes the role administration API.
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

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.WithActor)
		r.With(h.mw.Require(shared.PermRolesViewOrg)).Get("/", h.listRoles)
		r.With(h.mw.Require(shared.PermRolesViewOrg)).Get("/{roleID}", h.getRole)
		r.Group(func(r chi.Router) {
			r.Use(h.mw.Require(shared.PermRolesManageOrg))
			r.Post("/", h.createRole)
			r.Put("/{roleID}", h.updateRole)
			r.Delete("/{roleID}", h.deactivateRole)
			r.Put("/{roleID}/permissions", h.setPermission)
			r.Delete("/{roleID}/permissions/{key}", h.removePermission)
		})
	})
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=120"`
	Description string `json:"description" validate:"max=500"`
	Priority    int    `json:"priority" validate:"gte=0,lte=1000"`
}

type setPermissionRequest struct {
	Permission string `json:"permission" validate:"required"`
	Granted    *bool  `json:"granted" validate:"required"`
}

type roleResponse struct {
	ID             int64         `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	IsSystemRole   bool          `json:"isSystemRole"`
	OrganizationID *int64        `json:"organizationId,omitempty"`
	PropertyID     *int64        `json:"propertyId,omitempty"`
	Priority       int           `json:"priority"`
	IsActive       bool          `json:"isActive"`
	Grants         []authz.Grant `json:"grants,omitempty"`
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{
		ID:             role.ID,
		Name:           role.Name,
		Description:    role.Description,
		IsSystemRole:   role.IsSystemRole,
		OrganizationID: role.OrganizationID,
		PropertyID:     role.PropertyID,
		Priority:       role.Priority,
		IsActive:       role.IsActive,
		Grants:         role.Grants,
	}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())
	list, err := h.service.ListRoles(r.Context(), actor.Tenant.OrganizationID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(list))
	for _, role := range list {
		out = append(out, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := roleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Role ID", err.Error())
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	role, err := h.service.CreateRole(r.Context(), actor.UserID, Role{
		Name:           req.Name,
		Description:    req.Description,
		Priority:       req.Priority,
		OrganizationID: actor.Tenant.OrganizationID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := roleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Role ID", err.Error())
		return
	}
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	role, err := h.service.UpdateRole(r.Context(), actor.UserID, id, req.Name, req.Description, req.Priority)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deactivateRole(w http.ResponseWriter, r *http.Request) {
	id, err := roleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Role ID", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	if err := h.service.Deactivate(r.Context(), actor.UserID, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setPermission(w http.ResponseWriter, r *http.Request) {
	id, err := roleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Role ID", err.Error())
		return
	}
	var req setPermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	if err := h.service.SetPermission(r.Context(), actor.UserID, id, req.Permission, *req.Granted); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removePermission(w http.ResponseWriter, r *http.Request) {
	id, err := roleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Role ID", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	if err := h.service.RemovePermission(r.Context(), actor.UserID, id, chi.URLParam(r, "key")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateName):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrSystemRole):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case authz.IsUnknownPermission(err):
		httpx.Problem(w, http.StatusBadRequest, "Unknown Permission", err.Error())
	default:
		h.logger.Error("roles handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func roleID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
}
