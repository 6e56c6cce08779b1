package users

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

// Handler exposes the user administration API.
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

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.WithActor)
		r.With(h.mw.Require(shared.PermUsersViewProperty)).Get("/", h.listUsers)
		r.With(h.mw.Require(shared.PermUsersViewProperty)).Get("/{userID}", h.getUser)
		r.With(h.mw.Require(shared.PermUsersViewProperty)).Get("/{userID}/permissions", h.effectivePermissions)
		r.With(h.mw.Require(shared.PermUsersViewProperty)).Get("/{userID}/roles", h.listAssignments)
		r.Group(func(r chi.Router) {
			r.Use(h.mw.Require(shared.PermUsersManageOrg))
			r.Post("/", h.createUser)
			r.Post("/{userID}/roles", h.assignRole)
			r.Delete("/{userID}/roles/{roleID}", h.revokeRole)
			r.Put("/{userID}/tenant", h.reassignTenant)
			r.Put("/{userID}/legacy-role", h.setLegacyRole)
			r.Post("/{userID}/refresh", h.forceRefresh)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.mw.Require(shared.PermOverridesManageOrg))
			r.Put("/{userID}/overrides", h.setOverride)
			r.Delete("/{userID}/overrides/{key}", h.removeOverride)
		})
	})
}

type createUserRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Name           string `json:"name" validate:"required,min=2,max=200"`
	Password       string `json:"password" validate:"required,min=8"`
	LegacyRole     string `json:"legacyRole" validate:"oneof='' staff manager org_admin super_admin"`
	OrganizationID *int64 `json:"organizationId"`
	PropertyID     *int64 `json:"propertyId"`
	DepartmentID   *int64 `json:"departmentId"`
	InitialRoleID  int64  `json:"initialRoleId" validate:"gte=0"`
}

type assignRoleRequest struct {
	RoleID int64 `json:"roleId" validate:"required,gt=0"`
}

type setOverrideRequest struct {
	Permission string `json:"permission" validate:"required"`
	Granted    *bool  `json:"granted" validate:"required"`
}

type tenantRequest struct {
	OrganizationID *int64 `json:"organizationId"`
	PropertyID     *int64 `json:"propertyId"`
	DepartmentID   *int64 `json:"departmentId"`
}

type legacyRoleRequest struct {
	LegacyRole string `json:"legacyRole" validate:"oneof='' staff manager org_admin super_admin"`
}

type userResponse struct {
	ID             int64  `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	LegacyRole     string `json:"legacyRole,omitempty"`
	OrganizationID *int64 `json:"organizationId,omitempty"`
	PropertyID     *int64 `json:"propertyId,omitempty"`
	DepartmentID   *int64 `json:"departmentId,omitempty"`
	PlatformAdmin  bool   `json:"platformAdmin,omitempty"`
	IsActive       bool   `json:"isActive"`
}

func toUserResponse(u User) userResponse {
	return userResponse{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		LegacyRole:     string(u.LegacyRole),
		OrganizationID: u.OrganizationID,
		PropertyID:     u.PropertyID,
		DepartmentID:   u.DepartmentID,
		PlatformAdmin:  u.PlatformAdmin,
		IsActive:       u.IsActive,
	}
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	list, err := h.service.ListUsers(r.Context(), actor.Tenant.OrganizationID, shared.NewPagination(page, perPage, 0))
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]userResponse, 0, len(list))
	for _, u := range list {
		out = append(out, toUserResponse(u))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	created, err := h.service.CreateUser(r.Context(), actor.UserID, User{
		Email:          req.Email,
		Name:           req.Name,
		LegacyRole:     authz.LegacyRole(req.LegacyRole),
		OrganizationID: req.OrganizationID,
		PropertyID:     req.PropertyID,
		DepartmentID:   req.DepartmentID,
	}, req.Password, req.InitialRoleID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toUserResponse(created))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", err.Error())
		return
	}
	u, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", err.Error())
		return
	}
	keys, err := h.service.EffectivePermissions(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"userId": id, "permissions": keys})
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", err.Error())
		return
	}
	list, err := h.service.ListAssignments(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", err.Error())
		return
	}
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	if err := h.service.AssignRole(r.Context(), actor.UserID, id, req.RoleID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", err.Error())
		return
	}
	roleID, err := pathID(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Role ID", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	if err := h.service.RevokeRole(r.Context(), actor.UserID, userID, roleID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setOverride(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", err.Error())
		return
	}
	var req setOverrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	if err := h.service.SetOverride(r.Context(), actor.UserID, id, req.Permission, *req.Granted); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeOverride(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	if err := h.service.RemoveOverride(r.Context(), actor.UserID, id, chi.URLParam(r, "key")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reassignTenant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", err.Error())
		return
	}
	var req tenantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	tenant := authz.TenantContext{
		OrganizationID: req.OrganizationID,
		PropertyID:     req.PropertyID,
		DepartmentID:   req.DepartmentID,
	}
	if err := h.service.ReassignTenant(r.Context(), actor.UserID, id, tenant); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setLegacyRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", err.Error())
		return
	}
	var req legacyRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	if err := h.service.SetLegacyRole(r.Context(), actor.UserID, id, authz.LegacyRole(req.LegacyRole)); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) forceRefresh(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	if err := h.service.ForceRefresh(r.Context(), actor.UserID, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrAlreadyAssigned):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrTenantAncestry):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Tenant", err.Error())
	case authz.IsUnknownPermission(err):
		httpx.Problem(w, http.StatusBadRequest, "Unknown Permission", err.Error())
	default:
		h.logger.Error("users handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
