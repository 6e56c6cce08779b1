package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/vesta-hotels/vesta/internal/audit/http"
	"github.com/vesta-hotels/vesta/internal/auth"
	"github.com/vesta-hotels/vesta/internal/authz"
	"github.com/vesta-hotels/vesta/internal/frontdesk"
	"github.com/vesta-hotels/vesta/internal/hr"
	"github.com/vesta-hotels/vesta/internal/roles"
	"github.com/vesta-hotels/vesta/internal/shared"
	"github.com/vesta-hotels/vesta/internal/users"
	"github.com/vesta-hotels/vesta/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	RolesHandler     *roles.Handler
	UsersHandler     *users.Handler
	FrontDeskHandler *frontdesk.Handler
	HRHandler        *hr.Handler
	AuditHandler     *audithttp.Handler
	JobsHandler      *jobs.Handler
	AuthzMiddleware  authz.Middleware
}

// NewRouter constructs the chi.Router with Vesta defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.RolesHandler != nil {
		r.Route("/roles", func(r chi.Router) {
			params.RolesHandler.MountRoutes(r)
		})
	}
	if params.UsersHandler != nil {
		r.Route("/users", func(r chi.Router) {
			params.UsersHandler.MountRoutes(r)
		})
	}
	if params.FrontDeskHandler != nil {
		r.Route("/frontdesk", func(r chi.Router) {
			params.FrontDeskHandler.MountRoutes(r)
		})
	}
	if params.HRHandler != nil {
		r.Route("/hr", func(r chi.Router) {
			params.HRHandler.MountRoutes(r)
		})
	}
	if params.AuditHandler != nil {
		params.AuditHandler.MountRoutes(r, params.AuthzMiddleware)
	}
	if params.JobsHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			params.JobsHandler.MountRoutes(r)
		})
	}

	return r
}
