package authz

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/vesta-hotels/vesta/internal/shared"
)

// ContextSource loads the actor's user context for a session user id.
type ContextSource interface {
	ActorContext(ctx context.Context, userID int64) (UserContext, error)
}

type actorContextKey struct{}

// ActorFromContext extracts the actor placed by WithActor.
func ActorFromContext(ctx context.Context) (UserContext, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(UserContext)
	return actor, ok
}

// Middleware wires guard enforcement into HTTP handlers.
type Middleware struct {
	Guard  *Guard
	Source ContextSource
	Logger *slog.Logger
}

// WithActor resolves the session user into a UserContext and stores it in
// the request context. Requests without an authenticated session are
// rejected.
func (m Middleware) WithActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := m.currentActor(r)
		if !ok {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		ctx := context.WithValue(r.Context(), actorContextKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require authorizes the permission key against the actor's own tenant
// before the handler runs. Handlers acting on concrete resources re-check
// through the guard with the real target; this gate keeps unauthorized
// requests from reaching them at all.
func (m Middleware) Require(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				actor, ok = m.currentActor(r)
				if !ok {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
			}
			decision, err := m.Guard.Authorize(r.Context(), actor, key, SelfTarget(actor))
			if err != nil && decision.Reason == DenyUnknownPermission {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !decision.Allowed {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) currentActor(r *http.Request) (UserContext, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return UserContext{}, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return UserContext{}, false
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("parse session user id", slog.String("value", raw))
		}
		return UserContext{}, false
	}
	actor, err := m.Source.ActorContext(r.Context(), userID)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("load actor context", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return UserContext{}, false
	}
	return actor, true
}
