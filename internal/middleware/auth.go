// Package middleware provides the HTTP middleware stack for the API server.
package middleware

import (
	"context"
	"net/http"

	"github.com/purpose-technology/namapp-server/internal/admin"
	"github.com/purpose-technology/namapp-server/internal/database"
	"github.com/purpose-technology/namapp-server/internal/httputil"
	"github.com/purpose-technology/namapp-server/internal/logging"
)

type sessionKey struct{}
type userSessionKey struct{}

// AuthMiddleware runs the authorization gate in front of protected handlers.
// The gate is re-run independently for every request; nothing is cached
// across requests.
type AuthMiddleware struct {
	gate   *admin.Gate
	logger *logging.Logger
}

// NewAuthMiddleware creates the middleware over the shared gate.
func NewAuthMiddleware(gate *admin.Gate, logger *logging.Logger) *AuthMiddleware {
	return &AuthMiddleware{gate: gate, logger: logger}
}

// RequireAdmin admits only admin principals. The session lands in the
// request context for the handler.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := m.gate.Authorize(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			m.deny(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, session)
		ctx = context.WithValue(ctx, logging.UserIDKey, session.PrincipalID)
		ctx = context.WithValue(ctx, logging.RoleKey, database.RoleAdmin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser admits any authenticated principal.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := m.gate.AuthorizeUser(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			m.deny(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userSessionKey{}, session)
		ctx = context.WithValue(ctx, logging.UserIDKey, session.Principal.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) deny(w http.ResponseWriter, r *http.Request, err error) {
	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
	}).Warn("request denied")
	httputil.WriteError(w, r, err)
}

// SessionFromContext returns the admin session stored by RequireAdmin.
func SessionFromContext(ctx context.Context) (*admin.Session, bool) {
	session, ok := ctx.Value(sessionKey{}).(*admin.Session)
	return session, ok
}

// UserSessionFromContext returns the user session stored by RequireUser.
func UserSessionFromContext(ctx context.Context) (*admin.UserSession, bool) {
	session, ok := ctx.Value(userSessionKey{}).(*admin.UserSession)
	return session, ok
}
