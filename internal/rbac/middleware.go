package rbac

import (
	"log/slog"
	"net/http"

	"github.com/madvasya/lz-app-backend/internal/auth"
	"github.com/madvasya/lz-app-backend/internal/platform/httpx"
)

// Middleware wires the authorization gate into HTTP handlers. It expects
// the auth middleware to have resolved the current user already.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Require ensures the current user holds the given permission key.
func (m Middleware) Require(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := auth.UserFromContext(r.Context())
			if user == nil {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if err := m.Service.Check(r.Context(), user, key); err != nil {
				if m.Logger != nil {
					m.Logger.Warn("permission check",
						slog.String("permission", key),
						slog.Int64("user_id", user.ID),
						slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
