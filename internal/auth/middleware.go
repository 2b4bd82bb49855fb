package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/madvasya/lz-app-backend/internal/platform/httpx"
)

// Authenticator resolves bearer tokens into the current user for downstream
// handlers and the authorization gate.
type Authenticator struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireUser rejects requests without a valid access token and stores the
// resolved user in the request context.
func (a Authenticator) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		claims, err := a.Service.Issuer().Decode(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		user, err := a.Service.repo.FindUserByUsername(r.Context(), claims.Subject)
		if err != nil {
			if a.Logger != nil {
				a.Logger.Warn("resolve token subject", slog.String("subject", claims.Subject))
			}
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
	})
}
