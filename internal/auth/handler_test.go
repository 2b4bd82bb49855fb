package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/madvasya/lz-app-backend/internal/testing/guard"
)

func newTestRouter(t *testing.T, repo Repository) http.Handler {
	t.Helper()
	service := newTestService(repo)
	handler := NewHandler(slog.Default(), service)
	r := chi.NewRouter()
	r.Route("/api/auth", handler.MountRoutes)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestLoginEndpoint(t *testing.T) {
	repo := newMockRepository()
	repo.addUser(1, "madvasya", "super-secret-pw", false)
	router := newTestRouter(t, repo)

	res := doJSON(t, router, http.MethodPost, "/api/auth/login",
		`{"username":"madvasya","password":"super-secret-pw"}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "access_token")
	assert.Contains(t, res.Body.String(), "refresh_token")
}

func TestLoginEndpointRejectsBadCredentials(t *testing.T) {
	repo := newMockRepository()
	repo.addUser(1, "madvasya", "super-secret-pw", false)
	router := newTestRouter(t, repo)

	res := doJSON(t, router, http.MethodPost, "/api/auth/login",
		`{"username":"madvasya","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginEndpointRejectsInvalidBody(t *testing.T) {
	router := newTestRouter(t, newMockRepository())

	res := doJSON(t, router, http.MethodPost, "/api/auth/login", `{"username":"x"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = doJSON(t, router, http.MethodPost, "/api/auth/login", `not json`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestRefreshAndLogoutEndpoints(t *testing.T) {
	repo := newMockRepository()
	repo.addUser(1, "madvasya", "super-secret-pw", false)
	service := newTestService(repo)
	handler := NewHandler(slog.Default(), service)
	r := chi.NewRouter()
	r.Route("/api/auth", handler.MountRoutes)

	pair, err := service.Login(context.Background(), "madvasya", "super-secret-pw")
	require.NoError(t, err)

	res := doJSON(t, r, http.MethodPost, "/api/auth/refresh",
		`{"refresh_token":"`+pair.RefreshToken+`"}`)
	require.Equal(t, http.StatusOK, res.Code)

	// The rotated-away token is dead.
	res = doJSON(t, r, http.MethodPost, "/api/auth/refresh",
		`{"refresh_token":"`+pair.RefreshToken+`"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	repo := newMockRepository()
	repo.addUser(1, "madvasya", "super-secret-pw", false)
	service := newTestService(repo)
	handler := NewHandler(slog.Default(), service)
	r := chi.NewRouter()
	r.Route("/api/auth", handler.MountRoutes)

	pair, err := service.Login(context.Background(), "madvasya", "super-secret-pw")
	require.NoError(t, err)

	res := doJSON(t, r, http.MethodDelete, "/api/auth/logout",
		`{"refresh_token":"`+pair.RefreshToken+`"}`)
	require.Equal(t, http.StatusNoContent, res.Code)

	res = doJSON(t, r, http.MethodDelete, "/api/auth/logout",
		`{"refresh_token":"`+pair.RefreshToken+`"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireUserMiddleware(t *testing.T) {
	repo := newMockRepository()
	repo.addUser(1, "madvasya", "super-secret-pw", false)
	service := newTestService(repo)
	authenticator := Authenticator{Service: service, Logger: slog.Default()}

	var seen *User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	protected := authenticator.RequireUser(next)

	// No token.
	res := httptest.NewRecorder()
	protected.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	// Bad token.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nonsense")
	res = httptest.NewRecorder()
	protected.ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	// Valid token.
	access, err := service.Issuer().Issue("madvasya", TokenAccess)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	res = httptest.NewRecorder()
	protected.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, seen)
	assert.Equal(t, int64(1), seen.ID)
}
