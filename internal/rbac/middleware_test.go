package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madvasya/lz-app-backend/internal/auth"
)

func TestRequirePermission(t *testing.T) {
	repo := newMockRepository()
	seedCatalog(repo)
	service := NewService(repo, nil, 0)
	ctx := context.Background()

	editor, err := service.CreateRole(ctx, "editor", "")
	require.NoError(t, err)
	_, err = service.AssignPermissions(ctx, editor.ID, []string{"post_update"})
	require.NoError(t, err)
	_, err = service.AssignRoles(ctx, 7, []string{"editor"})
	require.NoError(t, err)

	gate := Middleware{Service: service, Logger: slog.Default()}
	protected := gate.Require("post_update")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(user *auth.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if user != nil {
			req = req.WithContext(auth.ContextWithUser(req.Context(), user))
		}
		res := httptest.NewRecorder()
		protected.ServeHTTP(res, req)
		return res
	}

	// No resolved user on the context.
	assert.Equal(t, http.StatusUnauthorized, serve(nil).Code)

	// User without the permission.
	assert.Equal(t, http.StatusForbidden, serve(&auth.User{ID: 8, Username: "bystander"}).Code)

	// User holding the permission through a role.
	assert.Equal(t, http.StatusOK, serve(&auth.User{ID: 7, Username: "writer"}).Code)

	// Superadmin bypasses the catalog entirely.
	assert.Equal(t, http.StatusOK, serve(&auth.User{ID: 9, Username: "root", IsSuperadmin: true}).Code)
}
