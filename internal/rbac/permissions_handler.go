package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/madvasya/lz-app-backend/internal/auth"
	"github.com/madvasya/lz-app-backend/internal/platform/httpx"
)

// PermissionsHandler exposes the permission catalog.
type PermissionsHandler struct {
	logger  *slog.Logger
	service *Service
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service}
}

// MountRoutes registers permission routes. Any authenticated user may read
// the catalog and their own effective permissions.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.listCatalog)
	r.Get("/me", h.myPermissions)
}

func (h *PermissionsHandler) listCatalog(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListCatalog(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if perms == nil {
		perms = []Permission{}
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *PermissionsHandler) myPermissions(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	keys, err := h.service.EffectivePermissions(r.Context(), user)
	if err != nil {
		h.logger.Error("effective permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	httpx.JSON(w, http.StatusOK, keys)
}
