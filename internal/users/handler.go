package users

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/madvasya/lz-app-backend/internal/auth"
	"github.com/madvasya/lz-app-backend/internal/platform/httpx"
	"github.com/madvasya/lz-app-backend/internal/rbac"
	"github.com/madvasya/lz-app-backend/internal/shared"
)

// Handler manages user directory endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      *rbac.Service
	gate      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacService *rbac.Service, gate rbac.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		rbac:      rbacService,
		gate:      gate,
		validator: validator.New(),
	}
}

// MountRoutes registers user routes. The auth middleware has already
// resolved the current user.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.getMe)
	r.Patch("/me", h.updateMe)
	r.Put("/me/password", h.changeMyPassword)
	r.Post("/", h.createUser)

	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require("user_read"))
		r.Get("/", h.listUsers)
		r.Get("/{userID}", h.getUser)
		r.Get("/{userID}/roles", h.listUserRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require("user_update"))
		r.Patch("/{userID}", h.updateUser)
		r.Delete("/{userID}", h.deleteUser)
		r.Put("/{userID}/password", h.resetPassword)
		r.Post("/{userID}/roles", h.assignRoles)
		r.Delete("/{userID}/roles", h.unassignRoles)
	})
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=8"`
	Email    string `json:"email" validate:"omitempty,email"`
	FullName string `json:"full_name" validate:"max=128"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type userResponse struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	PenaltyPoints int       `json:"penalty_points"`
	IsSuperadmin  bool      `json:"is_superadmin"`
	CreatedOn     time.Time `json:"created_on"`
	EditedOn      time.Time `json:"edited_on"`
	Roles         []string  `json:"roles"`
	Permissions   []string  `json:"permissions"`
}

func (h *Handler) toResponse(ctx context.Context, user User) userResponse {
	resp := userResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		FullName:      user.FullName,
		PenaltyPoints: user.PenaltyPoints,
		IsSuperadmin:  user.IsSuperadmin,
		CreatedOn:     user.CreatedOn,
		EditedOn:      user.EditedOn,
		Roles:         []string{},
		Permissions:   []string{},
	}
	roles, err := h.rbac.ListUserRoles(ctx, user.ID)
	if err != nil {
		h.logger.Warn("list user roles", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return resp
	}
	for _, role := range roles {
		resp.Roles = append(resp.Roles, role.Name)
	}
	keys, err := h.rbac.EffectivePermissions(ctx, principal{user})
	if err != nil {
		h.logger.Warn("effective permissions", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return resp
	}
	resp.Permissions = keys
	if resp.Permissions == nil {
		resp.Permissions = []string{}
	}
	return resp
}

// principal adapts a directory user to the gate's view of an actor.
type principal struct{ user User }

func (p principal) GetID() int64      { return p.user.ID }
func (p principal) IsSuperUser() bool { return p.user.IsSuperadmin }

func (h *Handler) getMe(w http.ResponseWriter, r *http.Request) {
	current := auth.UserFromContext(r.Context())
	user, err := h.service.Get(r.Context(), current.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(r.Context(), user))
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	current := auth.UserFromContext(r.Context())
	var patch UserPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	user, err := h.service.Update(r.Context(), current.ID, patch)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(r.Context(), user))
}

func (h *Handler) changeMyPassword(w http.ResponseWriter, r *http.Request) {
	current := auth.UserFromContext(r.Context())
	var req changePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.ChangePassword(r.Context(), current.ID, req.OldPassword, req.NewPassword); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Get(r.Context(), current.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(r.Context(), user))
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	current := auth.UserFromContext(r.Context())
	if !current.IsSuperadmin {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	user, err := h.service.Create(r.Context(), CreateUser{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.toResponse(r.Context(), user))
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	params, err := shared.ParseListParams(r, "id", "username", "email", "created_on")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	users, total, err := h.service.List(r.Context(), params)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := make([]userResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, h.toResponse(r.Context(), user))
	}
	shared.SetTotalCount(w, total)
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(r.Context(), user))
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var patch UserPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	user, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(r.Context(), user))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	current := auth.UserFromContext(r.Context())
	id, err := userID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), current, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	current := auth.UserFromContext(r.Context())
	id, err := userID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req resetPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.ResetPassword(r.Context(), current, id, req.NewPassword); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(r.Context(), user))
}

func (h *Handler) listUserRoles(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.service.Get(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	roles, err := h.rbac.ListUserRoles(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if roles == nil {
		roles = []rbac.Role{}
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) assignRoles(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.service.Get(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	roles, err := h.rbac.AssignRoles(r.Context(), id, r.URL.Query()["role_list"])
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) unassignRoles(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.service.Get(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	roles, err := h.rbac.UnassignRoles(r.Context(), id, r.URL.Query()["role_list"])
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if roles == nil {
		roles = []rbac.Role{}
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func userID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		return 0, httpx.ErrValidation
	}
	return id, nil
}
