package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/madvasya/lz-app-backend/internal/auth"
	"github.com/madvasya/lz-app-backend/internal/platform/httpx"
	"github.com/madvasya/lz-app-backend/internal/rbac"
	"github.com/madvasya/lz-app-backend/internal/shared"
)

// Service handles user directory business rules.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns users plus the unpaginated total.
func (s *Service) List(ctx context.Context, params shared.ListParams) ([]User, int64, error) {
	return s.repo.List(ctx, params)
}

// Get fetches a user by identifier.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByUsername fetches a user by username.
func (s *Service) GetByUsername(ctx context.Context, username string) (User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// Create registers a new account. Fails with Conflict when the username or
// email is already registered.
func (s *Service) Create(ctx context.Context, input CreateUser) (User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return User{}, fmt.Errorf("%w: username required", httpx.ErrValidation)
	}
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return User{}, fmt.Errorf("%w: username %q already registered", httpx.ErrConflict, username)
	} else if !errors.Is(err, httpx.ErrNotFound) {
		return User{}, err
	}
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return User{}, err
	}
	return s.repo.Create(ctx, User{
		Username:     username,
		Email:        input.Email,
		FullName:     input.FullName,
		PasswordHash: hash,
	})
}

// Update applies a partial profile update. Superadmin profiles are
// immutable through this path.
func (s *Service) Update(ctx context.Context, id int64, patch UserPatch) (User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if user.IsSuperadmin {
		return User{}, fmt.Errorf("%w: admin profile cannot be edited", httpx.ErrForbidden)
	}
	if patch.Username != nil {
		username := strings.TrimSpace(*patch.Username)
		if username == "" {
			return User{}, fmt.Errorf("%w: username required", httpx.ErrValidation)
		}
		user.Username = username
	}
	if patch.Email != nil {
		user.Email = *patch.Email
	}
	if patch.FullName != nil {
		user.FullName = *patch.FullName
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return User{}, err
	}
	return s.repo.GetByID(ctx, id)
}

// ChangePassword is the self-service path: it requires proof of the old
// password and then drops every live session of the user.
func (s *Service) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(oldPassword, user.PasswordHash) {
		return fmt.Errorf("%w: old password is incorrect", httpx.ErrValidation)
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, id, hash)
}

// ResetPassword is the administrative path: superadmin only, never against
// yourself, and never against another superadmin (who must use the
// self-service change with old-password proof). All of the target's
// sessions are dropped.
func (s *Service) ResetPassword(ctx context.Context, actor rbac.Principal, targetID int64, newPassword string) error {
	if !actor.IsSuperUser() || targetID == actor.GetID() {
		return httpx.ErrForbidden
	}
	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target.IsSuperadmin {
		return fmt.Errorf("%w: admin password cannot be reset", httpx.ErrForbidden)
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, targetID, hash)
}

// Delete removes an account. Self-deletion is rejected and superadmins are
// protected from deletion entirely.
func (s *Service) Delete(ctx context.Context, actor rbac.Principal, targetID int64) error {
	if targetID == actor.GetID() {
		return fmt.Errorf("%w: cannot delete yourself", httpx.ErrForbidden)
	}
	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target.IsSuperadmin {
		return fmt.Errorf("%w: admin user is protected from deletion", httpx.ErrForbidden)
	}
	return s.repo.Delete(ctx, targetID)
}
