package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/madvasya/lz-app-backend/internal/platform/httpx"
	"github.com/madvasya/lz-app-backend/internal/shared"
)

const catalogCacheKey = "lz:permission_catalog"

// Service orchestrates role management and the authorization gate.
//
// The optional cache holds the permission catalog only. Catalog rows are
// immutable seed data, so caching them is safe; effective permissions are
// never cached and role edits take effect on the next request.
type Service struct {
	repo     RepositoryPort
	cache    *redis.Client
	cacheTTL time.Duration
}

// NewService constructs a Service. cache may be nil to disable catalog caching.
func NewService(repo RepositoryPort, cache *redis.Client, cacheTTL time.Duration) *Service {
	return &Service{repo: repo, cache: cache, cacheTTL: cacheTTL}
}

// ListRoles returns roles plus the unpaginated total.
func (s *Service) ListRoles(ctx context.Context, params shared.ListParams) ([]Role, int64, error) {
	return s.repo.ListRoles(ctx, params)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role. Fails with Conflict when the name is taken.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", httpx.ErrValidation)
	}
	return s.repo.CreateRole(ctx, name, description)
}

// UpdateRole applies a partial update; only provided fields change.
// Renaming checks uniqueness against all other roles.
func (s *Service) UpdateRole(ctx context.Context, id int64, patch RolePatch) (Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return Role{}, fmt.Errorf("%w: role name required", httpx.ErrValidation)
		}
		role.Name = name
	}
	if patch.Description != nil {
		role.Description = *patch.Description
	}
	if err := s.repo.UpdateRole(ctx, role); err != nil {
		return Role{}, err
	}
	return role, nil
}

// DeleteRole removes a role; membership links cascade away with it.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return s.repo.DeleteRole(ctx, id)
}

// ListCatalog returns the full permission catalog, from cache when possible.
func (s *Service) ListCatalog(ctx context.Context) ([]Permission, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, catalogCacheKey).Bytes(); err == nil {
			var perms []Permission
			if json.Unmarshal(raw, &perms) == nil {
				return perms, nil
			}
		}
	}
	perms, err := s.repo.ListCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if raw, err := json.Marshal(perms); err == nil {
			s.cache.Set(ctx, catalogCacheKey, raw, s.cacheTTL)
		}
	}
	return perms, nil
}

// ListRolePermissions returns the permissions granted to a role.
func (s *Service) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	return s.repo.ListRolePermissions(ctx, roleID)
}

// AssignPermissions grants catalog keys to a role. All-or-nothing: an
// unknown key (NotFound) or an already-held key (Conflict) aborts the whole
// call with no partial effect.
func (s *Service) AssignPermissions(ctx context.Context, roleID int64, keys []string) ([]Permission, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: permission list required", httpx.ErrValidation)
	}
	return s.repo.AssignPermissions(ctx, roleID, keys)
}

// UnassignPermissions removes keys from a role; absent keys are ignored.
func (s *Service) UnassignPermissions(ctx context.Context, roleID int64, keys []string) ([]Permission, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: permission list required", httpx.ErrValidation)
	}
	return s.repo.UnassignPermissions(ctx, roleID, keys)
}

// ListUserRoles returns the roles a user holds.
func (s *Service) ListUserRoles(ctx context.Context, userID int64) ([]Role, error) {
	return s.repo.ListUserRoles(ctx, userID)
}

// AssignRoles grants the named roles to a user (NotFound for unknown names,
// Conflict for roles already held).
func (s *Service) AssignRoles(ctx context.Context, userID int64, names []string) ([]Role, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: role list required", httpx.ErrValidation)
	}
	return s.repo.AssignRoles(ctx, userID, names)
}

// UnassignRoles removes the named roles from a user; absent names are ignored.
func (s *Service) UnassignRoles(ctx context.Context, userID int64, names []string) ([]Role, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: role list required", httpx.ErrValidation)
	}
	return s.repo.UnassignRoles(ctx, userID, names)
}

// EffectivePermissions returns the union of permission keys across every
// role the principal holds. A superadmin is treated as holding the full
// catalog.
func (s *Service) EffectivePermissions(ctx context.Context, principal Principal) ([]string, error) {
	if principal.IsSuperUser() {
		catalog, err := s.ListCatalog(ctx)
		if err != nil {
			return nil, err
		}
		keys := make([]string, len(catalog))
		for i, perm := range catalog {
			keys[i] = perm.Key
		}
		return keys, nil
	}
	return s.repo.EffectivePermissions(ctx, principal.GetID())
}

// Check is the authorization gate: superadmins pass immediately, everyone
// else must hold key through some role. It reads current state on every
// call, so role and permission edits apply to the next request.
func (s *Service) Check(ctx context.Context, principal Principal, key string) error {
	if principal.IsSuperUser() {
		return nil
	}
	granted, err := s.repo.EffectivePermissions(ctx, principal.GetID())
	if err != nil {
		return err
	}
	for _, have := range granted {
		if have == key {
			return nil
		}
	}
	return fmt.Errorf("%w: not enough permissions", httpx.ErrForbidden)
}
