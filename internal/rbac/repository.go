package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/madvasya/lz-app-backend/internal/platform/db"
	"github.com/madvasya/lz-app-backend/internal/platform/httpx"
	"github.com/madvasya/lz-app-backend/internal/shared"
)

// RepositoryPort defines data access methods for roles, the permission
// catalog, and the membership join tables.
type RepositoryPort interface {
	ListRoles(ctx context.Context, params shared.ListParams) ([]Role, int64, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, name, description string) (Role, error)
	UpdateRole(ctx context.Context, role Role) error
	DeleteRole(ctx context.Context, id int64) error

	ListCatalog(ctx context.Context) ([]Permission, error)
	ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error)
	AssignPermissions(ctx context.Context, roleID int64, keys []string) ([]Permission, error)
	UnassignPermissions(ctx context.Context, roleID int64, keys []string) ([]Permission, error)

	ListUserRoles(ctx context.Context, userID int64) ([]Role, error)
	AssignRoles(ctx context.Context, userID int64, names []string) ([]Role, error)
	UnassignRoles(ctx context.Context, userID int64, names []string) ([]Role, error)
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns roles plus the unpaginated total.
func (r *Repository) ListRoles(ctx context.Context, params shared.ListParams) ([]Role, int64, error) {
	query := `SELECT id, name, COALESCE(description, '') FROM lz_roles`
	switch params.OrderBy {
	case "":
		query += ` ORDER BY id`
	default:
		// OrderBy is whitelisted at parse time.
		query += ` ORDER BY ` + params.OrderBy
		if params.Desc {
			query += ` DESC`
		}
	}
	if params.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, params.Limit)
	}
	if params.Offset > 0 {
		query += fmt.Sprintf(` OFFSET %d`, params.Offset)
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description); err != nil {
			return nil, 0, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM lz_roles`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(description, '') FROM lz_roles WHERE id = $1`, id,
	).Scan(&role.ID, &role.Name, &role.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role. Names are unique with case-sensitive
// exact matching, enforced by the table constraint.
func (r *Repository) CreateRole(ctx context.Context, name, description string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`INSERT INTO lz_roles (name, description) VALUES ($1, $2) RETURNING id, name, COALESCE(description, '')`,
		name, description,
	).Scan(&role.ID, &role.Name, &role.Description)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Role{}, fmt.Errorf("%w: role %q already exists", httpx.ErrConflict, name)
		}
		return Role{}, err
	}
	return role, nil
}

// UpdateRole persists a role's name and description.
func (r *Repository) UpdateRole(ctx context.Context, role Role) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE lz_roles SET name = $2, description = $3 WHERE id = $1`,
		role.ID, role.Name, role.Description,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: role %q already exists", httpx.ErrConflict, role.Name)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role %d", httpx.ErrNotFound, role.ID)
	}
	return nil
}

// DeleteRole removes a role. The join tables cascade, so the role drops out
// of every user's role list and permission links without extra statements.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lz_roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
	}
	return nil
}

// ListCatalog returns the whole permission catalog.
func (r *Repository) ListCatalog(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, permission_key, description FROM lz_permissions ORDER BY permission_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// ListRolePermissions returns the permissions granted to a role.
func (r *Repository) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	if err := r.roleExists(ctx, r.pool, roleID); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, rolePermissionsQuery, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

const rolePermissionsQuery = `
SELECT p.id, p.permission_key, p.description
FROM lz_permissions p
JOIN lz_permission_in_role pir ON pir.permission_id = p.id
WHERE pir.role_id = $1
ORDER BY p.permission_key`

// AssignPermissions grants keys to a role one by one inside a single
// transaction. An unknown key aborts with NotFound and a duplicate grant
// with Conflict; either way the transaction rolls back, so the operation
// is all-or-nothing.
func (r *Repository) AssignPermissions(ctx context.Context, roleID int64, keys []string) ([]Permission, error) {
	var granted []Permission
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.roleExists(ctx, tx, roleID); err != nil {
			return err
		}
		for _, key := range keys {
			var permissionID int64
			err := tx.QueryRow(ctx,
				`SELECT id FROM lz_permissions WHERE permission_key = $1`, key,
			).Scan(&permissionID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("%w: permission %q", httpx.ErrNotFound, key)
				}
				return err
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO lz_permission_in_role (role_id, permission_id) VALUES ($1, $2)`,
				roleID, permissionID,
			)
			if err != nil {
				if db.IsUniqueViolation(err) {
					return fmt.Errorf("%w: permission %q is already in role", httpx.ErrConflict, key)
				}
				return err
			}
		}
		rows, err := tx.Query(ctx, rolePermissionsQuery, roleID)
		if err != nil {
			return err
		}
		defer rows.Close()
		granted, err = scanPermissions(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return granted, nil
}

// UnassignPermissions filters keys out of a role's grants. Keys the role
// does not hold are silently ignored.
func (r *Repository) UnassignPermissions(ctx context.Context, roleID int64, keys []string) ([]Permission, error) {
	if err := r.roleExists(ctx, r.pool, roleID); err != nil {
		return nil, err
	}
	_, err := r.pool.Exec(ctx,
		`DELETE FROM lz_permission_in_role
		 WHERE role_id = $1
		   AND permission_id IN (SELECT id FROM lz_permissions WHERE permission_key = ANY($2))`,
		roleID, keys,
	)
	if err != nil {
		return nil, err
	}
	return r.ListRolePermissions(ctx, roleID)
}

// ListUserRoles returns the roles a user holds.
func (r *Repository) ListUserRoles(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx, userRolesQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoles(rows)
}

const userRolesQuery = `
SELECT r.id, r.name, COALESCE(r.description, '')
FROM lz_roles r
JOIN lz_user_roles ur ON ur.role_id = r.id
WHERE ur.user_id = $1
ORDER BY r.name`

// AssignRoles grants the named roles to a user inside a single transaction.
// Unknown names abort with NotFound, already-held roles with Conflict.
func (r *Repository) AssignRoles(ctx context.Context, userID int64, names []string) ([]Role, error) {
	var held []Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, name := range names {
			var roleID int64
			err := tx.QueryRow(ctx, `SELECT id FROM lz_roles WHERE name = $1`, name).Scan(&roleID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("%w: role %q", httpx.ErrNotFound, name)
				}
				return err
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO lz_user_roles (user_id, role_id) VALUES ($1, $2)`,
				userID, roleID,
			)
			if err != nil {
				if db.IsUniqueViolation(err) {
					return fmt.Errorf("%w: user already has %q role", httpx.ErrConflict, name)
				}
				return err
			}
		}
		rows, err := tx.Query(ctx, userRolesQuery, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		held, err = scanRoles(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return held, nil
}

// UnassignRoles filters the named roles out of a user's memberships.
// Names not held are silently ignored.
func (r *Repository) UnassignRoles(ctx context.Context, userID int64, names []string) ([]Role, error) {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM lz_user_roles
		 WHERE user_id = $1
		   AND role_id IN (SELECT id FROM lz_roles WHERE name = ANY($2))`,
		userID, names,
	)
	if err != nil {
		return nil, err
	}
	return r.ListUserRoles(ctx, userID)
}

// EffectivePermissions returns the deduplicated permission keys across all
// roles the user holds.
func (r *Repository) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
SELECT DISTINCT p.permission_key
FROM lz_permissions p
JOIN lz_permission_in_role pir ON pir.permission_id = p.id
JOIN lz_user_roles ur ON ur.role_id = pir.role_id
WHERE ur.user_id = $1
ORDER BY p.permission_key`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Repository) roleExists(ctx context.Context, q queryRower, roleID int64) error {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM lz_roles WHERE id = $1`, roleID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: role %d", httpx.ErrNotFound, roleID)
	}
	return err
}

func scanPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Key, &perm.Description); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

func scanRoles(rows pgx.Rows) ([]Role, error) {
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

var _ RepositoryPort = (*Repository)(nil)
