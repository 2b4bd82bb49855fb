package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/madvasya/lz-app-backend/internal/platform/db"
	"github.com/madvasya/lz-app-backend/internal/platform/httpx"
	"github.com/madvasya/lz-app-backend/internal/shared"
)

// RepositoryPort defines data access methods for the user directory.
type RepositoryPort interface {
	List(ctx context.Context, params shared.ListParams) ([]User, int64, error)
	GetByID(ctx context.Context, id int64) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	Create(ctx context.Context, user User) (User, error)
	Update(ctx context.Context, user User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error
}

const userColumns = `id, username, email, COALESCE(full_name, ''), hashed_password,
	penalty_points, is_superadmin, created_on, edited_on`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns users plus the unpaginated total.
func (r *Repository) List(ctx context.Context, params shared.ListParams) ([]User, int64, error) {
	query := `SELECT ` + userColumns + ` FROM lz_users`
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
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM lz_users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// GetByID fetches a user by identifier.
func (r *Repository) GetByID(ctx context.Context, id int64) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM lz_users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("%w: user id=%d", httpx.ErrNotFound, id)
		}
		return User{}, err
	}
	return user, nil
}

// GetByUsername fetches a user by username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM lz_users WHERE username = $1`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("%w: user %q", httpx.ErrNotFound, username)
		}
		return User{}, err
	}
	return user, nil
}

// Create inserts a new account. Username and email are globally unique.
func (r *Repository) Create(ctx context.Context, user User) (User, error) {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO lz_users (username, email, full_name, hashed_password, penalty_points, is_superadmin, created_on, edited_on)
		 VALUES ($1, $2, $3, $4, 0, false, $5, $5)
		 RETURNING id, created_on, edited_on`,
		user.Username, user.Email, user.FullName, user.PasswordHash, now,
	).Scan(&user.ID, &user.CreatedOn, &user.EditedOn)
	if err != nil {
		return User{}, uniqueConflict(err, user)
	}
	return user, nil
}

// Update persists profile fields and bumps edited_on.
func (r *Repository) Update(ctx context.Context, user User) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE lz_users SET username = $2, email = $3, full_name = $4, edited_on = $5 WHERE id = $1`,
		user.ID, user.Username, user.Email, user.FullName, time.Now().UTC(),
	)
	if err != nil {
		return uniqueConflict(err, user)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user id=%d", httpx.ErrNotFound, user.ID)
	}
	return nil
}

// UpdatePassword replaces the credential and force-deletes every session of
// the user in one transaction, logging out all devices at once.
func (r *Repository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE lz_users SET hashed_password = $2, edited_on = $3 WHERE id = $1`,
			id, passwordHash, time.Now().UTC(),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: user id=%d", httpx.ErrNotFound, id)
		}
		_, err = tx.Exec(ctx, `DELETE FROM lz_sessions WHERE user_id = $1`, id)
		return err
	})
}

// Delete removes an account; sessions and role memberships cascade away.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lz_users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user id=%d", httpx.ErrNotFound, id)
	}
	return nil
}

func uniqueConflict(err error, user User) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.Contains(pgErr.ConstraintName, "email") {
			return fmt.Errorf("%w: email %q is already registered", httpx.ErrConflict, user.Email)
		}
		return fmt.Errorf("%w: username %q already registered", httpx.ErrConflict, user.Username)
	}
	return err
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName, &user.PasswordHash,
		&user.PenaltyPoints, &user.IsSuperadmin, &user.CreatedOn, &user.EditedOn,
	)
	return user, err
}

var _ RepositoryPort = (*Repository)(nil)
