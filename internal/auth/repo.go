package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/madvasya/lz-app-backend/internal/platform/db"
	"github.com/madvasya/lz-app-backend/internal/platform/httpx"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	FindUserByID(ctx context.Context, id int64) (*User, error)
	CreateSession(ctx context.Context, userID int64) (Session, error)
	RotateSession(ctx context.Context, id uuid.UUID) (Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindUserByUsername fetches a user by username.
func (r *PGRepository) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, hashed_password, is_superadmin FROM lz_users WHERE username = $1`,
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsSuperadmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindUserByID fetches a user by identifier.
func (r *PGRepository) FindUserByID(ctx context.Context, id int64) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, hashed_password, is_superadmin FROM lz_users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsSuperadmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateSession inserts a new session row bound to userID.
func (r *PGRepository) CreateSession(ctx context.Context, userID int64) (Session, error) {
	sess := Session{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedOn: time.Now().UTC(),
		IsActive:  true,
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO lz_sessions (uuid, user_id, created_on, is_active) VALUES ($1, $2, $3, $4)`,
		sess.ID, sess.UserID, sess.CreatedOn, sess.IsActive,
	)
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// RotateSession deletes the session and creates a replacement for the same
// user inside one transaction, so the old identifier can never be used twice.
func (r *PGRepository) RotateSession(ctx context.Context, id uuid.UUID) (Session, error) {
	var sess Session
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var userID int64
		err := tx.QueryRow(ctx,
			`DELETE FROM lz_sessions WHERE uuid = $1 RETURNING user_id`, id,
		).Scan(&userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return httpx.ErrNotFound
			}
			return err
		}
		sess = Session{
			ID:        uuid.New(),
			UserID:    userID,
			CreatedOn: time.Now().UTC(),
			IsActive:  true,
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO lz_sessions (uuid, user_id, created_on, is_active) VALUES ($1, $2, $3, $4)`,
			sess.ID, sess.UserID, sess.CreatedOn, sess.IsActive,
		)
		return err
	})
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// DeleteSession removes a session row. Returns httpx.ErrNotFound when the
// identifier does not match a live session.
func (r *PGRepository) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lz_sessions WHERE uuid = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
