package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/madvasya/lz-app-backend/internal/platform/httpx"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	issuer *Issuer
}

// NewService constructs a new Service.
func NewService(repo Repository, issuer *Issuer) *Service {
	return &Service{repo: repo, issuer: issuer}
}

// Issuer exposes the token issuer for collaborators that verify access tokens.
func (s *Service) Issuer() *Issuer { return s.issuer }

// Login validates credentials, opens a session, and returns a token pair.
// The access token carries the username; the refresh token carries the
// session identifier.
func (s *Service) Login(ctx context.Context, username, password string) (TokenPair, error) {
	user, err := s.repo.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return TokenPair{}, fmt.Errorf("%w: incorrect username or password", httpx.ErrUnauthorized)
		}
		return TokenPair{}, err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return TokenPair{}, fmt.Errorf("%w: incorrect username or password", httpx.ErrUnauthorized)
	}
	sess, err := s.repo.CreateSession(ctx, user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	return s.tokenPair(user.Username, sess)
}

// Refresh exchanges a refresh token for a new token pair. The presented
// session is deleted and replaced, so a refresh token is single-use: the
// second exchange of the same token fails with Unauthorized.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	id, err := s.sessionID(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	sess, err := s.repo.RotateSession(ctx, id)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return TokenPair{}, fmt.Errorf("%w: session not found", httpx.ErrUnauthorized)
		}
		return TokenPair{}, err
	}
	user, err := s.repo.FindUserByID(ctx, sess.UserID)
	if err != nil {
		return TokenPair{}, err
	}
	return s.tokenPair(user.Username, sess)
}

// Logout revokes the session named by the refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	id, err := s.sessionID(refreshToken)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return fmt.Errorf("%w: session not found", httpx.ErrUnauthorized)
		}
		return err
	}
	return nil
}

// sessionID extracts the session identifier from a refresh token. Expiry is
// deliberately not checked: the session row governs refresh liveness.
func (s *Service) sessionID(refreshToken string) (uuid.UUID, error) {
	claims, err := s.issuer.DecodeSkipExpiry(refreshToken)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed session id", httpx.ErrInvalidToken)
	}
	return id, nil
}

func (s *Service) tokenPair(username string, sess Session) (TokenPair, error) {
	access, err := s.issuer.Issue(username, TokenAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.issuer.Issue(sess.ID.String(), TokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}
