package auth

import (
	"time"

	"github.com/google/uuid"
)

// User is the authentication view of an account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsSuperadmin bool
}

// GetID returns the user's identifier.
func (u *User) GetID() int64 { return u.ID }

// IsSuperUser reports whether the user bypasses permission checks.
func (u *User) IsSuperUser() bool { return u.IsSuperadmin }

// Session is one live refresh token bound to its owning user. A session
// exists exactly while the row exists; rotation deletes and recreates it.
type Session struct {
	ID        uuid.UUID
	UserID    int64
	CreatedOn time.Time
	IsActive  bool
}

// TokenPair is the response body of login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}
