package users

import "time"

// User represents an account in the directory.
type User struct {
	ID            int64
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	PenaltyPoints int
	IsSuperadmin  bool
	CreatedOn     time.Time
	EditedOn      time.Time
}

// CreateUser carries the fields of a new account.
type CreateUser struct {
	Username string
	Email    string
	FullName string
	Password string
}

// UserPatch carries a partial profile update; nil fields are left unchanged.
type UserPatch struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
}
