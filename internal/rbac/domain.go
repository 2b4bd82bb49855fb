package rbac

// Role is a named, administrator-defined bundle of permissions.
type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Permission is an immutable catalog entry for one grantable capability.
// Rows are seed data; this subsystem only references them.
type Permission struct {
	ID          int64  `json:"id"`
	Key         string `json:"permission_key"`
	Description string `json:"description"`
}

// RolePatch carries a partial role update; nil fields are left unchanged.
type RolePatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Principal describes the authenticated actor the gate evaluates.
type Principal interface {
	GetID() int64
	IsSuperUser() bool
}
