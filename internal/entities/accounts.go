package entities

import "time"

// Role is the capability level assigned to an account.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleAuthor Role = "author"
	RoleViewer Role = "viewer"
)

// ParseRole maps a stored role name back to a Role. Unrecognized values
// degrade to RoleAuthor, the least-privileged role that can still own
// content, instead of failing the read.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin, RoleEditor, RoleAuthor, RoleViewer:
		return Role(s)
	default:
		return RoleAuthor
	}
}

// Valid reports whether the role is one of the four known levels.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleAuthor, RoleViewer:
		return true
	}
	return false
}

// Account is a CMS user. PasswordHash is populated only while the
// accounts repository works with the row; accounts returned from public
// read operations carry an empty hash.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
