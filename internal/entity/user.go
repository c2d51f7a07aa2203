package entity

import "time"

type Permission string

const (
	PermissionAdmin   Permission = "ADMIN"
	PermissionCreate  Permission = "CREATE"
	PermissionApprove Permission = "APPROVE"
	PermissionArchive Permission = "ARCHIVE"
	PermissionDelete  Permission = "DELETE"
	PermissionEdit    Permission = "EDIT"
)

var Permissions = []Permission{
	PermissionAdmin,
	PermissionCreate,
	PermissionApprove,
	PermissionArchive,
	PermissionDelete,
	PermissionEdit,
}

func (p Permission) Valid() bool {
	for _, permission := range Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

type User struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	PasswordHash string       `json:"-"`
	Permissions  []Permission `json:"permissions"`
	// LastTokenReset invalidates every token issued before it.
	LastTokenReset time.Time `json:"last_token_reset"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (u *User) HasPermission(p Permission) bool {
	for _, permission := range u.Permissions {
		if permission == p {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.HasPermission(PermissionAdmin)
}
