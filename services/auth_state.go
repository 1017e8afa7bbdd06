package services

import "taxforms-api/models"

// AuthState is the resolved identity of the caller. It is built once per
// request from the session token and passed explicitly to every service.
type AuthState struct {
	UserID   string
	Email    string
	FullName string
	Role     models.Role
}

// IsAdmin reports whether the caller holds the admin role.
func (a AuthState) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// Authenticated reports whether the state carries a user id.
func (a AuthState) Authenticated() bool {
	return a.UserID != ""
}
