package models

import "strings"

// User represents a user as returned by the backend
type User struct {
	ID       int64   `json:"id_usuario"`
	FullName string  `json:"nome_completo"`
	Email    string  `json:"email"`
	Position *string `json:"cargo,omitempty"`
	Role     string  `json:"role"`
	Phone    *string `json:"telefone,omitempty"`
	IsActive bool    `json:"ativo"`
}

// LoginRequest represents the request body for user login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"senha"`
}

// LoginResponse represents the response body for successful login
type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

// RegisterRequest represents the request body for self registration
type RegisterRequest struct {
	FullName string `json:"nome_completo"`
	Email    string `json:"email"`
	Password string `json:"senha"`
}

// UpdateProfileRequest represents the request body for updating the caller's profile
type UpdateProfileRequest struct {
	FullName *string `json:"nome_completo,omitempty"`
	Position *string `json:"cargo,omitempty"`
	Phone    *string `json:"telefone,omitempty"`
}

// RoleUpdateRequest represents the request body for changing a user's role
type RoleUpdateRequest struct {
	Role string `json:"role"`
}

// Roles understood by the backend.
const (
	RoleAdmin   = "Admin"
	RoleGerente = "Gerente"
	RoleMembro  = "Membro"
)

// ValidRoles defines the available roles in the system
var ValidRoles = []string{
	RoleAdmin,
	RoleGerente,
	RoleMembro,
}

// NormalizeRole maps any casing of a role ("ADMIN", "admin") to its canonical form.
// Unknown roles are returned unchanged.
func NormalizeRole(role string) string {
	for _, r := range ValidRoles {
		if strings.EqualFold(r, role) {
			return r
		}
	}
	return role
}

// IsValidRole checks if a role is valid
func IsValidRole(role string) bool {
	for _, validRole := range ValidRoles {
		if strings.EqualFold(role, validRole) {
			return true
		}
	}
	return false
}

// HasRole checks if the user has a specific role
func (u *User) HasRole(role string) bool {
	return u != nil && strings.EqualFold(u.Role, role)
}

// HasAnyRole checks if the user has any of the specified roles
func (u *User) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

// GetDisplayName returns the user's display name
func (u *User) GetDisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
