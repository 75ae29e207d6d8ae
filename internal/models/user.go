package models

import "time"

// Roles recognized by the role guard. Matching is exact and case-sensitive.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents a persisted account
type User struct {
	UserID       string    `json:"user_id" dynamodbav:"user_id"`
	Username     string    `json:"username" dynamodbav:"username"` // Primary key
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`   // bcrypt hash (never in JSON)
	Role         string    `json:"role" dynamodbav:"role"`         // user/admin
	CreatedAt    time.Time `json:"created_at" dynamodbav:"created_at"`
}

// Identity is the authenticated caller decoded from a bearer token
type Identity struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// SignupRequest represents signup request payload
type SignupRequest struct {
	Username string `json:"username" form:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" form:"password" validate:"required,min=6"`
	Role     string `json:"role" form:"role"`
}

// LoginRequest represents login request payload. Form tags keep the
// OAuth2 password-form flavor of /auth/token working alongside JSON.
type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}
