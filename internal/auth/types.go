package auth

import "errors"

// Role represents an authorisation tier in issued tokens.
type Role string

// RoleAdmin is the daemon's single operator identity. The credential it
// maps to comes from security.admin in the config file.
const RoleAdmin Role = "admin"

// Token type claim values. Access tokens authenticate requests; refresh
// tokens may only be exchanged for a new pair.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalid       = errors.New("invalid token")
)
