package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthType represents how a user authenticates
type AuthType string

const (
	AuthTypeLocal AuthType = "local" // username/password kept in our database
	AuthTypeOIDC  AuthType = "oidc"  // federated identity, no local password
)

// User represents an identity record. PasswordHash is empty for
// federated accounts.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	AuthType     AuthType  `json:"auth_type"`
	SecondFactor bool      `json:"second_factor"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastLogin    time.Time `json:"last_login,omitempty"`
}

// CreateUserRequest represents the request body for signup
type CreateUserRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Email        string `json:"email,omitempty"`
	SecondFactor bool   `json:"second_factor"`
}
