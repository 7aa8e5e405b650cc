// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's permission level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a registered author or reader.
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	DisplayName   string    `json:"displayName"`
	Bio           string    `json:"bio"`
	AvatarURL     *string   `json:"avatarUrl"`
	PasswordHash  *string   `json:"-"` // Nil for social-only accounts
	Role          Role      `json:"role"`
	EmailVerified bool      `json:"verified"`
	TOTPSecret    *string   `json:"-"` // Nullable; set during 2FA setup
	TOTPEnabled   bool      `json:"totpEnabled"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// IsAdmin returns true if the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasPassword reports whether the account can sign in with a password.
// Accounts created through social login have none until a reset.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Author is the public projection of a user embedded in articles and comments.
type Author struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	AvatarURL   *string   `json:"avatarUrl"`
}

// Identity links a user to an external OAuth account.
type Identity struct {
	Provider       string    `json:"provider"`
	ProviderUserID string    `json:"providerUserId"`
	UserID         uuid.UUID `json:"userId"`
	CreatedAt      time.Time `json:"createdAt"`
}
