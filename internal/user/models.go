package user

import (
	"errors"
	"time"
)

// User is a member of exactly one organization. Identity is never shared
// across organizations; every data access is filtered by OrganizationID.
type User struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Name           string     `json:"name"`
	Role           string     `json:"role"` // "owner", "admin" or "member"
	OrganizationID string     `json:"organization_id"`
	AvatarURL      string     `json:"avatar_url,omitempty"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CreateUserInput is the input for creating a user at registration or
// invite time.
type CreateUserInput struct {
	Email          string
	Password       string
	Name           string
	Role           string
	OrganizationID string
}

var (
	// ErrNotFound is returned when no user matches, including when a user
	// exists but belongs to another organization.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidResetToken covers unknown, expired and already-consumed
	// password reset tokens alike.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)
