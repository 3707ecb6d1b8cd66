// Package user defines platform account identities mirrored from the hosted
// auth provider.
package user

import (
	"errors"
	"strings"
	"time"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/validation"
)

// Role classifies what a user may do on the platform.
type Role string

const (
	RoleSupporter Role = "supporter"
	RoleCreator   Role = "creator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleSupporter, RoleCreator, RoleAdmin:
		return true
	}
	return false
}

// User is a platform account. The ID matches the hosted auth provider's
// subject so sessions map directly onto rows.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ErrUsernameTaken is returned when a username is already claimed.
var ErrUsernameTaken = errors.New("username already taken")

// NormalizeUsername lowercases and trims a username for uniqueness checks.
func NormalizeUsername(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Validate checks the fields a registration must carry.
func (u User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return validation.New("email is required")
	}
	if NormalizeUsername(u.Username) == "" {
		return validation.New("username is required")
	}
	if u.Role != "" && !u.Role.Valid() {
		return validation.New("unknown role")
	}
	return nil
}
