// Package users manages the local mirror of auth-provider identities.
package users

import (
	"context"
	"strings"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/user"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/validation"
	"github.com/miyannishar/creators-nepal-v2/internal/storage"
	"github.com/miyannishar/creators-nepal-v2/pkg/logger"
)

// Service manages user records. Credentials live with the auth provider;
// this service only mirrors identity and profile fields.
type Service struct {
	store storage.UserStore
	log   *logger.Logger
}

// New constructs a users service.
func New(store storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{store: store, log: log}
}

// Register mirrors a provider identity into the local users table. The ID is
// the provider's user ID so tokens resolve without a mapping table.
func (s *Service) Register(ctx context.Context, id, email, username, displayName string) (user.User, error) {
	id = strings.TrimSpace(id)
	email = strings.TrimSpace(email)
	username = user.NormalizeUsername(username)
	displayName = strings.TrimSpace(displayName)

	if email == "" {
		return user.User{}, validation.New("email is required")
	}

	u := user.User{
		ID:          id,
		Email:       email,
		Username:    username,
		DisplayName: displayName,
		Role:        user.RoleSupporter,
	}
	if err := u.Validate(); err != nil {
		return user.User{}, err
	}

	u, err := s.store.CreateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", u.ID).
		WithField("username", u.Username).
		Info("user registered")
	return u, nil
}

// UpdateProfile updates mutable profile fields. Nil fields are left as-is.
func (s *Service) UpdateProfile(ctx context.Context, userID string, username, displayName, avatarURL *string) (user.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return user.User{}, err
	}

	if username != nil {
		normalized := user.NormalizeUsername(*username)
		if normalized == "" {
			return user.User{}, validation.New("username cannot be empty")
		}
		u.Username = normalized
	}
	if displayName != nil {
		u.DisplayName = strings.TrimSpace(*displayName)
	}
	if avatarURL != nil {
		u.AvatarURL = strings.TrimSpace(*avatarURL)
	}
	if err := u.Validate(); err != nil {
		return user.User{}, err
	}

	u, err = s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", u.ID).Info("user profile updated")
	return u, nil
}

// Promote upgrades a supporter to the creator role. Promoting a creator or
// admin is a no-op.
func (s *Service) Promote(ctx context.Context, userID string) (user.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return user.User{}, err
	}
	if u.Role != user.RoleSupporter {
		return u, nil
	}

	u.Role = user.RoleCreator
	u, err = s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", u.ID).Info("user promoted to creator")
	return u, nil
}

// Get retrieves a user by ID.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// GetByUsername retrieves a user by username, case-insensitively.
func (s *Service) GetByUsername(ctx context.Context, username string) (user.User, error) {
	return s.store.GetUserByUsername(ctx, username)
}

// List returns a page of users.
func (s *Service) List(ctx context.Context, page storage.Page) ([]user.User, error) {
	return s.store.ListUsers(ctx, page)
}
