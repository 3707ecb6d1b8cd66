// Package authsync bridges the hosted auth provider and the local users
// table. Credentials and tokens live with the provider; this service proxies
// sign-up and sign-in and keeps the identity mirror current.
package authsync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/user"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/validation"
	"github.com/miyannishar/creators-nepal-v2/internal/storage"
	"github.com/miyannishar/creators-nepal-v2/internal/supabase"
	"github.com/miyannishar/creators-nepal-v2/pkg/logger"
)

// Provider is the slice of the auth provider's API this service needs.
// *supabase.AuthClient satisfies it.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*supabase.AuthResponse, error)
	SignIn(ctx context.Context, email, password string) (*supabase.AuthResponse, error)
	GetUser(ctx context.Context, accessToken string) (*supabase.AuthUser, error)
}

// Session is a provider token pair plus the mirrored local user.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresIn    int       `json:"expires_in,omitempty"`
	User         user.User `json:"user"`
}

// Service mirrors provider identities into local users.
type Service struct {
	provider Provider
	users    storage.UserStore
	log      *logger.Logger
}

// New constructs an authsync service.
func New(provider Provider, users storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("authsync")
	}
	return &Service{
		provider: provider,
		users:    users,
		log:      log,
	}
}

// SignUp registers credentials with the provider and mirrors the identity
// locally under the requested username.
func (s *Service) SignUp(ctx context.Context, email, password, username, displayName string) (Session, error) {
	email = strings.TrimSpace(email)
	username = user.NormalizeUsername(username)
	if email == "" || password == "" {
		return Session{}, validation.New("email and password are required")
	}
	if username == "" {
		return Session{}, validation.New("username is required")
	}
	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return Session{}, user.ErrUsernameTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Session{}, err
	}

	resp, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return Session{}, fmt.Errorf("provider sign-up: %w", err)
	}
	if resp.User == nil {
		return Session{}, fmt.Errorf("provider returned no identity")
	}

	u, err := s.users.CreateUser(ctx, user.User{
		ID:          resp.User.ID,
		Email:       email,
		Username:    username,
		DisplayName: strings.TrimSpace(displayName),
		Role:        user.RoleSupporter,
	})
	if err != nil {
		return Session{}, err
	}

	s.log.WithField("user_id", u.ID).Info("identity mirrored on sign-up")
	return Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
		User:         u,
	}, nil
}

// SignIn exchanges credentials with the provider and returns the mirrored
// user, creating the mirror when it is missing.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	resp, err := s.provider.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return Session{}, fmt.Errorf("provider sign-in: %w", err)
	}
	if resp.User == nil {
		return Session{}, fmt.Errorf("provider returned no identity")
	}

	u, err := s.ensureMirror(ctx, resp.User)
	if err != nil {
		return Session{}, err
	}

	return Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
		User:         u,
	}, nil
}

// Sync resolves an access token with the provider and refreshes the mirror.
func (s *Service) Sync(ctx context.Context, accessToken string) (user.User, error) {
	identity, err := s.provider.GetUser(ctx, accessToken)
	if err != nil {
		return user.User{}, fmt.Errorf("resolve token: %w", err)
	}
	return s.ensureMirror(ctx, identity)
}

func (s *Service) ensureMirror(ctx context.Context, identity *supabase.AuthUser) (user.User, error) {
	u, err := s.users.GetUser(ctx, identity.ID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return user.User{}, err
	}

	username := usernameFromIdentity(identity)
	u, err = s.users.CreateUser(ctx, user.User{
		ID:       identity.ID,
		Email:    identity.Email,
		Username: username,
		Role:     user.RoleSupporter,
	})
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", u.ID).Info("identity mirrored on sign-in")
	return u, nil
}

func usernameFromIdentity(identity *supabase.AuthUser) string {
	if name, ok := identity.UserMetadata["username"].(string); ok && name != "" {
		return user.NormalizeUsername(name)
	}
	local := identity.Email
	if at := strings.IndexByte(local, '@'); at > 0 {
		local = local[:at]
	}
	if local == "" {
		local = "user-" + identity.ID
	}
	return user.NormalizeUsername(local)
}
