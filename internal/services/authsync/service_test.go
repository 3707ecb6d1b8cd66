package authsync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/user"
	"github.com/miyannishar/creators-nepal-v2/internal/storage/memory"
	"github.com/miyannishar/creators-nepal-v2/internal/supabase"
)

type fakeProvider struct {
	users  map[string]string // email -> id
	tokens map[string]string // token -> id
	emails map[string]string // id -> email
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		users:  make(map[string]string),
		tokens: make(map[string]string),
		emails: make(map[string]string),
	}
}

func (p *fakeProvider) SignUp(_ context.Context, email, password string) (*supabase.AuthResponse, error) {
	if _, ok := p.users[email]; ok {
		return nil, fmt.Errorf("email already registered")
	}
	id := fmt.Sprintf("provider-%d", len(p.users)+1)
	p.users[email] = id
	p.emails[id] = email
	p.tokens["token-"+id] = id
	return &supabase.AuthResponse{
		AccessToken: "token-" + id,
		User:        &supabase.AuthUser{ID: id, Email: email},
	}, nil
}

func (p *fakeProvider) SignIn(_ context.Context, email, password string) (*supabase.AuthResponse, error) {
	id, ok := p.users[email]
	if !ok {
		return nil, fmt.Errorf("invalid credentials")
	}
	return &supabase.AuthResponse{
		AccessToken: "token-" + id,
		User:        &supabase.AuthUser{ID: id, Email: email},
	}, nil
}

func (p *fakeProvider) GetUser(_ context.Context, accessToken string) (*supabase.AuthUser, error) {
	id, ok := p.tokens[accessToken]
	if !ok {
		return nil, fmt.Errorf("invalid token")
	}
	return &supabase.AuthUser{ID: id, Email: p.emails[id]}, nil
}

func TestService_SignUp(t *testing.T) {
	store := memory.New()
	provider := newFakeProvider()
	svc := New(provider, store, nil)

	session, err := svc.SignUp(context.Background(), "mina@example.com", "secret123", "Mina", "Mina Rai")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if session.AccessToken == "" {
		t.Fatal("session missing access token")
	}
	if session.User.Username != "mina" {
		t.Fatalf("Username = %q, want normalized mina", session.User.Username)
	}
	if session.User.ID != "provider-1" {
		t.Fatalf("ID = %q, want provider identity", session.User.ID)
	}

	// The mirror is queryable locally.
	u, err := store.GetUser(context.Background(), "provider-1")
	if err != nil {
		t.Fatalf("get mirror: %v", err)
	}
	if u.Role != user.RoleSupporter {
		t.Fatalf("Role = %q, want supporter", u.Role)
	}

	// A second sign-up with the same username is rejected before the
	// provider is called.
	if _, err := svc.SignUp(context.Background(), "other@example.com", "secret123", "MINA", ""); !errors.Is(err, user.ErrUsernameTaken) {
		t.Fatalf("duplicate username: got %v, want ErrUsernameTaken", err)
	}
}

func TestService_SignInCreatesMissingMirror(t *testing.T) {
	store := memory.New()
	provider := newFakeProvider()
	svc := New(provider, store, nil)

	// Identity exists at the provider but not locally.
	if _, err := provider.SignUp(context.Background(), "raj@example.com", "secret123"); err != nil {
		t.Fatalf("seed provider: %v", err)
	}

	session, err := svc.SignIn(context.Background(), "raj@example.com", "secret123")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if session.User.Username != "raj" {
		t.Fatalf("Username = %q, want email local part", session.User.Username)
	}

	// Signing in again reuses the mirror.
	again, err := svc.SignIn(context.Background(), "raj@example.com", "secret123")
	if err != nil {
		t.Fatalf("second sign in: %v", err)
	}
	if again.User.ID != session.User.ID {
		t.Fatalf("mirror recreated: %q vs %q", again.User.ID, session.User.ID)
	}
}

func TestService_Sync(t *testing.T) {
	store := memory.New()
	provider := newFakeProvider()
	svc := New(provider, store, nil)

	resp, err := provider.SignUp(context.Background(), "sita@example.com", "secret123")
	if err != nil {
		t.Fatalf("seed provider: %v", err)
	}

	u, err := svc.Sync(context.Background(), resp.AccessToken)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if u.Email != "sita@example.com" {
		t.Fatalf("Email = %q", u.Email)
	}

	if _, err := svc.Sync(context.Background(), "bogus"); err == nil {
		t.Fatal("expected error for invalid token")
	}
}

func TestService_SignUpValidation(t *testing.T) {
	svc := New(newFakeProvider(), memory.New(), nil)

	if _, err := svc.SignUp(context.Background(), "", "secret123", "mina", ""); err == nil {
		t.Fatal("expected error for missing email")
	}
	if _, err := svc.SignUp(context.Background(), "a@b.com", "secret123", "  ", ""); err == nil {
		t.Fatal("expected error for blank username")
	}
}
