package users

import (
	"context"
	"errors"
	"testing"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/user"
	"github.com/miyannishar/creators-nepal-v2/internal/storage/memory"
)

func TestService_Register(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	u, err := svc.Register(context.Background(), "auth-1", "mina@example.com", "Mina", "Mina Shrestha")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.ID != "auth-1" {
		t.Fatalf("ID = %q, want provider ID", u.ID)
	}
	if u.Username != "mina" {
		t.Fatalf("Username = %q, want normalized %q", u.Username, "mina")
	}
	if u.Role != user.RoleSupporter {
		t.Fatalf("Role = %q, want supporter", u.Role)
	}

	if _, err := svc.Register(context.Background(), "auth-2", "other@example.com", "MINA", ""); !errors.Is(err, user.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	svc := New(memory.New(), nil)

	if _, err := svc.Register(context.Background(), "auth-1", "", "mina", ""); err == nil {
		t.Fatal("expected error for missing email")
	}
	if _, err := svc.Register(context.Background(), "auth-1", "mina@example.com", "  ", ""); err == nil {
		t.Fatal("expected error for blank username")
	}
}

func TestService_UpdateProfile(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	u, err := svc.Register(context.Background(), "auth-1", "mina@example.com", "mina", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	newName := "Mina S."
	newAvatar := "https://cdn.example.com/a.png"
	updated, err := svc.UpdateProfile(context.Background(), u.ID, nil, &newName, &newAvatar)
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.DisplayName != newName || updated.AvatarURL != newAvatar {
		t.Fatalf("update not applied: %#v", updated)
	}
	if updated.Username != "mina" {
		t.Fatalf("username changed unexpectedly: %q", updated.Username)
	}

	empty := "  "
	if _, err := svc.UpdateProfile(context.Background(), u.ID, &empty, nil, nil); err == nil {
		t.Fatal("expected error for blank username")
	}
}

func TestService_Promote(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	u, err := svc.Register(context.Background(), "auth-1", "mina@example.com", "mina", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	promoted, err := svc.Promote(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted.Role != user.RoleCreator {
		t.Fatalf("Role = %q, want creator", promoted.Role)
	}

	// Promoting again is a no-op.
	again, err := svc.Promote(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("promote again: %v", err)
	}
	if again.Role != user.RoleCreator {
		t.Fatalf("Role = %q after second promote", again.Role)
	}
}

func TestService_GetByUsername(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	if _, err := svc.Register(context.Background(), "auth-1", "mina@example.com", "mina", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	u, err := svc.GetByUsername(context.Background(), "MINA")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if u.ID != "auth-1" {
		t.Fatalf("lookup returned wrong user: %#v", u)
	}
}
