package creators

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/support"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/user"
	"github.com/miyannishar/creators-nepal-v2/internal/storage/memory"
)

func seedUser(t *testing.T, store *memory.Store, id, username string) user.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.User{
		ID:       id,
		Email:    username + "@example.com",
		Username: username,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func TestService_Provision(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil)
	seedUser(t, store, "u1", "mina")

	profile, err := svc.Provision(context.Background(), "u1", "I paint thangka", "art", 500)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if profile.UserID != "u1" || profile.SupportTierNPR != 500 {
		t.Fatalf("unexpected profile: %#v", profile)
	}
	if profile.FollowersCount != 0 || profile.PostsCount != 0 || profile.EarningsNPR != 0 {
		t.Fatalf("counters must start at zero: %#v", profile)
	}

	u, err := store.GetUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Role != user.RoleCreator {
		t.Fatalf("Role = %q, want creator after provisioning", u.Role)
	}

	if _, err := svc.Provision(context.Background(), "u1", "", "art", 500); !errors.Is(err, ErrAlreadyCreator) {
		t.Fatalf("expected ErrAlreadyCreator, got %v", err)
	}
}

func TestService_ProvisionUnknownUser(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil)

	if _, err := svc.Provision(context.Background(), "missing", "", "art", 0); err == nil {
		t.Fatal("expected error for unknown user")
	}
}

func TestService_UpdateProfile(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil)
	seedUser(t, store, "u1", "mina")

	if _, err := svc.Provision(context.Background(), "u1", "old bio", "art", 500); err != nil {
		t.Fatalf("provision: %v", err)
	}

	newBio := "new bio"
	newTier := int64(750)
	updated, err := svc.UpdateProfile(context.Background(), "u1", &newBio, nil, nil, &newTier)
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Bio != newBio || updated.SupportTierNPR != newTier {
		t.Fatalf("update not applied: %#v", updated)
	}
	if updated.Category != "art" {
		t.Fatalf("category changed unexpectedly: %q", updated.Category)
	}

	negative := int64(-1)
	if _, err := svc.UpdateProfile(context.Background(), "u1", nil, nil, nil, &negative); err == nil {
		t.Fatal("expected error for negative tier")
	}
}

func TestService_EarningsSummary(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil)
	seedUser(t, store, "creator", "mina")
	seedUser(t, store, "fan", "fan")

	if _, err := svc.Provision(context.Background(), "creator", "", "music", 300); err != nil {
		t.Fatalf("provision: %v", err)
	}

	for _, amount := range []int64{200, 300} {
		tx, err := store.CreateTransaction(context.Background(), support.Transaction{
			SupporterID: "fan",
			CreatorID:   "creator",
			AmountNPR:   amount,
			Status:      support.StatusPending,
		})
		if err != nil {
			t.Fatalf("create transaction: %v", err)
		}
		tx.Status = support.StatusCompleted
		if _, err := store.UpdateTransaction(context.Background(), tx); err != nil {
			t.Fatalf("complete transaction: %v", err)
		}
	}
	// Pending transactions never count.
	if _, err := store.CreateTransaction(context.Background(), support.Transaction{
		SupporterID: "fan",
		CreatorID:   "creator",
		AmountNPR:   999,
		Status:      support.StatusPending,
	}); err != nil {
		t.Fatalf("create pending transaction: %v", err)
	}

	summary, err := svc.EarningsSummary(context.Background(), "creator", time.Time{})
	if err != nil {
		t.Fatalf("earnings summary: %v", err)
	}
	if summary.TotalNPR != 500 {
		t.Fatalf("TotalNPR = %d, want 500", summary.TotalNPR)
	}
	month := time.Now().UTC().Format("2006-01")
	if summary.MonthlyNPR[month] != 500 {
		t.Fatalf("MonthlyNPR[%s] = %d, want 500", month, summary.MonthlyNPR[month])
	}
}
