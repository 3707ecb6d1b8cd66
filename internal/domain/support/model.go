// Package support defines the monetization records: one-off supporter
// transactions and recurring subscriptions.
package support

import (
	"errors"
	"strings"
	"time"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/validation"
)

// TransactionStatus is the settlement state of a supporter transaction.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusRefunded  TransactionStatus = "refunded"
)

// Transaction records a payment from a supporter to a creator. Amounts are
// whole Nepali rupees.
type Transaction struct {
	ID          string            `json:"id"`
	SupporterID string            `json:"supporter_id"`
	CreatorID   string            `json:"creator_id"`
	AmountNPR   int64             `json:"amount_npr"`
	Currency    string            `json:"currency"`
	Message     string            `json:"message,omitempty"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// Subscription records a recurring support pledge.
type Subscription struct {
	ID          string             `json:"id"`
	SupporterID string             `json:"supporter_id"`
	CreatorID   string             `json:"creator_id"`
	TierNPR     int64              `json:"tier_npr"`
	Status      SubscriptionStatus `json:"status"`
	StartedAt   time.Time          `json:"started_at"`
	ExpiresAt   time.Time          `json:"expires_at"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// ErrSelfSupport is returned when a user attempts to support themselves.
var ErrSelfSupport = errors.New("cannot support yourself")

// ErrAlreadySubscribed is returned when a supporter already holds an active
// subscription to the creator.
var ErrAlreadySubscribed = errors.New("active subscription already exists")

// Validate checks the fields a new transaction must carry.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.SupporterID) == "" {
		return validation.New("supporter_id is required")
	}
	if strings.TrimSpace(t.CreatorID) == "" {
		return validation.New("creator_id is required")
	}
	if t.SupporterID == t.CreatorID {
		return ErrSelfSupport
	}
	if t.AmountNPR <= 0 {
		return validation.New("amount_npr must be positive")
	}
	if t.Currency != "" && t.Currency != "NPR" {
		return validation.New("only NPR is supported")
	}
	return nil
}
