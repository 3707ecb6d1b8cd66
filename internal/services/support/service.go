// Package support manages the monetization pipeline: one-off supporter
// transactions, recurring subscriptions, and the entitlement check gating
// supporter-only content.
package support

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/support"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/validation"
	"github.com/miyannishar/creators-nepal-v2/internal/metrics"
	"github.com/miyannishar/creators-nepal-v2/internal/storage"
	"github.com/miyannishar/creators-nepal-v2/pkg/logger"
)

// supporterWindow is how long a completed one-off transaction counts as
// active support.
const supporterWindow = 30 * 24 * time.Hour

// subscriptionTerm is the billing period granted per subscription cycle.
const subscriptionTerm = 30 * 24 * time.Hour

var (
	// ErrInvalidTransition is returned on an illegal status change.
	ErrInvalidTransition = errors.New("invalid transaction status transition")
	// ErrNotOwner is returned when a caller acts on another user's record.
	ErrNotOwner = errors.New("not the record owner")
)

// Service manages supporter transactions and subscriptions.
type Service struct {
	store    storage.SupportStore
	creators storage.CreatorStore
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// New constructs a support service. metrics may be nil.
func New(store storage.SupportStore, creators storage.CreatorStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("support")
	}
	return &Service{
		store:    store,
		creators: creators,
		log:      log,
	}
}

// WithMetrics wires transaction counters.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// RecordTransaction creates a pending transaction. Settlement happens out of
// band; Complete moves it to completed when the payment confirms.
func (s *Service) RecordTransaction(ctx context.Context, supporterID, creatorID string, amountNPR int64, message string) (support.Transaction, error) {
	t := support.Transaction{
		SupporterID: strings.TrimSpace(supporterID),
		CreatorID:   strings.TrimSpace(creatorID),
		AmountNPR:   amountNPR,
		Currency:    "NPR",
		Message:     strings.TrimSpace(message),
		Status:      support.StatusPending,
	}
	if err := t.Validate(); err != nil {
		return support.Transaction{}, err
	}
	if _, err := s.creators.GetProfile(ctx, t.CreatorID); err != nil {
		return support.Transaction{}, fmt.Errorf("creator validation failed: %w", err)
	}

	t, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return support.Transaction{}, err
	}
	s.log.WithField("transaction_id", t.ID).
		WithField("creator_id", t.CreatorID).
		WithField("amount_npr", t.AmountNPR).
		Info("transaction recorded")
	return t, nil
}

// Complete settles a pending transaction and credits the creator's earnings.
func (s *Service) Complete(ctx context.Context, transactionID string) (support.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return support.Transaction{}, err
	}
	if t.Status != support.StatusPending {
		return support.Transaction{}, ErrInvalidTransition
	}

	t.Status = support.StatusCompleted
	t, err = s.store.UpdateTransaction(ctx, t)
	if err != nil {
		return support.Transaction{}, err
	}

	if _, err := s.creators.AddEarnings(ctx, t.CreatorID, t.AmountNPR); err != nil {
		return support.Transaction{}, fmt.Errorf("credit earnings: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordSupportTransaction(string(support.StatusCompleted))
	}

	s.log.WithField("transaction_id", t.ID).
		WithField("creator_id", t.CreatorID).
		Info("transaction completed")
	return t, nil
}

// Refund reverses a completed transaction and debits the creator's earnings.
func (s *Service) Refund(ctx context.Context, transactionID string) (support.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return support.Transaction{}, err
	}
	if t.Status != support.StatusCompleted {
		return support.Transaction{}, ErrInvalidTransition
	}

	t.Status = support.StatusRefunded
	t, err = s.store.UpdateTransaction(ctx, t)
	if err != nil {
		return support.Transaction{}, err
	}

	if _, err := s.creators.AddEarnings(ctx, t.CreatorID, -t.AmountNPR); err != nil {
		return support.Transaction{}, fmt.Errorf("debit earnings: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordSupportTransaction(string(support.StatusRefunded))
	}

	s.log.WithField("transaction_id", t.ID).
		WithField("creator_id", t.CreatorID).
		Info("transaction refunded")
	return t, nil
}

// GetTransaction retrieves one transaction; only its supporter or creator
// may read it.
func (s *Service) GetTransaction(ctx context.Context, callerID, transactionID string) (support.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return support.Transaction{}, err
	}
	if t.SupporterID != callerID && t.CreatorID != callerID {
		return support.Transaction{}, ErrNotOwner
	}
	return t, nil
}

// ListReceived returns a creator's incoming transactions.
func (s *Service) ListReceived(ctx context.Context, creatorID string, page storage.Page) ([]support.Transaction, error) {
	return s.store.ListTransactionsByCreator(ctx, creatorID, page)
}

// ListSent returns a supporter's outgoing transactions.
func (s *Service) ListSent(ctx context.Context, supporterID string, page storage.Page) ([]support.Transaction, error) {
	return s.store.ListTransactionsBySupporter(ctx, supporterID, page)
}

// Subscribe starts a subscription at the creator's support tier, or at
// tierNPR when positive. One active subscription per pair.
func (s *Service) Subscribe(ctx context.Context, supporterID, creatorID string, tierNPR int64) (support.Subscription, error) {
	supporterID = strings.TrimSpace(supporterID)
	creatorID = strings.TrimSpace(creatorID)

	if supporterID == creatorID {
		return support.Subscription{}, support.ErrSelfSupport
	}
	profile, err := s.creators.GetProfile(ctx, creatorID)
	if err != nil {
		return support.Subscription{}, fmt.Errorf("creator validation failed: %w", err)
	}
	if tierNPR <= 0 {
		tierNPR = profile.SupportTierNPR
	}
	if tierNPR <= 0 {
		return support.Subscription{}, validation.New("creator has no support tier configured")
	}

	now := time.Now().UTC()
	sub, err := s.store.CreateSubscription(ctx, support.Subscription{
		SupporterID: supporterID,
		CreatorID:   creatorID,
		TierNPR:     tierNPR,
		Status:      support.SubscriptionActive,
		StartedAt:   now,
		ExpiresAt:   now.Add(subscriptionTerm),
	})
	if err != nil {
		return support.Subscription{}, err
	}
	s.log.WithField("subscription_id", sub.ID).
		WithField("creator_id", creatorID).
		WithField("tier_npr", tierNPR).
		Info("subscription started")
	return sub, nil
}

// Cancel stops an active subscription. Only its supporter may cancel.
func (s *Service) Cancel(ctx context.Context, callerID, subscriptionID string) (support.Subscription, error) {
	sub, err := s.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return support.Subscription{}, err
	}
	if sub.SupporterID != callerID {
		return support.Subscription{}, ErrNotOwner
	}
	if sub.Status != support.SubscriptionActive {
		return sub, nil
	}

	sub.Status = support.SubscriptionCancelled
	sub, err = s.store.UpdateSubscription(ctx, sub)
	if err != nil {
		return support.Subscription{}, err
	}
	s.log.WithField("subscription_id", sub.ID).Info("subscription cancelled")
	return sub, nil
}

// ListSubscriptions returns a supporter's subscriptions.
func (s *Service) ListSubscriptions(ctx context.Context, supporterID string) ([]support.Subscription, error) {
	return s.store.ListSubscriptionsBySupporter(ctx, supporterID)
}

// IsActiveSupporter reports whether the supporter currently holds an active
// subscription to the creator, or completed a one-off transaction within the
// supporter window.
func (s *Service) IsActiveSupporter(ctx context.Context, supporterID, creatorID string) (bool, error) {
	if supporterID == "" || creatorID == "" {
		return false, nil
	}

	if _, err := s.store.GetActiveSubscription(ctx, supporterID, creatorID); err == nil {
		return true, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	return s.store.HasCompletedSince(ctx, supporterID, creatorID, time.Now().UTC().Add(-supporterWindow))
}
