// Package creators manages creator profiles, discovery listings, and
// earnings summaries.
package creators

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/creator"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/user"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/validation"
	"github.com/miyannishar/creators-nepal-v2/internal/storage"
	"github.com/miyannishar/creators-nepal-v2/pkg/logger"
)

// ErrAlreadyCreator is returned when provisioning a profile that exists.
var ErrAlreadyCreator = errors.New("creator profile already exists")

// Service manages creator profiles.
type Service struct {
	users   storage.UserStore
	store   storage.CreatorStore
	support storage.SupportStore
	log     *logger.Logger
}

// New constructs a creators service.
func New(users storage.UserStore, store storage.CreatorStore, support storage.SupportStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("creators")
	}
	return &Service{
		users:   users,
		store:   store,
		support: support,
		log:     log,
	}
}

// Provision turns a user into a creator: it creates the profile and upgrades
// the user's role in one step.
func (s *Service) Provision(ctx context.Context, userID, bio, category string, supportTierNPR int64) (creator.Profile, error) {
	userID = strings.TrimSpace(userID)
	bio = strings.TrimSpace(bio)
	category = strings.TrimSpace(category)

	if userID == "" {
		return creator.Profile{}, validation.New("user_id is required")
	}
	if supportTierNPR < 0 {
		return creator.Profile{}, validation.New("support_tier_npr cannot be negative")
	}

	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return creator.Profile{}, fmt.Errorf("user validation failed: %w", err)
	}

	if _, err := s.store.GetProfile(ctx, userID); err == nil {
		return creator.Profile{}, ErrAlreadyCreator
	} else if !errors.Is(err, sql.ErrNoRows) {
		return creator.Profile{}, err
	}

	profile, err := s.store.CreateProfile(ctx, creator.Profile{
		UserID:         userID,
		Bio:            bio,
		Category:       category,
		SupportTierNPR: supportTierNPR,
	})
	if err != nil {
		return creator.Profile{}, err
	}

	if u.Role == user.RoleSupporter {
		u.Role = user.RoleCreator
		if _, err := s.users.UpdateUser(ctx, u); err != nil {
			return creator.Profile{}, fmt.Errorf("promote user: %w", err)
		}
	}

	s.log.WithField("user_id", userID).
		WithField("category", category).
		Info("creator provisioned")
	return profile, nil
}

// UpdateProfile updates mutable profile fields. Nil fields are left as-is.
func (s *Service) UpdateProfile(ctx context.Context, userID string, bio, category, coverURL *string, supportTierNPR *int64) (creator.Profile, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return creator.Profile{}, err
	}

	if bio != nil {
		profile.Bio = strings.TrimSpace(*bio)
	}
	if category != nil {
		profile.Category = strings.TrimSpace(*category)
	}
	if coverURL != nil {
		profile.CoverURL = strings.TrimSpace(*coverURL)
	}
	if supportTierNPR != nil {
		if *supportTierNPR < 0 {
			return creator.Profile{}, validation.New("support_tier_npr cannot be negative")
		}
		profile.SupportTierNPR = *supportTierNPR
	}

	profile, err = s.store.UpdateProfile(ctx, profile)
	if err != nil {
		return creator.Profile{}, err
	}
	s.log.WithField("user_id", userID).Info("creator profile updated")
	return profile, nil
}

// Get retrieves one creator profile.
func (s *Service) Get(ctx context.Context, userID string) (creator.Profile, error) {
	return s.store.GetProfile(ctx, userID)
}

// List returns a page of creator profiles, optionally filtered by category.
func (s *Service) List(ctx context.Context, category string, page storage.Page) ([]creator.Profile, error) {
	return s.store.ListProfiles(ctx, strings.TrimSpace(category), page)
}

// EarningsSummary aggregates the creator's completed transactions. A zero
// since covers all time.
func (s *Service) EarningsSummary(ctx context.Context, creatorID string, since time.Time) (creator.EarningsSummary, error) {
	if _, err := s.store.GetProfile(ctx, creatorID); err != nil {
		return creator.EarningsSummary{}, err
	}

	monthly, err := s.support.SumCompletedByCreator(ctx, creatorID, since)
	if err != nil {
		return creator.EarningsSummary{}, err
	}

	summary := creator.EarningsSummary{
		CreatorID:  creatorID,
		MonthlyNPR: monthly,
	}
	for _, amount := range monthly {
		summary.TotalNPR += amount
	}
	return summary, nil
}
