// Package series manages ordered collections of a creator's posts.
package series

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/series"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/validation"
	"github.com/miyannishar/creators-nepal-v2/internal/storage"
	"github.com/miyannishar/creators-nepal-v2/pkg/logger"
)

// ErrNotOwner is returned when a caller acts on a series they do not own.
var ErrNotOwner = errors.New("not the series owner")

// Service manages series.
type Service struct {
	store    storage.SeriesStore
	creators storage.CreatorStore
	log      *logger.Logger
}

// New constructs a series service.
func New(store storage.SeriesStore, creators storage.CreatorStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("series")
	}
	return &Service{
		store:    store,
		creators: creators,
		log:      log,
	}
}

// Create registers a new series for a creator.
func (s *Service) Create(ctx context.Context, creatorID, title, description, coverURL string) (series.Series, error) {
	creatorID = strings.TrimSpace(creatorID)
	title = strings.TrimSpace(title)

	if _, err := s.creators.GetProfile(ctx, creatorID); err != nil {
		return series.Series{}, fmt.Errorf("creator validation failed: %w", err)
	}

	sr := series.Series{
		CreatorID:   creatorID,
		Title:       title,
		Description: strings.TrimSpace(description),
		CoverURL:    strings.TrimSpace(coverURL),
	}
	if err := sr.Validate(); err != nil {
		return series.Series{}, err
	}

	sr, err := s.store.CreateSeries(ctx, sr)
	if err != nil {
		return series.Series{}, err
	}
	s.log.WithField("series_id", sr.ID).
		WithField("creator_id", creatorID).
		Info("series created")
	return sr, nil
}

// Update edits mutable series fields. Nil fields are left as-is.
func (s *Service) Update(ctx context.Context, callerID, seriesID string, title, description, coverURL *string) (series.Series, error) {
	sr, err := s.ownedSeries(ctx, callerID, seriesID)
	if err != nil {
		return series.Series{}, err
	}

	if title != nil {
		if strings.TrimSpace(*title) == "" {
			return series.Series{}, validation.New("title cannot be empty")
		}
		sr.Title = strings.TrimSpace(*title)
	}
	if description != nil {
		sr.Description = strings.TrimSpace(*description)
	}
	if coverURL != nil {
		sr.CoverURL = strings.TrimSpace(*coverURL)
	}

	sr, err = s.store.UpdateSeries(ctx, sr)
	if err != nil {
		return series.Series{}, err
	}
	s.log.WithField("series_id", sr.ID).Info("series updated")
	return sr, nil
}

// Get retrieves one series.
func (s *Service) Get(ctx context.Context, id string) (series.Series, error) {
	return s.store.GetSeries(ctx, id)
}

// Delete removes a series. Posts assigned to it are detached, not deleted.
func (s *Service) Delete(ctx context.Context, callerID, seriesID string) error {
	if _, err := s.ownedSeries(ctx, callerID, seriesID); err != nil {
		return err
	}
	if err := s.store.DeleteSeries(ctx, seriesID); err != nil {
		return err
	}
	s.log.WithField("series_id", seriesID).Info("series deleted")
	return nil
}

// ListByCreator returns all of a creator's series.
func (s *Service) ListByCreator(ctx context.Context, creatorID string) ([]series.Series, error) {
	return s.store.ListSeriesByCreator(ctx, creatorID)
}

func (s *Service) ownedSeries(ctx context.Context, callerID, seriesID string) (series.Series, error) {
	sr, err := s.store.GetSeries(ctx, seriesID)
	if err != nil {
		return series.Series{}, err
	}
	if sr.CreatorID != callerID {
		return series.Series{}, ErrNotOwner
	}
	return sr, nil
}
