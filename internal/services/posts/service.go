// Package posts manages the content lifecycle: drafting, publishing,
// archiving, and supporter-gated reads.
package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miyannishar/creators-nepal-v2/internal/cache"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/post"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/validation"
	"github.com/miyannishar/creators-nepal-v2/internal/metrics"
	"github.com/miyannishar/creators-nepal-v2/internal/storage"
	"github.com/miyannishar/creators-nepal-v2/pkg/logger"
)

// ErrNotOwner is returned when a caller acts on a post they do not own.
var ErrNotOwner = errors.New("not the post owner")

// Entitlements reports whether a viewer may read supporter-gated content.
type Entitlements interface {
	IsActiveSupporter(ctx context.Context, supporterID, creatorID string) (bool, error)
}

// Announcer pushes publish events to connected clients.
type Announcer interface {
	AnnouncePublish(ctx context.Context, p post.Post) error
}

// MediaStore uploads post media and returns its public URL.
type MediaStore interface {
	UploadPostMedia(ctx context.Context, postID, filename string, data []byte, contentType string) (string, error)
}

// Service manages posts.
type Service struct {
	store        storage.PostStore
	creators     storage.CreatorStore
	series       storage.SeriesStore
	entitlements Entitlements
	feedCache    cache.Cache
	metrics      *metrics.Metrics
	announcer    Announcer
	media        MediaStore
	log          *logger.Logger
}

// New constructs a posts service. entitlements, feedCache, metrics,
// announcer, and media may be nil; the corresponding behavior is skipped.
func New(store storage.PostStore, creators storage.CreatorStore, series storage.SeriesStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("posts")
	}
	return &Service{
		store:    store,
		creators: creators,
		series:   series,
		log:      log,
	}
}

// WithEntitlements wires the supporter check used for gated reads.
func (s *Service) WithEntitlements(e Entitlements) *Service {
	s.entitlements = e
	return s
}

// WithFeedCache wires the cache invalidated on publish.
func (s *Service) WithFeedCache(c cache.Cache) *Service {
	s.feedCache = c
	return s
}

// WithMetrics wires publish counters.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// WithAnnouncer wires the realtime publish announcement.
func (s *Service) WithAnnouncer(a Announcer) *Service {
	s.announcer = a
	return s
}

// WithMedia wires the media upload backend.
func (s *Service) WithMedia(m MediaStore) *Service {
	s.media = m
	return s
}

// Create drafts a new post for a creator.
func (s *Service) Create(ctx context.Context, creatorID, seriesID, title, body string, visibility post.Visibility) (post.Post, error) {
	creatorID = strings.TrimSpace(creatorID)
	seriesID = strings.TrimSpace(seriesID)
	title = strings.TrimSpace(title)

	if _, err := s.creators.GetProfile(ctx, creatorID); err != nil {
		return post.Post{}, fmt.Errorf("creator validation failed: %w", err)
	}
	if seriesID != "" {
		sr, err := s.series.GetSeries(ctx, seriesID)
		if err != nil {
			return post.Post{}, fmt.Errorf("series validation failed: %w", err)
		}
		if sr.CreatorID != creatorID {
			return post.Post{}, ErrNotOwner
		}
	}
	if visibility == "" {
		visibility = post.VisibilityPublic
	}

	p := post.Post{
		CreatorID:  creatorID,
		SeriesID:   seriesID,
		Title:      title,
		Body:       body,
		Visibility: visibility,
		State:      post.StateDraft,
	}
	if err := p.Validate(); err != nil {
		return post.Post{}, err
	}

	p, err := s.store.CreatePost(ctx, p)
	if err != nil {
		return post.Post{}, err
	}
	s.log.WithField("post_id", p.ID).
		WithField("creator_id", creatorID).
		Info("post drafted")
	return p, nil
}

// Update edits a post's content. Only the owner may update; state transitions
// go through Publish and Archive.
func (s *Service) Update(ctx context.Context, callerID, postID string, seriesID, title, body *string, visibility *post.Visibility) (post.Post, error) {
	p, err := s.ownedPost(ctx, callerID, postID)
	if err != nil {
		return post.Post{}, err
	}

	if seriesID != nil {
		trimmed := strings.TrimSpace(*seriesID)
		if trimmed != "" {
			sr, err := s.series.GetSeries(ctx, trimmed)
			if err != nil {
				return post.Post{}, fmt.Errorf("series validation failed: %w", err)
			}
			if sr.CreatorID != p.CreatorID {
				return post.Post{}, ErrNotOwner
			}
		}
		p.SeriesID = trimmed
	}
	if title != nil {
		if strings.TrimSpace(*title) == "" {
			return post.Post{}, validation.New("title cannot be empty")
		}
		p.Title = strings.TrimSpace(*title)
	}
	if body != nil {
		p.Body = *body
	}
	if visibility != nil {
		if !visibility.Valid() {
			return post.Post{}, validation.New("unknown visibility")
		}
		p.Visibility = *visibility
	}

	p, err = s.store.UpdatePost(ctx, p)
	if err != nil {
		return post.Post{}, err
	}
	// Edits to a live post change what cached feed pages would show.
	if p.State == post.StatePublished {
		s.invalidateFeeds(ctx)
	}
	s.log.WithField("post_id", p.ID).Info("post updated")
	return p, nil
}

// Publish transitions a draft to published, announces it, and invalidates
// cached feed pages.
func (s *Service) Publish(ctx context.Context, callerID, postID string) (post.Post, error) {
	if _, err := s.ownedPost(ctx, callerID, postID); err != nil {
		return post.Post{}, err
	}

	p, err := s.store.PublishPost(ctx, postID, time.Now().UTC())
	if err != nil {
		return post.Post{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordPostPublished()
	}
	s.invalidateFeeds(ctx)
	if s.announcer != nil {
		if err := s.announcer.AnnouncePublish(ctx, p); err != nil {
			s.log.WithError(err).Warn("publish announcement failed")
		}
	}

	s.log.WithField("post_id", p.ID).
		WithField("creator_id", p.CreatorID).
		Info("post published")
	return p, nil
}

// Archive retires a post from feeds without deleting it.
func (s *Service) Archive(ctx context.Context, callerID, postID string) (post.Post, error) {
	if _, err := s.ownedPost(ctx, callerID, postID); err != nil {
		return post.Post{}, err
	}

	p, err := s.store.ArchivePost(ctx, postID)
	if err != nil {
		return post.Post{}, err
	}
	s.invalidateFeeds(ctx)

	s.log.WithField("post_id", p.ID).Info("post archived")
	return p, nil
}

// Delete removes a post and its engagement rows.
func (s *Service) Delete(ctx context.Context, callerID, postID string) error {
	if _, err := s.ownedPost(ctx, callerID, postID); err != nil {
		return err
	}
	if err := s.store.DeletePost(ctx, postID); err != nil {
		return err
	}
	s.invalidateFeeds(ctx)

	s.log.WithField("post_id", postID).Info("post deleted")
	return nil
}

// AttachMedia uploads media for a post and records its public URL.
func (s *Service) AttachMedia(ctx context.Context, callerID, postID, filename string, data []byte, contentType string) (post.Post, error) {
	p, err := s.ownedPost(ctx, callerID, postID)
	if err != nil {
		return post.Post{}, err
	}
	if s.media == nil {
		return post.Post{}, fmt.Errorf("media storage is not configured")
	}
	if len(data) == 0 {
		return post.Post{}, validation.New("media payload is empty")
	}

	url, err := s.media.UploadPostMedia(ctx, postID, filename, data, contentType)
	if err != nil {
		return post.Post{}, fmt.Errorf("upload media: %w", err)
	}

	p.MediaURL = url
	p, err = s.store.UpdatePost(ctx, p)
	if err != nil {
		return post.Post{}, err
	}
	if p.State == post.StatePublished {
		s.invalidateFeeds(ctx)
	}
	s.log.WithField("post_id", p.ID).Info("post media attached")
	return p, nil
}

// GetForViewer returns a post with supporter gating applied: a gated body is
// blanked unless the viewer is the creator or an active supporter. Drafts
// and archived posts are only visible to their creator.
func (s *Service) GetForViewer(ctx context.Context, viewerID, postID string) (post.Post, error) {
	p, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return post.Post{}, err
	}

	if p.CreatorID == viewerID {
		return p, nil
	}
	if p.State != post.StatePublished {
		return post.Post{}, ErrNotOwner
	}
	if p.Visibility != post.VisibilitySupporters {
		return p, nil
	}

	entitled := false
	if s.entitlements != nil && viewerID != "" {
		entitled, err = s.entitlements.IsActiveSupporter(ctx, viewerID, p.CreatorID)
		if err != nil {
			return post.Post{}, err
		}
	}
	if !entitled {
		p.Body = ""
		p.MediaURL = ""
	}
	return p, nil
}

// ListByCreator returns a creator's posts. Non-owners only see published
// posts regardless of the requested state filter.
func (s *Service) ListByCreator(ctx context.Context, viewerID, creatorID string, state post.State, page storage.Page) ([]post.Post, error) {
	if viewerID != creatorID {
		state = post.StatePublished
	}
	return s.store.ListPostsByCreator(ctx, creatorID, state, page)
}

func (s *Service) invalidateFeeds(ctx context.Context) {
	if s.feedCache == nil {
		return
	}
	if err := s.feedCache.DeletePrefix(ctx, "feed:"); err != nil {
		s.log.WithError(err).Warn("feed cache invalidation failed")
	}
}

func (s *Service) ownedPost(ctx context.Context, callerID, postID string) (post.Post, error) {
	p, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return post.Post{}, err
	}
	if p.CreatorID != callerID {
		return post.Post{}, ErrNotOwner
	}
	return p, nil
}
