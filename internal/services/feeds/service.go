// Package feeds serves the composed read models: discovery, following,
// search, and trending. Shared pages are cached briefly; publishes
// invalidate the cache.
package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/miyannishar/creators-nepal-v2/internal/cache"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/feed"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/validation"
	"github.com/miyannishar/creators-nepal-v2/internal/metrics"
	"github.com/miyannishar/creators-nepal-v2/internal/storage"
	"github.com/miyannishar/creators-nepal-v2/pkg/logger"
)

const defaultCacheTTL = time.Minute

// Service serves feed queries.
type Service struct {
	store    storage.FeedStore
	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// New constructs a feeds service. cache and metrics may be nil.
func New(store storage.FeedStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("feeds")
	}
	return &Service{
		store:    store,
		cacheTTL: defaultCacheTTL,
		log:      log,
	}
}

// WithCache wires the feed page cache.
func (s *Service) WithCache(c cache.Cache, ttl time.Duration) *Service {
	s.cache = c
	if ttl > 0 {
		s.cacheTTL = ttl
	}
	return s
}

// WithMetrics wires cache hit counters.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Discover returns the newest published posts across all creators.
func (s *Service) Discover(ctx context.Context, page storage.Page) ([]feed.Item, error) {
	key := fmt.Sprintf("feed:discover:%d:%d", page.Limit, page.Offset)

	var items []feed.Item
	if s.cachedPage(ctx, key, &items) {
		return items, nil
	}

	items, err := s.store.DiscoverFeed(ctx, page)
	if err != nil {
		return nil, err
	}
	s.storePage(ctx, key, items)
	return items, nil
}

// Following returns the newest published posts from creators the user
// follows. Per-user pages are not cached.
func (s *Service) Following(ctx context.Context, userID string, page storage.Page) ([]feed.Item, error) {
	return s.store.FollowingFeed(ctx, userID, page)
}

// Trending returns creators ranked by follower count.
func (s *Service) Trending(ctx context.Context, limit int) ([]feed.CreatorResult, error) {
	key := fmt.Sprintf("feed:trending:%d", limit)

	var creators []feed.CreatorResult
	if s.cachedPage(ctx, key, &creators) {
		return creators, nil
	}

	creators, err := s.store.TrendingCreators(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.storePage(ctx, key, creators)
	return creators, nil
}

// Search matches published posts by title and creators by username, display
// name, and bio.
func (s *Service) Search(ctx context.Context, query string, page storage.Page) (feed.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return feed.SearchResult{}, validation.New("query is required")
	}

	posts, err := s.store.SearchPosts(ctx, query, page)
	if err != nil {
		return feed.SearchResult{}, err
	}
	creators, err := s.store.SearchCreators(ctx, query, page)
	if err != nil {
		return feed.SearchResult{}, err
	}
	return feed.SearchResult{Posts: posts, Creators: creators}, nil
}

func (s *Service) cachedPage(ctx context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.WithError(err).Warn("feed cache read failed")
		return false
	}
	if !ok {
		if s.metrics != nil {
			s.metrics.RecordFeedCacheMiss()
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.log.WithError(err).Warn("feed cache entry corrupt")
		return false
	}
	if s.metrics != nil {
		s.metrics.RecordFeedCacheHit()
	}
	return true
}

func (s *Service) storePage(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		s.log.WithError(err).Warn("feed cache write failed")
	}
}
