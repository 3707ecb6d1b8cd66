// Package app assembles the platform's services, wires their optional
// dependencies, and manages the lifecycle of the background workers.
package app

import (
	"context"
	"time"

	"github.com/miyannishar/creators-nepal-v2/internal/cache"
	"github.com/miyannishar/creators-nepal-v2/internal/metrics"
	authsyncsvc "github.com/miyannishar/creators-nepal-v2/internal/services/authsync"
	creatorssvc "github.com/miyannishar/creators-nepal-v2/internal/services/creators"
	engagementsvc "github.com/miyannishar/creators-nepal-v2/internal/services/engagement"
	feedssvc "github.com/miyannishar/creators-nepal-v2/internal/services/feeds"
	mediasvc "github.com/miyannishar/creators-nepal-v2/internal/services/media"
	postssvc "github.com/miyannishar/creators-nepal-v2/internal/services/posts"
	realtimesvc "github.com/miyannishar/creators-nepal-v2/internal/services/realtime"
	seriessvc "github.com/miyannishar/creators-nepal-v2/internal/services/series"
	supportsvc "github.com/miyannishar/creators-nepal-v2/internal/services/support"
	userssvc "github.com/miyannishar/creators-nepal-v2/internal/services/users"
	"github.com/miyannishar/creators-nepal-v2/internal/storage"
	"github.com/miyannishar/creators-nepal-v2/internal/storage/memory"
	"github.com/miyannishar/creators-nepal-v2/internal/supabase"
	"github.com/miyannishar/creators-nepal-v2/internal/system"
	"github.com/miyannishar/creators-nepal-v2/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users      storage.UserStore
	Creators   storage.CreatorStore
	Posts      storage.PostStore
	Series     storage.SeriesStore
	Engagement storage.EngagementStore
	Support    storage.SupportStore
	Feeds      storage.FeedStore
}

// Options carries the optional infrastructure services. Nil fields disable
// the corresponding feature rather than failing startup.
type Options struct {
	// Cache backs the shared feed pages. Nil disables caching.
	Cache cache.Cache
	// FeedTTL bounds how stale a cached feed page may be.
	FeedTTL time.Duration
	// Metrics receives the domain counters. Nil disables instrumentation.
	Metrics *metrics.Metrics
	// Auth is the hosted auth provider mirrored into the users table.
	Auth *supabase.AuthClient
	// MediaStorage and MediaBucket configure post media uploads.
	MediaStorage *supabase.StorageClient
	MediaBucket  string
	// Realtime broadcasts publish announcements. Nil disables them.
	Realtime *supabase.RealtimeClient
	// RollupSchedule is a cron expression for the earnings rollup;
	// empty means hourly.
	RollupSchedule string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Users      *userssvc.Service
	Creators   *creatorssvc.Service
	Posts      *postssvc.Service
	Series     *seriessvc.Service
	Engagement *engagementsvc.Service
	Support    *supportsvc.Service
	Feeds      *feedssvc.Service

	// Auth is nil when no auth provider is configured.
	Auth *authsyncsvc.Service
	// Media is nil when no storage bucket is configured.
	Media *mediasvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Creators == nil {
		stores.Creators = mem
	}
	if stores.Posts == nil {
		stores.Posts = mem
	}
	if stores.Series == nil {
		stores.Series = mem
	}
	if stores.Engagement == nil {
		stores.Engagement = mem
	}
	if stores.Support == nil {
		stores.Support = mem
	}
	if stores.Feeds == nil {
		stores.Feeds = mem
	}

	usersService := userssvc.New(stores.Users, log)
	creatorsService := creatorssvc.New(stores.Users, stores.Creators, stores.Support, log)
	seriesService := seriessvc.New(stores.Series, stores.Creators, log)
	engagementService := engagementsvc.New(stores.Engagement, stores.Posts, stores.Creators, log)
	supportService := supportsvc.New(stores.Support, stores.Creators, log)
	if opts.Metrics != nil {
		supportService.WithMetrics(opts.Metrics)
	}

	postsService := postssvc.New(stores.Posts, stores.Creators, stores.Series, log).
		WithEntitlements(supportService)
	if opts.Cache != nil {
		postsService.WithFeedCache(opts.Cache)
	}
	if opts.Metrics != nil {
		postsService.WithMetrics(opts.Metrics)
	}

	feedsService := feedssvc.New(stores.Feeds, log)
	if opts.Cache != nil {
		feedsService.WithCache(opts.Cache, opts.FeedTTL)
	}
	if opts.Metrics != nil {
		feedsService.WithMetrics(opts.Metrics)
	}

	manager := system.NewManager(log)
	manager.Register(supportsvc.NewRollup(stores.Support, stores.Creators, opts.RollupSchedule, log))

	app := &Application{
		manager:    manager,
		log:        log,
		Users:      usersService,
		Creators:   creatorsService,
		Posts:      postsService,
		Series:     seriesService,
		Engagement: engagementService,
		Support:    supportService,
		Feeds:      feedsService,
	}

	if opts.Auth != nil {
		app.Auth = authsyncsvc.New(opts.Auth, stores.Users, log)
	} else {
		log.Warn("auth provider not configured; sign-up and sign-in disabled")
	}

	if opts.MediaStorage != nil && opts.MediaBucket != "" {
		app.Media = mediasvc.New(opts.MediaStorage, opts.MediaBucket, log)
		postsService.WithMedia(app.Media)
	} else {
		log.Warn("media bucket not configured; uploads disabled")
	}

	if opts.Realtime != nil {
		announcer := realtimesvc.NewAnnouncer(opts.Realtime, log)
		postsService.WithAnnouncer(announcer)
		manager.Register(announcer)
	} else {
		log.Warn("realtime not configured; publish announcements disabled")
	}

	return app, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) {
	a.manager.Register(service)
}

// Start begins all registered background services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.StartAll(ctx)
}

// Stop stops all background services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.StopAll(ctx)
}
