// Package main runs the creator platform API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/miyannishar/creators-nepal-v2/internal/app"
	"github.com/miyannishar/creators-nepal-v2/internal/cache"
	"github.com/miyannishar/creators-nepal-v2/internal/config"
	"github.com/miyannishar/creators-nepal-v2/internal/httpapi"
	"github.com/miyannishar/creators-nepal-v2/internal/metrics"
	"github.com/miyannishar/creators-nepal-v2/internal/middleware"
	"github.com/miyannishar/creators-nepal-v2/internal/storage/postgres"
	"github.com/miyannishar/creators-nepal-v2/internal/supabase"
	"github.com/miyannishar/creators-nepal-v2/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("server exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	stores, cleanup, err := buildStores(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	feedCache, closeCache := buildCache(cfg, log)
	defer closeCache()

	m := metrics.New()

	opts := app.Options{
		Cache:          feedCache,
		FeedTTL:        cfg.Redis.FeedTTL,
		Metrics:        m,
		RollupSchedule: cfg.Support.RollupSchedule,
	}
	if cfg.Supabase.URL != "" && cfg.Supabase.APIKey != "" {
		client, err := supabase.NewResilient(supabase.Config{
			URL:    cfg.Supabase.URL,
			APIKey: cfg.Supabase.APIKey,
		}, supabase.DefaultRetryConfig(), supabase.DefaultCircuitBreakerConfig())
		if err != nil {
			return fmt.Errorf("supabase client: %w", err)
		}
		opts.Auth = client.Auth()

		serviceKey := cfg.Supabase.ServiceRoleKey
		if serviceKey == "" {
			serviceKey = cfg.Supabase.APIKey
		}
		storageClient, err := supabase.NewResilient(supabase.Config{
			URL:    cfg.Supabase.URL,
			APIKey: serviceKey,
		}, supabase.DefaultRetryConfig(), supabase.DefaultCircuitBreakerConfig())
		if err != nil {
			return fmt.Errorf("supabase storage client: %w", err)
		}
		opts.MediaStorage = storageClient.Storage()
		opts.MediaBucket = cfg.Supabase.MediaBucket
		opts.Realtime = supabase.NewRealtimeClient(cfg.Supabase.URL, serviceKey)
	}

	application, err := app.New(stores, opts, log)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}

	handler := apiHandler(cfg, application, m, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application stop")
	}

	log.Info("server stopped")
	return nil
}

// apiHandler wraps the REST handler in the middleware chain. Auth skips the
// health, metrics, and public read endpoints; entries ending in "/" skip a
// whole prefix, which covers the credential-less auth endpoints.
func apiHandler(cfg *config.Config, application *app.Application, m *metrics.Metrics, log *logger.Logger) http.Handler {
	skipPaths := append([]string{"/healthz", "/metrics", "/v1/auth/", "/v1/feed/discover", "/v1/feed/trending", "/v1/search"}, cfg.Auth.SkipPaths...)
	auth := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret, log, skipPaths)
	cors := middleware.NewCORSMiddleware(cfg.Server.AllowedOrigins)
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst, log)
	limiter.StartCleanup(10 * time.Minute)

	var handler http.Handler = httpapi.NewHandler(application, m)
	handler = auth.Handler(handler)
	handler = limiter.Handler(handler)
	handler = middleware.MetricsMiddleware(m)(handler)
	handler = middleware.LoggingMiddleware(log)(handler)
	handler = cors.Handler(handler)
	return handler
}

// buildStores connects Postgres when configured and falls back to the
// in-memory store otherwise.
func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, func(), error) {
	if cfg.Database.DSN == "" {
		log.Warn("DATABASE_URL not set; using in-memory store")
		return app.Stores{}, func() {}, nil
	}

	db, err := sqlx.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return app.Stores{}, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("ping database: %w", err)
	}

	if err := postgres.Migrate(db); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("run migrations: %w", err)
	}

	store := postgres.New(db)
	stores := app.Stores{
		Users:      store,
		Creators:   store,
		Posts:      store,
		Series:     store,
		Engagement: store,
		Support:    store,
		Feeds:      store,
	}
	return stores, func() { db.Close() }, nil
}

// buildCache connects Redis when configured and falls back to the
// in-process cache otherwise.
func buildCache(cfg *config.Config, log *logger.Logger) (cache.Cache, func()) {
	if cfg.Redis.Addr == "" {
		log.Warn("REDIS_ADDR not set; using in-process feed cache")
		return cache.NewMemory(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).Warn("redis unreachable; using in-process feed cache")
		client.Close()
		return cache.NewMemory(), func() {}
	}

	return cache.NewRedis(client), func() { client.Close() }
}
