// Package storage defines the persistence interfaces for the platform.
package storage

import (
	"context"
	"time"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/creator"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/engagement"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/feed"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/post"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/series"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/support"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/user"
)

// Page bounds list queries. A zero Limit falls back to the store default.
type Page struct {
	Limit  int
	Offset int
}

// UserStore persists platform accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	ListUsers(ctx context.Context, page Page) ([]user.User, error)
}

// CreatorStore persists creator profiles. Counter columns are derived and
// maintained by the store implementations, never by callers.
type CreatorStore interface {
	CreateProfile(ctx context.Context, p creator.Profile) (creator.Profile, error)
	UpdateProfile(ctx context.Context, p creator.Profile) (creator.Profile, error)
	GetProfile(ctx context.Context, userID string) (creator.Profile, error)
	ListProfiles(ctx context.Context, category string, page Page) ([]creator.Profile, error)
	// AddEarnings adjusts the earnings counter by delta, clamped at zero.
	AddEarnings(ctx context.Context, userID string, deltaNPR int64) (creator.Profile, error)
	// SetEarnings overwrites the earnings counter (rollup healing).
	SetEarnings(ctx context.Context, userID string, totalNPR int64) error
}

// PostStore persists posts. PublishPost performs the draft-to-published
// transition and bumps the creator's posts counter exactly once.
type PostStore interface {
	CreatePost(ctx context.Context, p post.Post) (post.Post, error)
	UpdatePost(ctx context.Context, p post.Post) (post.Post, error)
	GetPost(ctx context.Context, id string) (post.Post, error)
	DeletePost(ctx context.Context, id string) error
	PublishPost(ctx context.Context, id string, at time.Time) (post.Post, error)
	ArchivePost(ctx context.Context, id string) (post.Post, error)
	ListPostsByCreator(ctx context.Context, creatorID string, state post.State, page Page) ([]post.Post, error)
}

// SeriesStore persists series and maintains the creator's series counter.
type SeriesStore interface {
	CreateSeries(ctx context.Context, s series.Series) (series.Series, error)
	UpdateSeries(ctx context.Context, s series.Series) (series.Series, error)
	GetSeries(ctx context.Context, id string) (series.Series, error)
	DeleteSeries(ctx context.Context, id string) error
	ListSeriesByCreator(ctx context.Context, creatorID string) ([]series.Series, error)
}

// EngagementStore persists follows, likes, and comments, maintaining the
// associated counters in the same transaction as the row change.
type EngagementStore interface {
	CreateFollow(ctx context.Context, f engagement.Follow) error
	DeleteFollow(ctx context.Context, followerID, creatorID string) error
	IsFollowing(ctx context.Context, followerID, creatorID string) (bool, error)
	ListFollowedCreators(ctx context.Context, followerID string) ([]string, error)

	CreateLike(ctx context.Context, l engagement.Like) error
	DeleteLike(ctx context.Context, postID, userID string) error
	HasLiked(ctx context.Context, postID, userID string) (bool, error)

	CreateComment(ctx context.Context, c engagement.Comment) (engagement.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	GetComment(ctx context.Context, id string) (engagement.Comment, error)
	ListComments(ctx context.Context, postID string, page Page) ([]engagement.Comment, error)
}

// SupportStore persists supporter transactions and subscriptions.
type SupportStore interface {
	CreateTransaction(ctx context.Context, t support.Transaction) (support.Transaction, error)
	UpdateTransaction(ctx context.Context, t support.Transaction) (support.Transaction, error)
	GetTransaction(ctx context.Context, id string) (support.Transaction, error)
	ListTransactionsByCreator(ctx context.Context, creatorID string, page Page) ([]support.Transaction, error)
	ListTransactionsBySupporter(ctx context.Context, supporterID string, page Page) ([]support.Transaction, error)
	// SumCompletedByCreator totals completed transactions per month keyed
	// "YYYY-MM"; a zero since means all time.
	SumCompletedByCreator(ctx context.Context, creatorID string, since time.Time) (map[string]int64, error)
	// HasCompletedSince reports whether the supporter completed a
	// transaction to the creator at or after the cutoff.
	HasCompletedSince(ctx context.Context, supporterID, creatorID string, cutoff time.Time) (bool, error)

	CreateSubscription(ctx context.Context, s support.Subscription) (support.Subscription, error)
	UpdateSubscription(ctx context.Context, s support.Subscription) (support.Subscription, error)
	GetSubscription(ctx context.Context, id string) (support.Subscription, error)
	ListSubscriptionsBySupporter(ctx context.Context, supporterID string) ([]support.Subscription, error)
	ListSubscriptionsByCreator(ctx context.Context, creatorID string) ([]support.Subscription, error)
	GetActiveSubscription(ctx context.Context, supporterID, creatorID string) (support.Subscription, error)
	// ExpireLapsed marks active subscriptions past their expiry as expired
	// and returns how many changed.
	ExpireLapsed(ctx context.Context, now time.Time) (int64, error)
	// ListCreatorIDsWithCompleted returns creators having at least one
	// completed transaction (rollup healing scan).
	ListCreatorIDsWithCompleted(ctx context.Context) ([]string, error)
}

// FeedStore serves the composed read models.
type FeedStore interface {
	DiscoverFeed(ctx context.Context, page Page) ([]feed.Item, error)
	FollowingFeed(ctx context.Context, followerID string, page Page) ([]feed.Item, error)
	SearchPosts(ctx context.Context, query string, page Page) ([]feed.Item, error)
	SearchCreators(ctx context.Context, query string, page Page) ([]feed.CreatorResult, error)
	TrendingCreators(ctx context.Context, limit int) ([]feed.CreatorResult, error)
}
