// Package engagement manages follows, likes, and comments. The affected
// counters live in the storage layer; this service only enforces the rules
// around who may interact with what.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/engagement"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/post"
	"github.com/miyannishar/creators-nepal-v2/internal/storage"
	"github.com/miyannishar/creators-nepal-v2/pkg/logger"
)

var (
	// ErrSelfFollow is returned when a creator tries to follow themselves.
	ErrSelfFollow = errors.New("cannot follow yourself")
	// ErrNotPublished is returned when interacting with a non-published post.
	ErrNotPublished = errors.New("post is not published")
	// ErrNotAllowed is returned when a caller may not delete a comment.
	ErrNotAllowed = errors.New("not allowed to delete this comment")
)

// Service manages audience interactions.
type Service struct {
	store    storage.EngagementStore
	posts    storage.PostStore
	creators storage.CreatorStore
	log      *logger.Logger
}

// New constructs an engagement service.
func New(store storage.EngagementStore, posts storage.PostStore, creators storage.CreatorStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("engagement")
	}
	return &Service{
		store:    store,
		posts:    posts,
		creators: creators,
		log:      log,
	}
}

// Follow records a follow. Following again is a no-op.
func (s *Service) Follow(ctx context.Context, followerID, creatorID string) error {
	followerID = strings.TrimSpace(followerID)
	creatorID = strings.TrimSpace(creatorID)

	if followerID == creatorID {
		return ErrSelfFollow
	}
	if _, err := s.creators.GetProfile(ctx, creatorID); err != nil {
		return fmt.Errorf("creator validation failed: %w", err)
	}

	if err := s.store.CreateFollow(ctx, engagement.Follow{
		FollowerID: followerID,
		CreatorID:  creatorID,
	}); err != nil {
		return err
	}
	s.log.WithField("follower_id", followerID).
		WithField("creator_id", creatorID).
		Info("follow recorded")
	return nil
}

// Unfollow removes a follow. Unfollowing when not following is a no-op.
func (s *Service) Unfollow(ctx context.Context, followerID, creatorID string) error {
	return s.store.DeleteFollow(ctx, followerID, creatorID)
}

// IsFollowing reports whether the follow pair exists.
func (s *Service) IsFollowing(ctx context.Context, followerID, creatorID string) (bool, error) {
	return s.store.IsFollowing(ctx, followerID, creatorID)
}

// Like records a like on a published post. Liking again is a no-op.
func (s *Service) Like(ctx context.Context, userID, postID string) error {
	p, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if p.State != post.StatePublished {
		return ErrNotPublished
	}

	return s.store.CreateLike(ctx, engagement.Like{
		PostID: postID,
		UserID: userID,
	})
}

// Unlike removes a like. Removing a missing like is a no-op.
func (s *Service) Unlike(ctx context.Context, userID, postID string) error {
	return s.store.DeleteLike(ctx, postID, userID)
}

// HasLiked reports whether the user has liked the post.
func (s *Service) HasLiked(ctx context.Context, userID, postID string) (bool, error) {
	return s.store.HasLiked(ctx, postID, userID)
}

// Comment adds a comment to a published post.
func (s *Service) Comment(ctx context.Context, userID, postID, body string) (engagement.Comment, error) {
	p, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return engagement.Comment{}, err
	}
	if p.State != post.StatePublished {
		return engagement.Comment{}, ErrNotPublished
	}

	c := engagement.Comment{
		PostID: postID,
		UserID: strings.TrimSpace(userID),
		Body:   strings.TrimSpace(body),
	}
	if err := c.Validate(); err != nil {
		return engagement.Comment{}, err
	}

	c, err = s.store.CreateComment(ctx, c)
	if err != nil {
		return engagement.Comment{}, err
	}
	s.log.WithField("comment_id", c.ID).
		WithField("post_id", postID).
		Info("comment added")
	return c, nil
}

// DeleteComment removes a comment. The comment's author and the post's
// creator may both delete it.
func (s *Service) DeleteComment(ctx context.Context, callerID, commentID string) error {
	c, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return err
	}

	if c.UserID != callerID {
		p, err := s.posts.GetPost(ctx, c.PostID)
		if err != nil {
			return err
		}
		if p.CreatorID != callerID {
			return ErrNotAllowed
		}
	}

	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return err
	}
	s.log.WithField("comment_id", commentID).Info("comment deleted")
	return nil
}

// ListComments returns a page of a post's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, postID string, page storage.Page) ([]engagement.Comment, error) {
	return s.store.ListComments(ctx, postID, page)
}

// ListFollowedCreators returns the creator IDs a user follows.
func (s *Service) ListFollowedCreators(ctx context.Context, followerID string) ([]string, error) {
	return s.store.ListFollowedCreators(ctx, followerID)
}
