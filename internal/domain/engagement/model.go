// Package engagement defines the audience interaction records: follows,
// likes, and comments.
package engagement

import (
	"strings"
	"time"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/validation"
)

// Follow links a follower to a creator. The pair is unique; repeated
// follows are no-ops.
type Follow struct {
	FollowerID string    `json:"follower_id"`
	CreatorID  string    `json:"creator_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Like marks a user's like on a post. The pair is unique; repeated likes
// are no-ops.
type Like struct {
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a user's comment on a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields a new comment must carry.
func (c Comment) Validate() error {
	if strings.TrimSpace(c.PostID) == "" {
		return validation.New("post_id is required")
	}
	if strings.TrimSpace(c.UserID) == "" {
		return validation.New("user_id is required")
	}
	if strings.TrimSpace(c.Body) == "" {
		return validation.New("body is required")
	}
	return nil
}
