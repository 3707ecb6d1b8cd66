// Package series defines ordered collections of posts.
package series

import (
	"strings"
	"time"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/validation"
)

// Series groups a creator's posts under one title. PostsCount is a derived
// counter maintained by the storage layer.
type Series struct {
	ID          string    `json:"id"`
	CreatorID   string    `json:"creator_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CoverURL    string    `json:"cover_url,omitempty"`
	PostsCount  int64     `json:"posts_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the fields a new series must carry.
func (s Series) Validate() error {
	if strings.TrimSpace(s.CreatorID) == "" {
		return validation.New("creator_id is required")
	}
	if strings.TrimSpace(s.Title) == "" {
		return validation.New("title is required")
	}
	return nil
}
