// Package post defines creator content and its publication lifecycle.
package post

import (
	"errors"
	"strings"
	"time"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/validation"
)

// State is the publication state of a post.
type State string

const (
	StateDraft     State = "draft"
	StatePublished State = "published"
	StateArchived  State = "archived"
)

// Valid reports whether the state is one of the known values.
func (s State) Valid() bool {
	switch s {
	case StateDraft, StatePublished, StateArchived:
		return true
	}
	return false
}

// Visibility controls who may read the post body.
type Visibility string

const (
	VisibilityPublic     Visibility = "public"
	VisibilitySupporters Visibility = "supporters"
)

// Valid reports whether the visibility is one of the known values.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilitySupporters
}

// Post is a unit of creator content. LikesCount and CommentsCount are
// derived counters maintained by the storage layer.
type Post struct {
	ID            string     `json:"id"`
	CreatorID     string     `json:"creator_id"`
	SeriesID      string     `json:"series_id,omitempty"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	MediaURL      string     `json:"media_url,omitempty"`
	Visibility    Visibility `json:"visibility"`
	State         State      `json:"state"`
	LikesCount    int64      `json:"likes_count"`
	CommentsCount int64      `json:"comments_count"`
	PublishedAt   time.Time  `json:"published_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ErrAlreadyPublished is returned when publishing a post twice.
var ErrAlreadyPublished = errors.New("post already published")

// Validate checks the fields a new post must carry.
func (p Post) Validate() error {
	if strings.TrimSpace(p.CreatorID) == "" {
		return validation.New("creator_id is required")
	}
	if strings.TrimSpace(p.Title) == "" {
		return validation.New("title is required")
	}
	if p.Visibility != "" && !p.Visibility.Valid() {
		return validation.New("unknown visibility")
	}
	if p.State != "" && !p.State.Valid() {
		return validation.New("unknown state")
	}
	return nil
}
