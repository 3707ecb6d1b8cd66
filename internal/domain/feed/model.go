// Package feed defines the composed read models served by the discovery,
// following, and search endpoints.
package feed

import "time"

// Item is a published post joined with its creator's public fields so
// clients never perform the join themselves.
type Item struct {
	PostID        string    `json:"post_id"`
	CreatorID     string    `json:"creator_id"`
	CreatorName   string    `json:"creator_name"`
	CreatorAvatar string    `json:"creator_avatar,omitempty"`
	Title         string    `json:"title"`
	Excerpt       string    `json:"excerpt"`
	MediaURL      string    `json:"media_url,omitempty"`
	Visibility    string    `json:"visibility"`
	LikesCount    int64     `json:"likes_count"`
	CommentsCount int64     `json:"comments_count"`
	PublishedAt   time.Time `json:"published_at"`
}

// CreatorResult is a creator row surfaced by search and trending queries.
type CreatorResult struct {
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	Category       string `json:"category"`
	Bio            string `json:"bio"`
	FollowersCount int64  `json:"followers_count"`
	PostsCount     int64  `json:"posts_count"`
}

// SearchResult bundles post and creator matches for one query.
type SearchResult struct {
	Posts    []Item          `json:"posts"`
	Creators []CreatorResult `json:"creators"`
}
