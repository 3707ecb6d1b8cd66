// Package creator defines creator profiles and their derived counters.
package creator

import "time"

// Profile carries a creator's public page data. The counter fields are
// derived from the underlying join tables and maintained by the storage
// layer; callers must never compute them.
type Profile struct {
	UserID         string    `json:"user_id"`
	Bio            string    `json:"bio"`
	Category       string    `json:"category"`
	CoverURL       string    `json:"cover_url,omitempty"`
	SupportTierNPR int64     `json:"support_tier_npr"`
	EarningsNPR    int64     `json:"earnings_npr"`
	FollowersCount int64     `json:"followers_count"`
	PostsCount     int64     `json:"posts_count"`
	SeriesCount    int64     `json:"series_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// EarningsSummary aggregates completed supporter transactions for a creator.
type EarningsSummary struct {
	CreatorID  string           `json:"creator_id"`
	TotalNPR   int64            `json:"total_npr"`
	MonthlyNPR map[string]int64 `json:"monthly_npr"`
}
