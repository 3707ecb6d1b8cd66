// Package memory provides a thread-safe in-memory implementation of the
// storage interfaces. It is primarily intended for tests and local
// development, and mirrors the counter semantics the Postgres triggers
// enforce in production.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/creator"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/engagement"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/feed"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/post"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/series"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/support"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/user"
	"github.com/miyannishar/creators-nepal-v2/internal/storage"
)

const defaultPageLimit = 20

// Store is an in-memory implementation of every storage interface.
type Store struct {
	mu            sync.RWMutex
	users         map[string]user.User
	profiles      map[string]creator.Profile
	posts         map[string]post.Post
	series        map[string]series.Series
	follows       map[string]map[string]engagement.Follow // creatorID -> followerID
	likes         map[string]map[string]engagement.Like   // postID -> userID
	comments      map[string]engagement.Comment
	transactions  map[string]support.Transaction
	subscriptions map[string]support.Subscription
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.CreatorStore = (*Store)(nil)
var _ storage.PostStore = (*Store)(nil)
var _ storage.SeriesStore = (*Store)(nil)
var _ storage.EngagementStore = (*Store)(nil)
var _ storage.SupportStore = (*Store)(nil)
var _ storage.FeedStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:         make(map[string]user.User),
		profiles:      make(map[string]creator.Profile),
		posts:         make(map[string]post.Post),
		series:        make(map[string]series.Series),
		follows:       make(map[string]map[string]engagement.Follow),
		likes:         make(map[string]map[string]engagement.Like),
		comments:      make(map[string]engagement.Comment),
		transactions:  make(map[string]support.Transaction),
		subscriptions: make(map[string]support.Subscription),
	}
}

func normalizePage(page storage.Page) (int, int) {
	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > 100 {
		limit = 100
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func slicePage[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// UserStore implementation ----------------------------------------------------

func (m *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	} else if _, exists := m.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s already exists", u.ID)
	}
	norm := user.NormalizeUsername(u.Username)
	for _, existing := range m.users {
		if user.NormalizeUsername(existing.Username) == norm {
			return user.User{}, user.ErrUsernameTaken
		}
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = user.RoleSupporter
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.users[u.ID]
	if !ok {
		return user.User{}, sql.ErrNoRows
	}
	norm := user.NormalizeUsername(u.Username)
	for id, existing := range m.users {
		if id != u.ID && user.NormalizeUsername(existing.Username) == norm {
			return user.User{}, user.ErrUsernameTaken
		}
	}

	u.Email = original.Email
	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	m.users[u.ID] = u
	return u, nil
}

func (m *Store) GetUser(_ context.Context, id string) (user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return user.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (m *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	norm := user.NormalizeUsername(username)
	for _, u := range m.users {
		if user.NormalizeUsername(u.Username) == norm {
			return u, nil
		}
	}
	return user.User{}, sql.ErrNoRows
}

func (m *Store) ListUsers(_ context.Context, page storage.Page) ([]user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]user.User, 0, len(m.users))
	for _, u := range m.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	limit, offset := normalizePage(page)
	return slicePage(result, limit, offset), nil
}

// CreatorStore implementation -------------------------------------------------

func (m *Store) CreateProfile(_ context.Context, p creator.Profile) (creator.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.UserID == "" {
		return creator.Profile{}, fmt.Errorf("user_id is required")
	}
	if _, exists := m.profiles[p.UserID]; exists {
		return creator.Profile{}, fmt.Errorf("profile for %s already exists", p.UserID)
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.EarningsNPR = 0
	p.FollowersCount = 0
	p.PostsCount = 0
	p.SeriesCount = 0
	m.profiles[p.UserID] = p
	return p, nil
}

func (m *Store) UpdateProfile(_ context.Context, p creator.Profile) (creator.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.profiles[p.UserID]
	if !ok {
		return creator.Profile{}, sql.ErrNoRows
	}

	// Counters always come from the stored row.
	p.EarningsNPR = original.EarningsNPR
	p.FollowersCount = original.FollowersCount
	p.PostsCount = original.PostsCount
	p.SeriesCount = original.SeriesCount
	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	m.profiles[p.UserID] = p
	return p, nil
}

func (m *Store) GetProfile(_ context.Context, userID string) (creator.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[userID]
	if !ok {
		return creator.Profile{}, sql.ErrNoRows
	}
	return p, nil
}

func (m *Store) ListProfiles(_ context.Context, category string, page storage.Page) ([]creator.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]creator.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].UserID < result[j].UserID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	limit, offset := normalizePage(page)
	return slicePage(result, limit, offset), nil
}

func (m *Store) AddEarnings(_ context.Context, userID string, deltaNPR int64) (creator.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[userID]
	if !ok {
		return creator.Profile{}, sql.ErrNoRows
	}
	p.EarningsNPR += deltaNPR
	if p.EarningsNPR < 0 {
		p.EarningsNPR = 0
	}
	p.UpdatedAt = time.Now().UTC()
	m.profiles[userID] = p
	return p, nil
}

func (m *Store) SetEarnings(_ context.Context, userID string, totalNPR int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[userID]
	if !ok {
		return sql.ErrNoRows
	}
	if totalNPR < 0 {
		totalNPR = 0
	}
	p.EarningsNPR = totalNPR
	p.UpdatedAt = time.Now().UTC()
	m.profiles[userID] = p
	return nil
}

// PostStore implementation ----------------------------------------------------

func (m *Store) CreatePost(_ context.Context, p post.Post) (post.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	} else if _, exists := m.posts[p.ID]; exists {
		return post.Post{}, fmt.Errorf("post %s already exists", p.ID)
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.State == "" {
		p.State = post.StateDraft
	}
	if p.Visibility == "" {
		p.Visibility = post.VisibilityPublic
	}
	p.LikesCount = 0
	p.CommentsCount = 0

	m.posts[p.ID] = p
	if p.SeriesID != "" {
		m.adjustSeriesPostsLocked(p.SeriesID, 1)
	}
	if p.State == post.StatePublished {
		if p.PublishedAt.IsZero() {
			p.PublishedAt = now
			m.posts[p.ID] = p
		}
		m.adjustCreatorCounterLocked(p.CreatorID, func(cp *creator.Profile) { cp.PostsCount++ })
	}
	return p, nil
}

func (m *Store) UpdatePost(_ context.Context, p post.Post) (post.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.posts[p.ID]
	if !ok {
		return post.Post{}, sql.ErrNoRows
	}

	p.CreatorID = original.CreatorID
	p.State = original.State
	p.PublishedAt = original.PublishedAt
	p.LikesCount = original.LikesCount
	p.CommentsCount = original.CommentsCount
	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	if p.SeriesID != original.SeriesID {
		if original.SeriesID != "" {
			m.adjustSeriesPostsLocked(original.SeriesID, -1)
		}
		if p.SeriesID != "" {
			m.adjustSeriesPostsLocked(p.SeriesID, 1)
		}
	}

	m.posts[p.ID] = p
	return p, nil
}

func (m *Store) GetPost(_ context.Context, id string) (post.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.posts[id]
	if !ok {
		return post.Post{}, sql.ErrNoRows
	}
	return p, nil
}

func (m *Store) DeletePost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[id]
	if !ok {
		return sql.ErrNoRows
	}
	delete(m.posts, id)
	delete(m.likes, id)
	for cid, c := range m.comments {
		if c.PostID == id {
			delete(m.comments, cid)
		}
	}
	if p.SeriesID != "" {
		m.adjustSeriesPostsLocked(p.SeriesID, -1)
	}
	if p.State == post.StatePublished {
		m.adjustCreatorCounterLocked(p.CreatorID, func(cp *creator.Profile) {
			if cp.PostsCount > 0 {
				cp.PostsCount--
			}
		})
	}
	return nil
}

func (m *Store) PublishPost(_ context.Context, id string, at time.Time) (post.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[id]
	if !ok {
		return post.Post{}, sql.ErrNoRows
	}
	if p.State == post.StatePublished {
		return post.Post{}, post.ErrAlreadyPublished
	}
	if p.State != post.StateDraft {
		return post.Post{}, fmt.Errorf("post %s is %s, only drafts can be published", id, p.State)
	}

	if at.IsZero() {
		at = time.Now().UTC()
	}
	p.State = post.StatePublished
	p.PublishedAt = at.UTC()
	p.UpdatedAt = time.Now().UTC()
	m.posts[id] = p
	m.adjustCreatorCounterLocked(p.CreatorID, func(cp *creator.Profile) { cp.PostsCount++ })
	return p, nil
}

func (m *Store) ArchivePost(_ context.Context, id string) (post.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.posts[id]
	if !ok {
		return post.Post{}, sql.ErrNoRows
	}
	if p.State == post.StateArchived {
		return p, nil
	}
	wasPublished := p.State == post.StatePublished
	p.State = post.StateArchived
	p.UpdatedAt = time.Now().UTC()
	m.posts[id] = p
	if wasPublished {
		m.adjustCreatorCounterLocked(p.CreatorID, func(cp *creator.Profile) {
			if cp.PostsCount > 0 {
				cp.PostsCount--
			}
		})
	}
	return p, nil
}

func (m *Store) ListPostsByCreator(_ context.Context, creatorID string, state post.State, page storage.Page) ([]post.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]post.Post, 0)
	for _, p := range m.posts {
		if p.CreatorID != creatorID {
			continue
		}
		if state != "" && p.State != state {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	limit, offset := normalizePage(page)
	return slicePage(result, limit, offset), nil
}

// SeriesStore implementation --------------------------------------------------

func (m *Store) CreateSeries(_ context.Context, s series.Series) (series.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.NewString()
	} else if _, exists := m.series[s.ID]; exists {
		return series.Series{}, fmt.Errorf("series %s already exists", s.ID)
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	s.PostsCount = 0
	m.series[s.ID] = s
	m.adjustCreatorCounterLocked(s.CreatorID, func(cp *creator.Profile) { cp.SeriesCount++ })
	return s, nil
}

func (m *Store) UpdateSeries(_ context.Context, s series.Series) (series.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.series[s.ID]
	if !ok {
		return series.Series{}, sql.ErrNoRows
	}
	s.CreatorID = original.CreatorID
	s.PostsCount = original.PostsCount
	s.CreatedAt = original.CreatedAt
	s.UpdatedAt = time.Now().UTC()
	m.series[s.ID] = s
	return s, nil
}

func (m *Store) GetSeries(_ context.Context, id string) (series.Series, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.series[id]
	if !ok {
		return series.Series{}, sql.ErrNoRows
	}
	return s, nil
}

func (m *Store) DeleteSeries(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.series[id]
	if !ok {
		return sql.ErrNoRows
	}
	delete(m.series, id)
	for pid, p := range m.posts {
		if p.SeriesID == id {
			p.SeriesID = ""
			m.posts[pid] = p
		}
	}
	m.adjustCreatorCounterLocked(s.CreatorID, func(cp *creator.Profile) {
		if cp.SeriesCount > 0 {
			cp.SeriesCount--
		}
	})
	return nil
}

func (m *Store) ListSeriesByCreator(_ context.Context, creatorID string) ([]series.Series, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]series.Series, 0)
	for _, s := range m.series {
		if s.CreatorID == creatorID {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// EngagementStore implementation ----------------------------------------------

func (m *Store) CreateFollow(_ context.Context, f engagement.Follow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byFollower, ok := m.follows[f.CreatorID]
	if !ok {
		byFollower = make(map[string]engagement.Follow)
		m.follows[f.CreatorID] = byFollower
	}
	if _, exists := byFollower[f.FollowerID]; exists {
		return nil // idempotent
	}
	f.CreatedAt = time.Now().UTC()
	byFollower[f.FollowerID] = f
	m.adjustCreatorCounterLocked(f.CreatorID, func(cp *creator.Profile) { cp.FollowersCount++ })
	return nil
}

func (m *Store) DeleteFollow(_ context.Context, followerID, creatorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byFollower, ok := m.follows[creatorID]
	if !ok {
		return nil
	}
	if _, exists := byFollower[followerID]; !exists {
		return nil
	}
	delete(byFollower, followerID)
	m.adjustCreatorCounterLocked(creatorID, func(cp *creator.Profile) {
		if cp.FollowersCount > 0 {
			cp.FollowersCount--
		}
	})
	return nil
}

func (m *Store) IsFollowing(_ context.Context, followerID, creatorID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byFollower, ok := m.follows[creatorID]
	if !ok {
		return false, nil
	}
	_, exists := byFollower[followerID]
	return exists, nil
}

func (m *Store) ListFollowedCreators(_ context.Context, followerID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []string
	for creatorID, byFollower := range m.follows {
		if _, ok := byFollower[followerID]; ok {
			result = append(result, creatorID)
		}
	}
	sort.Strings(result)
	return result, nil
}

func (m *Store) CreateLike(_ context.Context, l engagement.Like) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[l.PostID]; !ok {
		return sql.ErrNoRows
	}
	byUser, ok := m.likes[l.PostID]
	if !ok {
		byUser = make(map[string]engagement.Like)
		m.likes[l.PostID] = byUser
	}
	if _, exists := byUser[l.UserID]; exists {
		return nil // idempotent
	}
	l.CreatedAt = time.Now().UTC()
	byUser[l.UserID] = l
	m.adjustPostCounterLocked(l.PostID, func(p *post.Post) { p.LikesCount++ })
	return nil
}

func (m *Store) DeleteLike(_ context.Context, postID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byUser, ok := m.likes[postID]
	if !ok {
		return nil
	}
	if _, exists := byUser[userID]; !exists {
		return nil
	}
	delete(byUser, userID)
	m.adjustPostCounterLocked(postID, func(p *post.Post) {
		if p.LikesCount > 0 {
			p.LikesCount--
		}
	})
	return nil
}

func (m *Store) HasLiked(_ context.Context, postID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byUser, ok := m.likes[postID]
	if !ok {
		return false, nil
	}
	_, exists := byUser[userID]
	return exists, nil
}

func (m *Store) CreateComment(_ context.Context, c engagement.Comment) (engagement.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[c.PostID]; !ok {
		return engagement.Comment{}, sql.ErrNoRows
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	m.comments[c.ID] = c
	m.adjustPostCounterLocked(c.PostID, func(p *post.Post) { p.CommentsCount++ })
	return c, nil
}

func (m *Store) DeleteComment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[id]
	if !ok {
		return sql.ErrNoRows
	}
	delete(m.comments, id)
	m.adjustPostCounterLocked(c.PostID, func(p *post.Post) {
		if p.CommentsCount > 0 {
			p.CommentsCount--
		}
	})
	return nil
}

func (m *Store) GetComment(_ context.Context, id string) (engagement.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.comments[id]
	if !ok {
		return engagement.Comment{}, sql.ErrNoRows
	}
	return c, nil
}

func (m *Store) ListComments(_ context.Context, postID string, page storage.Page) ([]engagement.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engagement.Comment, 0)
	for _, c := range m.comments {
		if c.PostID == postID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	limit, offset := normalizePage(page)
	return slicePage(result, limit, offset), nil
}

// SupportStore implementation -------------------------------------------------

func (m *Store) CreateTransaction(_ context.Context, t support.Transaction) (support.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = support.StatusPending
	}
	if t.Currency == "" {
		t.Currency = "NPR"
	}
	m.transactions[t.ID] = t
	return t, nil
}

func (m *Store) UpdateTransaction(_ context.Context, t support.Transaction) (support.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.transactions[t.ID]
	if !ok {
		return support.Transaction{}, sql.ErrNoRows
	}
	t.SupporterID = original.SupporterID
	t.CreatorID = original.CreatorID
	t.AmountNPR = original.AmountNPR
	t.Currency = original.Currency
	t.CreatedAt = original.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	m.transactions[t.ID] = t
	return t, nil
}

func (m *Store) GetTransaction(_ context.Context, id string) (support.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.transactions[id]
	if !ok {
		return support.Transaction{}, sql.ErrNoRows
	}
	return t, nil
}

func (m *Store) listTransactions(match func(support.Transaction) bool, page storage.Page) []support.Transaction {
	result := make([]support.Transaction, 0)
	for _, t := range m.transactions {
		if match(t) {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	limit, offset := normalizePage(page)
	return slicePage(result, limit, offset)
}

func (m *Store) ListTransactionsByCreator(_ context.Context, creatorID string, page storage.Page) ([]support.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listTransactions(func(t support.Transaction) bool { return t.CreatorID == creatorID }, page), nil
}

func (m *Store) ListTransactionsBySupporter(_ context.Context, supporterID string, page storage.Page) ([]support.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listTransactions(func(t support.Transaction) bool { return t.SupporterID == supporterID }, page), nil
}

func (m *Store) SumCompletedByCreator(_ context.Context, creatorID string, since time.Time) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]int64)
	for _, t := range m.transactions {
		if t.CreatorID != creatorID || t.Status != support.StatusCompleted {
			continue
		}
		if !since.IsZero() && t.CreatedAt.Before(since) {
			continue
		}
		result[t.CreatedAt.Format("2006-01")] += t.AmountNPR
	}
	return result, nil
}

func (m *Store) HasCompletedSince(_ context.Context, supporterID, creatorID string, cutoff time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.transactions {
		if t.SupporterID == supporterID && t.CreatorID == creatorID &&
			t.Status == support.StatusCompleted && !t.CreatedAt.Before(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Store) CreateSubscription(_ context.Context, s support.Subscription) (support.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.subscriptions {
		if existing.SupporterID == s.SupporterID && existing.CreatorID == s.CreatorID &&
			existing.Status == support.SubscriptionActive {
			return support.Subscription{}, support.ErrAlreadySubscribed
		}
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.Status == "" {
		s.Status = support.SubscriptionActive
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = now
	}
	m.subscriptions[s.ID] = s
	return s, nil
}

func (m *Store) UpdateSubscription(_ context.Context, s support.Subscription) (support.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.subscriptions[s.ID]
	if !ok {
		return support.Subscription{}, sql.ErrNoRows
	}
	s.SupporterID = original.SupporterID
	s.CreatorID = original.CreatorID
	s.StartedAt = original.StartedAt
	s.CreatedAt = original.CreatedAt
	s.UpdatedAt = time.Now().UTC()
	m.subscriptions[s.ID] = s
	return s, nil
}

func (m *Store) GetSubscription(_ context.Context, id string) (support.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.subscriptions[id]
	if !ok {
		return support.Subscription{}, sql.ErrNoRows
	}
	return s, nil
}

func (m *Store) listSubscriptions(match func(support.Subscription) bool) []support.Subscription {
	result := make([]support.Subscription, 0)
	for _, s := range m.subscriptions {
		if match(s) {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (m *Store) ListSubscriptionsBySupporter(_ context.Context, supporterID string) ([]support.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listSubscriptions(func(s support.Subscription) bool { return s.SupporterID == supporterID }), nil
}

func (m *Store) ListSubscriptionsByCreator(_ context.Context, creatorID string) ([]support.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listSubscriptions(func(s support.Subscription) bool { return s.CreatorID == creatorID }), nil
}

func (m *Store) GetActiveSubscription(_ context.Context, supporterID, creatorID string) (support.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.subscriptions {
		if s.SupporterID == supporterID && s.CreatorID == creatorID && s.Status == support.SubscriptionActive {
			return s, nil
		}
	}
	return support.Subscription{}, sql.ErrNoRows
}

func (m *Store) ExpireLapsed(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var changed int64
	for id, s := range m.subscriptions {
		if s.Status == support.SubscriptionActive && !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now) {
			s.Status = support.SubscriptionExpired
			s.UpdatedAt = time.Now().UTC()
			m.subscriptions[id] = s
			changed++
		}
	}
	return changed, nil
}

func (m *Store) ListCreatorIDsWithCompleted(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	for _, t := range m.transactions {
		if t.Status == support.StatusCompleted {
			seen[t.CreatorID] = true
		}
	}
	result := make([]string, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Strings(result)
	return result, nil
}

// FeedStore implementation ----------------------------------------------------

func (m *Store) feedItemLocked(p post.Post) feed.Item {
	item := feed.Item{
		PostID:        p.ID,
		CreatorID:     p.CreatorID,
		Title:         p.Title,
		Excerpt:       feedExcerpt(p),
		MediaURL:      p.MediaURL,
		Visibility:    string(p.Visibility),
		LikesCount:    p.LikesCount,
		CommentsCount: p.CommentsCount,
		PublishedAt:   p.PublishedAt,
	}
	if u, ok := m.users[p.CreatorID]; ok {
		item.CreatorName = u.DisplayName
		if item.CreatorName == "" {
			item.CreatorName = u.Username
		}
		item.CreatorAvatar = u.AvatarURL
	}
	return item
}

func feedExcerpt(p post.Post) string {
	if p.Visibility == post.VisibilitySupporters {
		return ""
	}
	body := []rune(p.Body)
	if len(body) > 200 {
		return string(body[:200])
	}
	return string(body)
}

func (m *Store) publishedPostsLocked(match func(post.Post) bool) []post.Post {
	result := make([]post.Post, 0)
	for _, p := range m.posts {
		if p.State != post.StatePublished {
			continue
		}
		if match != nil && !match(p) {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].PublishedAt.Equal(result[j].PublishedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].PublishedAt.After(result[j].PublishedAt)
	})
	return result
}

func (m *Store) DiscoverFeed(_ context.Context, page storage.Page) ([]feed.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	posts := m.publishedPostsLocked(nil)
	limit, offset := normalizePage(page)
	posts = slicePage(posts, limit, offset)
	result := make([]feed.Item, 0, len(posts))
	for _, p := range posts {
		result = append(result, m.feedItemLocked(p))
	}
	return result, nil
}

func (m *Store) FollowingFeed(_ context.Context, followerID string, page storage.Page) ([]feed.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	followed := make(map[string]bool)
	for creatorID, byFollower := range m.follows {
		if _, ok := byFollower[followerID]; ok {
			followed[creatorID] = true
		}
	}

	posts := m.publishedPostsLocked(func(p post.Post) bool { return followed[p.CreatorID] })
	limit, offset := normalizePage(page)
	posts = slicePage(posts, limit, offset)
	result := make([]feed.Item, 0, len(posts))
	for _, p := range posts {
		result = append(result, m.feedItemLocked(p))
	}
	return result, nil
}

func (m *Store) SearchPosts(_ context.Context, query string, page storage.Page) ([]feed.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}
	posts := m.publishedPostsLocked(func(p post.Post) bool {
		return strings.Contains(strings.ToLower(p.Title), needle)
	})
	limit, offset := normalizePage(page)
	posts = slicePage(posts, limit, offset)
	result := make([]feed.Item, 0, len(posts))
	for _, p := range posts {
		result = append(result, m.feedItemLocked(p))
	}
	return result, nil
}

func (m *Store) creatorResultLocked(p creator.Profile) feed.CreatorResult {
	result := feed.CreatorResult{
		UserID:         p.UserID,
		Category:       p.Category,
		Bio:            p.Bio,
		FollowersCount: p.FollowersCount,
		PostsCount:     p.PostsCount,
	}
	if u, ok := m.users[p.UserID]; ok {
		result.Username = u.Username
		result.DisplayName = u.DisplayName
		result.AvatarURL = u.AvatarURL
	}
	return result
}

func (m *Store) SearchCreators(_ context.Context, query string, page storage.Page) ([]feed.CreatorResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}
	result := make([]feed.CreatorResult, 0)
	for _, p := range m.profiles {
		r := m.creatorResultLocked(p)
		if strings.Contains(strings.ToLower(r.DisplayName), needle) ||
			strings.Contains(strings.ToLower(r.Username), needle) ||
			strings.Contains(strings.ToLower(r.Bio), needle) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FollowersCount == result[j].FollowersCount {
			return result[i].UserID < result[j].UserID
		}
		return result[i].FollowersCount > result[j].FollowersCount
	})
	limit, offset := normalizePage(page)
	return slicePage(result, limit, offset), nil
}

func (m *Store) TrendingCreators(_ context.Context, limit int) ([]feed.CreatorResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	result := make([]feed.CreatorResult, 0, len(m.profiles))
	for _, p := range m.profiles {
		result = append(result, m.creatorResultLocked(p))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FollowersCount == result[j].FollowersCount {
			return result[i].UserID < result[j].UserID
		}
		return result[i].FollowersCount > result[j].FollowersCount
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Internal helpers ------------------------------------------------------------

func (m *Store) adjustCreatorCounterLocked(userID string, mutate func(*creator.Profile)) {
	p, ok := m.profiles[userID]
	if !ok {
		return
	}
	mutate(&p)
	p.UpdatedAt = time.Now().UTC()
	m.profiles[userID] = p
}

func (m *Store) adjustPostCounterLocked(postID string, mutate func(*post.Post)) {
	p, ok := m.posts[postID]
	if !ok {
		return
	}
	mutate(&p)
	m.posts[postID] = p
}

func (m *Store) adjustSeriesPostsLocked(seriesID string, delta int64) {
	s, ok := m.series[seriesID]
	if !ok {
		return
	}
	s.PostsCount += delta
	if s.PostsCount < 0 {
		s.PostsCount = 0
	}
	s.UpdatedAt = time.Now().UTC()
	m.series[seriesID] = s
}
