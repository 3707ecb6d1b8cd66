// Package postgres implements the storage interfaces backed by PostgreSQL.
// The derived counters (likes, comments, followers, posts, series) are
// maintained by the triggers shipped in this package's migrations, so row
// writes here never touch them directly.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/creator"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/engagement"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/feed"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/post"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/series"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/support"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/user"
	"github.com/miyannishar/creators-nepal-v2/internal/storage"
)

const (
	defaultPageLimit   = 20
	maxPageLimit       = 100
	uniqueViolation    = "23505"
	usernameUniqueIdx  = "users_username_lower_idx"
	activePairIdx      = "subscriptions_active_pair_idx"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.CreatorStore = (*Store)(nil)
var _ storage.PostStore = (*Store)(nil)
var _ storage.SeriesStore = (*Store)(nil)
var _ storage.EngagementStore = (*Store)(nil)
var _ storage.SupportStore = (*Store)(nil)
var _ storage.FeedStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func normalizePage(page storage.Page) (int, int) {
	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return false
	}
	if pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = user.RoleSupporter
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, username, display_name, avatar_url, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Email, u.Username, u.DisplayName, u.AvatarURL, u.Role, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, usernameUniqueIdx) {
			return user.User{}, user.ErrUsernameTaken
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}

	u.Email = existing.Email
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET username = $2, display_name = $3, avatar_url = $4, role = $5, updated_at = $6
		WHERE id = $1
	`, u.ID, u.Username, u.DisplayName, u.AvatarURL, u.Role, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, usernameUniqueIdx) {
			return user.User{}, user.ErrUsernameTaken
		}
		return user.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (s *Store) scanUser(row *sql.Row) (user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.AvatarURL, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, username, display_name, avatar_url, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, username, display_name, avatar_url, role, created_at, updated_at
		FROM users
		WHERE lower(username) = lower($1)
	`, username))
}

func (s *Store) ListUsers(ctx context.Context, page storage.Page) ([]user.User, error) {
	limit, offset := normalizePage(page)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, username, display_name, avatar_url, role, created_at, updated_at
		FROM users
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.AvatarURL, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// --- CreatorStore -----------------------------------------------------------

func (s *Store) CreateProfile(ctx context.Context, p creator.Profile) (creator.Profile, error) {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.EarningsNPR = 0
	p.FollowersCount = 0
	p.PostsCount = 0
	p.SeriesCount = 0

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO creator_profiles (user_id, bio, category, cover_url, support_tier_npr, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.UserID, p.Bio, p.Category, p.CoverURL, p.SupportTierNPR, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return creator.Profile{}, err
	}
	return p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, p creator.Profile) (creator.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE creator_profiles
		SET bio = $2, category = $3, cover_url = $4, support_tier_npr = $5, updated_at = $6
		WHERE user_id = $1
		RETURNING earnings_npr, followers_count, posts_count, series_count, created_at
	`, p.UserID, p.Bio, p.Category, p.CoverURL, p.SupportTierNPR, time.Now().UTC())

	if err := row.Scan(&p.EarningsNPR, &p.FollowersCount, &p.PostsCount, &p.SeriesCount, &p.CreatedAt); err != nil {
		return creator.Profile{}, err
	}
	p.UpdatedAt = time.Now().UTC()
	return p, nil
}

func (s *Store) scanProfile(row *sql.Row) (creator.Profile, error) {
	var p creator.Profile
	err := row.Scan(&p.UserID, &p.Bio, &p.Category, &p.CoverURL, &p.SupportTierNPR,
		&p.EarningsNPR, &p.FollowersCount, &p.PostsCount, &p.SeriesCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return creator.Profile{}, err
	}
	return p, nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (creator.Profile, error) {
	return s.scanProfile(s.db.QueryRowContext(ctx, `
		SELECT user_id, bio, category, cover_url, support_tier_npr,
		       earnings_npr, followers_count, posts_count, series_count, created_at, updated_at
		FROM creator_profiles
		WHERE user_id = $1
	`, userID))
}

func (s *Store) ListProfiles(ctx context.Context, category string, page storage.Page) ([]creator.Profile, error) {
	limit, offset := normalizePage(page)
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, bio, category, cover_url, support_tier_npr,
		       earnings_npr, followers_count, posts_count, series_count, created_at, updated_at
		FROM creator_profiles
		WHERE $1 = '' OR lower(category) = lower($1)
		ORDER BY created_at, user_id
		LIMIT $2 OFFSET $3
	`, category, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []creator.Profile
	for rows.Next() {
		var p creator.Profile
		if err := rows.Scan(&p.UserID, &p.Bio, &p.Category, &p.CoverURL, &p.SupportTierNPR,
			&p.EarningsNPR, &p.FollowersCount, &p.PostsCount, &p.SeriesCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) AddEarnings(ctx context.Context, userID string, deltaNPR int64) (creator.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE creator_profiles
		SET earnings_npr = GREATEST(earnings_npr + $2, 0), updated_at = now()
		WHERE user_id = $1
		RETURNING user_id, bio, category, cover_url, support_tier_npr,
		          earnings_npr, followers_count, posts_count, series_count, created_at, updated_at
	`, userID, deltaNPR)
	return s.scanProfile(row)
}

func (s *Store) SetEarnings(ctx context.Context, userID string, totalNPR int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE creator_profiles
		SET earnings_npr = GREATEST($2, 0), updated_at = now()
		WHERE user_id = $1
	`, userID, totalNPR)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- PostStore --------------------------------------------------------------

func (s *Store) CreatePost(ctx context.Context, p post.Post) (post.Post, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.State == "" {
		p.State = post.StateDraft
	}
	if p.Visibility == "" {
		p.Visibility = post.VisibilityPublic
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.State == post.StatePublished && p.PublishedAt.IsZero() {
		p.PublishedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, creator_id, series_id, title, body, media_url, visibility, state, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.CreatorID, toNullString(p.SeriesID), p.Title, p.Body, p.MediaURL, p.Visibility, p.State,
		toNullTime(p.PublishedAt), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return post.Post{}, err
	}
	return p, nil
}

func (s *Store) UpdatePost(ctx context.Context, p post.Post) (post.Post, error) {
	existing, err := s.GetPost(ctx, p.ID)
	if err != nil {
		return post.Post{}, err
	}

	p.CreatorID = existing.CreatorID
	p.State = existing.State
	p.PublishedAt = existing.PublishedAt
	p.LikesCount = existing.LikesCount
	p.CommentsCount = existing.CommentsCount
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE posts
		SET series_id = $2, title = $3, body = $4, media_url = $5, visibility = $6, updated_at = $7
		WHERE id = $1
	`, p.ID, toNullString(p.SeriesID), p.Title, p.Body, p.MediaURL, p.Visibility, p.UpdatedAt)
	if err != nil {
		return post.Post{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return post.Post{}, sql.ErrNoRows
	}
	return p, nil
}

func scanPost(scan func(dest ...any) error) (post.Post, error) {
	var (
		p           post.Post
		seriesID    sql.NullString
		publishedAt sql.NullTime
	)
	err := scan(&p.ID, &p.CreatorID, &seriesID, &p.Title, &p.Body, &p.MediaURL, &p.Visibility,
		&p.State, &p.LikesCount, &p.CommentsCount, &publishedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return post.Post{}, err
	}
	if seriesID.Valid {
		p.SeriesID = seriesID.String
	}
	if publishedAt.Valid {
		p.PublishedAt = publishedAt.Time.UTC()
	}
	return p, nil
}

const postColumns = `id, creator_id, series_id, title, body, media_url, visibility, state,
	likes_count, comments_count, published_at, created_at, updated_at`

func (s *Store) GetPost(ctx context.Context, id string) (post.Post, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE id = $1
	`, id)
	return scanPost(row.Scan)
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) PublishPost(ctx context.Context, id string, at time.Time) (post.Post, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE posts
		SET state = $2, published_at = $3, updated_at = now()
		WHERE id = $1 AND state = $4
		RETURNING `+postColumns+`
	`, id, post.StatePublished, at.UTC(), post.StateDraft)

	p, err := scanPost(row.Scan)
	if err == sql.ErrNoRows {
		existing, getErr := s.GetPost(ctx, id)
		if getErr != nil {
			return post.Post{}, getErr
		}
		if existing.State == post.StatePublished {
			return post.Post{}, post.ErrAlreadyPublished
		}
		return post.Post{}, sql.ErrNoRows
	}
	return p, err
}

func (s *Store) ArchivePost(ctx context.Context, id string) (post.Post, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE posts
		SET state = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+postColumns+`
	`, id, post.StateArchived)
	return scanPost(row.Scan)
}

func (s *Store) ListPostsByCreator(ctx context.Context, creatorID string, state post.State, page storage.Page) ([]post.Post, error) {
	limit, offset := normalizePage(page)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE creator_id = $1 AND ($2 = '' OR state = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, creatorID, string(state), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []post.Post
	for rows.Next() {
		p, err := scanPost(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// --- SeriesStore ------------------------------------------------------------

func (s *Store) CreateSeries(ctx context.Context, sr series.Series) (series.Series, error) {
	if sr.ID == "" {
		sr.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sr.CreatedAt = now
	sr.UpdatedAt = now
	sr.PostsCount = 0

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO series (id, creator_id, title, description, cover_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sr.ID, sr.CreatorID, sr.Title, sr.Description, sr.CoverURL, sr.CreatedAt, sr.UpdatedAt)
	if err != nil {
		return series.Series{}, err
	}
	return sr, nil
}

func (s *Store) UpdateSeries(ctx context.Context, sr series.Series) (series.Series, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE series
		SET title = $2, description = $3, cover_url = $4, updated_at = now()
		WHERE id = $1
		RETURNING creator_id, posts_count, created_at, updated_at
	`, sr.ID, sr.Title, sr.Description, sr.CoverURL)

	if err := row.Scan(&sr.CreatorID, &sr.PostsCount, &sr.CreatedAt, &sr.UpdatedAt); err != nil {
		return series.Series{}, err
	}
	return sr, nil
}

func (s *Store) GetSeries(ctx context.Context, id string) (series.Series, error) {
	var sr series.Series
	row := s.db.QueryRowContext(ctx, `
		SELECT id, creator_id, title, description, cover_url, posts_count, created_at, updated_at
		FROM series
		WHERE id = $1
	`, id)
	if err := row.Scan(&sr.ID, &sr.CreatorID, &sr.Title, &sr.Description, &sr.CoverURL, &sr.PostsCount, &sr.CreatedAt, &sr.UpdatedAt); err != nil {
		return series.Series{}, err
	}
	return sr, nil
}

func (s *Store) DeleteSeries(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM series WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) ListSeriesByCreator(ctx context.Context, creatorID string) ([]series.Series, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, creator_id, title, description, cover_url, posts_count, created_at, updated_at
		FROM series
		WHERE creator_id = $1
		ORDER BY created_at, id
	`, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []series.Series
	for rows.Next() {
		var sr series.Series
		if err := rows.Scan(&sr.ID, &sr.CreatorID, &sr.Title, &sr.Description, &sr.CoverURL, &sr.PostsCount, &sr.CreatedAt, &sr.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, sr)
	}
	return result, rows.Err()
}

// --- EngagementStore --------------------------------------------------------

func (s *Store) CreateFollow(ctx context.Context, f engagement.Follow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO follows (follower_id, creator_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (follower_id, creator_id) DO NOTHING
	`, f.FollowerID, f.CreatorID, time.Now().UTC())
	return err
}

func (s *Store) DeleteFollow(ctx context.Context, followerID, creatorID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM follows WHERE follower_id = $1 AND creator_id = $2
	`, followerID, creatorID)
	return err
}

func (s *Store) IsFollowing(ctx context.Context, followerID, creatorID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND creator_id = $2)
	`, followerID, creatorID).Scan(&exists)
	return exists, err
}

func (s *Store) ListFollowedCreators(ctx context.Context, followerID string) ([]string, error) {
	var result []string
	err := s.db.SelectContext(ctx, &result, `
		SELECT creator_id FROM follows WHERE follower_id = $1 ORDER BY creator_id
	`, followerID)
	return result, err
}

func (s *Store) CreateLike(ctx context.Context, l engagement.Like) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO post_likes (post_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id, user_id) DO NOTHING
	`, l.PostID, l.UserID, time.Now().UTC())
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return sql.ErrNoRows // post missing
		}
		return err
	}
	return nil
}

func (s *Store) DeleteLike(ctx context.Context, postID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2
	`, postID, userID)
	return err
}

func (s *Store) HasLiked(ctx context.Context, postID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM post_likes WHERE post_id = $1 AND user_id = $2)
	`, postID, userID).Scan(&exists)
	return exists, err
}

func (s *Store) CreateComment(ctx context.Context, c engagement.Comment) (engagement.Comment, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO post_comments (id, post_id, user_id, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.PostID, c.UserID, c.Body, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return engagement.Comment{}, sql.ErrNoRows
		}
		return engagement.Comment{}, err
	}
	return c, nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM post_comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) GetComment(ctx context.Context, id string) (engagement.Comment, error) {
	var c engagement.Comment
	row := s.db.QueryRowContext(ctx, `
		SELECT id, post_id, user_id, body, created_at, updated_at
		FROM post_comments
		WHERE id = $1
	`, id)
	if err := row.Scan(&c.ID, &c.PostID, &c.UserID, &c.Body, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return engagement.Comment{}, err
	}
	return c, nil
}

func (s *Store) ListComments(ctx context.Context, postID string, page storage.Page) ([]engagement.Comment, error) {
	limit, offset := normalizePage(page)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, user_id, body, created_at, updated_at
		FROM post_comments
		WHERE post_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`, postID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []engagement.Comment
	for rows.Next() {
		var c engagement.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Body, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// --- SupportStore -----------------------------------------------------------

func (s *Store) CreateTransaction(ctx context.Context, t support.Transaction) (support.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = support.StatusPending
	}
	if t.Currency == "" {
		t.Currency = "NPR"
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO supporter_transactions (id, supporter_id, creator_id, amount_npr, currency, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.SupporterID, t.CreatorID, t.AmountNPR, t.Currency, t.Message, t.Status, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return support.Transaction{}, err
	}
	return t, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t support.Transaction) (support.Transaction, error) {
	existing, err := s.GetTransaction(ctx, t.ID)
	if err != nil {
		return support.Transaction{}, err
	}

	t.SupporterID = existing.SupporterID
	t.CreatorID = existing.CreatorID
	t.AmountNPR = existing.AmountNPR
	t.Currency = existing.Currency
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE supporter_transactions
		SET message = $2, status = $3, updated_at = $4
		WHERE id = $1
	`, t.ID, t.Message, t.Status, t.UpdatedAt)
	if err != nil {
		return support.Transaction{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return support.Transaction{}, sql.ErrNoRows
	}
	return t, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (support.Transaction, error) {
	var t support.Transaction
	row := s.db.QueryRowContext(ctx, `
		SELECT id, supporter_id, creator_id, amount_npr, currency, message, status, created_at, updated_at
		FROM supporter_transactions
		WHERE id = $1
	`, id)
	if err := row.Scan(&t.ID, &t.SupporterID, &t.CreatorID, &t.AmountNPR, &t.Currency, &t.Message, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return support.Transaction{}, err
	}
	return t, nil
}

func (s *Store) listTransactions(ctx context.Context, column, id string, page storage.Page) ([]support.Transaction, error) {
	limit, offset := normalizePage(page)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supporter_id, creator_id, amount_npr, currency, message, status, created_at, updated_at
		FROM supporter_transactions
		WHERE `+column+` = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, id, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []support.Transaction
	for rows.Next() {
		var t support.Transaction
		if err := rows.Scan(&t.ID, &t.SupporterID, &t.CreatorID, &t.AmountNPR, &t.Currency, &t.Message, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *Store) ListTransactionsByCreator(ctx context.Context, creatorID string, page storage.Page) ([]support.Transaction, error) {
	return s.listTransactions(ctx, "creator_id", creatorID, page)
}

func (s *Store) ListTransactionsBySupporter(ctx context.Context, supporterID string, page storage.Page) ([]support.Transaction, error) {
	return s.listTransactions(ctx, "supporter_id", supporterID, page)
}

func (s *Store) SumCompletedByCreator(ctx context.Context, creatorID string, since time.Time) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(created_at, 'YYYY-MM') AS month, COALESCE(SUM(amount_npr), 0)
		FROM supporter_transactions
		WHERE creator_id = $1 AND status = 'completed'
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		GROUP BY month
	`, creatorID, toNullTime(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var (
			month string
			total int64
		)
		if err := rows.Scan(&month, &total); err != nil {
			return nil, err
		}
		result[month] = total
	}
	return result, rows.Err()
}

func (s *Store) HasCompletedSince(ctx context.Context, supporterID, creatorID string, cutoff time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM supporter_transactions
			WHERE supporter_id = $1 AND creator_id = $2 AND status = 'completed' AND created_at >= $3
		)
	`, supporterID, creatorID, cutoff.UTC()).Scan(&exists)
	return exists, err
}

func (s *Store) CreateSubscription(ctx context.Context, sub support.Subscription) (support.Subscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = support.SubscriptionActive
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	if sub.StartedAt.IsZero() {
		sub.StartedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, supporter_id, creator_id, tier_npr, status, started_at, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, sub.ID, sub.SupporterID, sub.CreatorID, sub.TierNPR, sub.Status, sub.StartedAt, toNullTime(sub.ExpiresAt), sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, activePairIdx) {
			return support.Subscription{}, support.ErrAlreadySubscribed
		}
		return support.Subscription{}, err
	}
	return sub, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub support.Subscription) (support.Subscription, error) {
	existing, err := s.GetSubscription(ctx, sub.ID)
	if err != nil {
		return support.Subscription{}, err
	}

	sub.SupporterID = existing.SupporterID
	sub.CreatorID = existing.CreatorID
	sub.StartedAt = existing.StartedAt
	sub.CreatedAt = existing.CreatedAt
	sub.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET tier_npr = $2, status = $3, expires_at = $4, updated_at = $5
		WHERE id = $1
	`, sub.ID, sub.TierNPR, sub.Status, toNullTime(sub.ExpiresAt), sub.UpdatedAt)
	if err != nil {
		return support.Subscription{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return support.Subscription{}, sql.ErrNoRows
	}
	return sub, nil
}

func scanSubscription(scan func(dest ...any) error) (support.Subscription, error) {
	var (
		sub       support.Subscription
		expiresAt sql.NullTime
	)
	err := scan(&sub.ID, &sub.SupporterID, &sub.CreatorID, &sub.TierNPR, &sub.Status,
		&sub.StartedAt, &expiresAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return support.Subscription{}, err
	}
	if expiresAt.Valid {
		sub.ExpiresAt = expiresAt.Time.UTC()
	}
	return sub, nil
}

const subscriptionColumns = `id, supporter_id, creator_id, tier_npr, status, started_at, expires_at, created_at, updated_at`

func (s *Store) GetSubscription(ctx context.Context, id string) (support.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1
	`, id)
	return scanSubscription(row.Scan)
}

func (s *Store) listSubscriptions(ctx context.Context, column, id string) ([]support.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE `+column+` = $1
		ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []support.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}

func (s *Store) ListSubscriptionsBySupporter(ctx context.Context, supporterID string) ([]support.Subscription, error) {
	return s.listSubscriptions(ctx, "supporter_id", supporterID)
}

func (s *Store) ListSubscriptionsByCreator(ctx context.Context, creatorID string) ([]support.Subscription, error) {
	return s.listSubscriptions(ctx, "creator_id", creatorID)
}

func (s *Store) GetActiveSubscription(ctx context.Context, supporterID, creatorID string) (support.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE supporter_id = $1 AND creator_id = $2 AND status = 'active'
	`, supporterID, creatorID)
	return scanSubscription(row.Scan)
}

func (s *Store) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = 'expired', updated_at = now()
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < $1
	`, now.UTC())
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

func (s *Store) ListCreatorIDsWithCompleted(ctx context.Context) ([]string, error) {
	var result []string
	err := s.db.SelectContext(ctx, &result, `
		SELECT DISTINCT creator_id FROM supporter_transactions WHERE status = 'completed' ORDER BY creator_id
	`)
	return result, err
}

// --- FeedStore --------------------------------------------------------------

// feedRow mirrors the composed feed SELECT; supporters-only bodies are
// blanked in SQL so the excerpt never leaks gated content.
type feedRow struct {
	PostID        string    `db:"post_id"`
	CreatorID     string    `db:"creator_id"`
	CreatorName   string    `db:"creator_name"`
	CreatorAvatar string    `db:"creator_avatar"`
	Title         string    `db:"title"`
	Excerpt       string    `db:"excerpt"`
	MediaURL      string    `db:"media_url"`
	Visibility    string    `db:"visibility"`
	LikesCount    int64     `db:"likes_count"`
	CommentsCount int64     `db:"comments_count"`
	PublishedAt   time.Time `db:"published_at"`
}

const feedSelect = `
	SELECT p.id AS post_id,
	       p.creator_id AS creator_id,
	       COALESCE(NULLIF(u.display_name, ''), u.username) AS creator_name,
	       COALESCE(u.avatar_url, '') AS creator_avatar,
	       p.title AS title,
	       CASE WHEN p.visibility = 'supporters' THEN '' ELSE left(p.body, 200) END AS excerpt,
	       COALESCE(p.media_url, '') AS media_url,
	       p.visibility AS visibility,
	       p.likes_count AS likes_count,
	       p.comments_count AS comments_count,
	       p.published_at AS published_at
	FROM posts p
	JOIN users u ON u.id = p.creator_id
	WHERE p.state = 'published'`

func feedItems(rows []feedRow) []feed.Item {
	result := make([]feed.Item, 0, len(rows))
	for _, r := range rows {
		result = append(result, feed.Item{
			PostID:        r.PostID,
			CreatorID:     r.CreatorID,
			CreatorName:   r.CreatorName,
			CreatorAvatar: r.CreatorAvatar,
			Title:         r.Title,
			Excerpt:       r.Excerpt,
			MediaURL:      r.MediaURL,
			Visibility:    r.Visibility,
			LikesCount:    r.LikesCount,
			CommentsCount: r.CommentsCount,
			PublishedAt:   r.PublishedAt.UTC(),
		})
	}
	return result
}

func (s *Store) DiscoverFeed(ctx context.Context, page storage.Page) ([]feed.Item, error) {
	limit, offset := normalizePage(page)
	var rows []feedRow
	err := s.db.SelectContext(ctx, &rows, feedSelect+`
		ORDER BY p.published_at DESC, p.id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return feedItems(rows), nil
}

func (s *Store) FollowingFeed(ctx context.Context, followerID string, page storage.Page) ([]feed.Item, error) {
	limit, offset := normalizePage(page)
	var rows []feedRow
	err := s.db.SelectContext(ctx, &rows, feedSelect+`
		  AND p.creator_id IN (SELECT creator_id FROM follows WHERE follower_id = $1)
		ORDER BY p.published_at DESC, p.id DESC
		LIMIT $2 OFFSET $3
	`, followerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return feedItems(rows), nil
}

func (s *Store) SearchPosts(ctx context.Context, query string, page storage.Page) ([]feed.Item, error) {
	limit, offset := normalizePage(page)
	var rows []feedRow
	err := s.db.SelectContext(ctx, &rows, feedSelect+`
		  AND p.title ILIKE '%' || $1 || '%'
		ORDER BY p.published_at DESC, p.id DESC
		LIMIT $2 OFFSET $3
	`, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return feedItems(rows), nil
}

type creatorRow struct {
	UserID         string `db:"user_id"`
	Username       string `db:"username"`
	DisplayName    string `db:"display_name"`
	AvatarURL      string `db:"avatar_url"`
	Category       string `db:"category"`
	Bio            string `db:"bio"`
	FollowersCount int64  `db:"followers_count"`
	PostsCount     int64  `db:"posts_count"`
}

const creatorSelect = `
	SELECT cp.user_id AS user_id,
	       u.username AS username,
	       COALESCE(NULLIF(u.display_name, ''), u.username) AS display_name,
	       COALESCE(u.avatar_url, '') AS avatar_url,
	       cp.category AS category,
	       cp.bio AS bio,
	       cp.followers_count AS followers_count,
	       cp.posts_count AS posts_count
	FROM creator_profiles cp
	JOIN users u ON u.id = cp.user_id`

func creatorResults(rows []creatorRow) []feed.CreatorResult {
	result := make([]feed.CreatorResult, 0, len(rows))
	for _, r := range rows {
		result = append(result, feed.CreatorResult{
			UserID:         r.UserID,
			Username:       r.Username,
			DisplayName:    r.DisplayName,
			AvatarURL:      r.AvatarURL,
			Category:       r.Category,
			Bio:            r.Bio,
			FollowersCount: r.FollowersCount,
			PostsCount:     r.PostsCount,
		})
	}
	return result
}

func (s *Store) SearchCreators(ctx context.Context, query string, page storage.Page) ([]feed.CreatorResult, error) {
	limit, offset := normalizePage(page)
	var rows []creatorRow
	err := s.db.SelectContext(ctx, &rows, creatorSelect+`
		WHERE u.username ILIKE '%' || $1 || '%'
		   OR u.display_name ILIKE '%' || $1 || '%'
		   OR cp.bio ILIKE '%' || $1 || '%'
		ORDER BY cp.followers_count DESC, cp.user_id
		LIMIT $2 OFFSET $3
	`, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return creatorResults(rows), nil
}

func (s *Store) TrendingCreators(ctx context.Context, limit int) ([]feed.CreatorResult, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []creatorRow
	err := s.db.SelectContext(ctx, &rows, creatorSelect+`
		ORDER BY cp.followers_count DESC, cp.user_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return creatorResults(rows), nil
}
