// Package httpapi exposes the platform's REST surface. Routing follows the
// request path by hand so the dependency surface stays small; handlers
// translate service errors into HTTP statuses in one place.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/miyannishar/creators-nepal-v2/internal/app"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/post"
	supportdom "github.com/miyannishar/creators-nepal-v2/internal/domain/support"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/user"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/validation"
	"github.com/miyannishar/creators-nepal-v2/internal/metrics"
	"github.com/miyannishar/creators-nepal-v2/internal/middleware"
	creatorssvc "github.com/miyannishar/creators-nepal-v2/internal/services/creators"
	engagementsvc "github.com/miyannishar/creators-nepal-v2/internal/services/engagement"
	postssvc "github.com/miyannishar/creators-nepal-v2/internal/services/posts"
	seriessvc "github.com/miyannishar/creators-nepal-v2/internal/services/series"
	supportsvc "github.com/miyannishar/creators-nepal-v2/internal/services/support"
	"github.com/miyannishar/creators-nepal-v2/internal/storage"
)

const maxMediaUploadBytes = 10 << 20

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app      *app.Application
	validate *validator.Validate
}

// NewHandler returns a mux exposing the REST API. metrics may be nil.
func NewHandler(application *app.Application, m *metrics.Metrics) http.Handler {
	h := &handler{
		app:      application,
		validate: validator.New(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.health)
	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}

	mux.HandleFunc("/v1/auth/", h.auth)
	mux.HandleFunc("/v1/users", h.users)
	mux.HandleFunc("/v1/users/", h.userResources)
	mux.HandleFunc("/v1/creators", h.creators)
	mux.HandleFunc("/v1/creators/", h.creatorResources)
	mux.HandleFunc("/v1/series", h.series)
	mux.HandleFunc("/v1/series/", h.seriesResources)
	mux.HandleFunc("/v1/posts", h.posts)
	mux.HandleFunc("/v1/posts/", h.postResources)
	mux.HandleFunc("/v1/comments/", h.commentResources)
	mux.HandleFunc("/v1/support/transactions", h.transactions)
	mux.HandleFunc("/v1/support/transactions/", h.transactionResources)
	mux.HandleFunc("/v1/support/subscriptions", h.subscriptions)
	mux.HandleFunc("/v1/support/subscriptions/", h.subscriptionResources)
	mux.HandleFunc("/v1/support/received", h.supportReceived)
	mux.HandleFunc("/v1/support/sent", h.supportSent)
	mux.HandleFunc("/v1/feed/discover", h.feedDiscover)
	mux.HandleFunc("/v1/feed/following", h.feedFollowing)
	mux.HandleFunc("/v1/feed/trending", h.feedTrending)
	mux.HandleFunc("/v1/search", h.search)
	return mux
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Auth --------------------------------------------------------------------

type signUpRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	Username    string `json:"username" validate:"required,min=3,max=32"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *handler) auth(w http.ResponseWriter, r *http.Request) {
	if h.app.Auth == nil {
		writeError(w, http.StatusNotImplemented, fmt.Errorf("auth provider not configured"))
		return
	}

	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/auth"), "/")
	switch action {
	case "signup":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload signUpRequest
		if err := h.decodeValid(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		session, err := h.app.Auth.SignUp(r.Context(), payload.Email, payload.Password, payload.Username, payload.DisplayName)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, session)

	case "signin":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload signInRequest
		if err := h.decodeValid(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		session, err := h.app.Auth.SignIn(r.Context(), payload.Email, payload.Password)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		writeJSON(w, http.StatusOK, session)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// Users -------------------------------------------------------------------

func (h *handler) users(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	users, err := h.app.Users.List(r.Context(), parsePage(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type updateUserRequest struct {
	Username    *string `json:"username" validate:"omitempty,min=3,max=32"`
	DisplayName *string `json:"display_name" validate:"omitempty,max=100"`
	AvatarURL   *string `json:"avatar_url" validate:"omitempty,url"`
}

func (h *handler) userResources(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users"), "/")
	if name == "me/avatar" {
		h.userAvatar(w, r)
		return
	}
	if name == "" || strings.Contains(name, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if name == "me" {
		callerID, ok := h.requireUser(w, r)
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			u, err := h.app.Users.Get(r.Context(), callerID)
			if err != nil {
				writeError(w, errorStatus(err), err)
				return
			}
			writeJSON(w, http.StatusOK, u)
		case http.MethodPatch:
			var payload updateUserRequest
			if err := h.decodeValid(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			u, err := h.app.Users.UpdateProfile(r.Context(), callerID, payload.Username, payload.DisplayName, payload.AvatarURL)
			if err != nil {
				writeError(w, errorStatus(err), err)
				return
			}
			writeJSON(w, http.StatusOK, u)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	u, err := h.app.Users.GetByUsername(r.Context(), name)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// userAvatar handles POST /v1/users/me/avatar. The stored URL becomes the
// caller's avatar.
func (h *handler) userAvatar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if h.app.Media == nil {
		writeError(w, http.StatusNotImplemented, fmt.Errorf("media uploads not configured"))
		return
	}

	filename, data, contentType, ok := readUpload(w, r)
	if !ok {
		return
	}
	url, err := h.app.Media.UploadAvatar(r.Context(), callerID, filename, data, contentType)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	u, err := h.app.Users.UpdateProfile(r.Context(), callerID, nil, nil, &url)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Creators ----------------------------------------------------------------

type provisionCreatorRequest struct {
	Bio            string `json:"bio" validate:"max=500"`
	Category       string `json:"category" validate:"max=50"`
	SupportTierNPR int64  `json:"support_tier_npr" validate:"gte=0"`
}

type updateCreatorRequest struct {
	Bio            *string `json:"bio" validate:"omitempty,max=500"`
	Category       *string `json:"category" validate:"omitempty,max=50"`
	CoverURL       *string `json:"cover_url" validate:"omitempty,url"`
	SupportTierNPR *int64  `json:"support_tier_npr" validate:"omitempty,gte=0"`
}

func (h *handler) creators(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		callerID, ok := h.requireUser(w, r)
		if !ok {
			return
		}
		var payload provisionCreatorRequest
		if err := h.decodeValid(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		profile, err := h.app.Creators.Provision(r.Context(), callerID, payload.Bio, payload.Category, payload.SupportTierNPR)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, profile)

	case http.MethodGet:
		profiles, err := h.app.Creators.List(r.Context(), r.URL.Query().Get("category"), parsePage(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, profiles)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) creatorResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/creators"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	creatorID := parts[0]
	if creatorID == "me" {
		callerID, ok := h.requireUser(w, r)
		if !ok {
			return
		}
		creatorID = callerID
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			profile, err := h.app.Creators.Get(r.Context(), creatorID)
			if err != nil {
				writeError(w, errorStatus(err), err)
				return
			}
			writeJSON(w, http.StatusOK, profile)
		case http.MethodPatch:
			callerID, ok := h.requireUser(w, r)
			if !ok {
				return
			}
			if callerID != creatorID {
				writeError(w, http.StatusForbidden, fmt.Errorf("cannot edit another creator's profile"))
				return
			}
			var payload updateCreatorRequest
			if err := h.decodeValid(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			profile, err := h.app.Creators.UpdateProfile(r.Context(), creatorID, payload.Bio, payload.Category, payload.CoverURL, payload.SupportTierNPR)
			if err != nil {
				writeError(w, errorStatus(err), err)
				return
			}
			writeJSON(w, http.StatusOK, profile)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	switch parts[1] {
	case "follow":
		h.creatorFollow(w, r, creatorID)
	case "posts":
		h.creatorPosts(w, r, creatorID)
	case "series":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		list, err := h.app.Series.ListByCreator(r.Context(), creatorID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case "earnings":
		h.creatorEarnings(w, r, creatorID)
	case "cover":
		h.creatorCover(w, r, creatorID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// creatorCover handles POST /v1/creators/{id}/cover. The stored URL becomes
// the creator's cover image.
func (h *handler) creatorCover(w http.ResponseWriter, r *http.Request, creatorID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if callerID != creatorID {
		writeError(w, http.StatusForbidden, fmt.Errorf("cannot edit another creator's profile"))
		return
	}
	if h.app.Media == nil {
		writeError(w, http.StatusNotImplemented, fmt.Errorf("media uploads not configured"))
		return
	}

	filename, data, contentType, ok := readUpload(w, r)
	if !ok {
		return
	}
	url, err := h.app.Media.UploadCover(r.Context(), creatorID, filename, data, contentType)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	profile, err := h.app.Creators.UpdateProfile(r.Context(), creatorID, nil, nil, &url, nil)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *handler) creatorFollow(w http.ResponseWriter, r *http.Request, creatorID string) {
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPost:
		if err := h.app.Engagement.Follow(r.Context(), callerID, creatorID); err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := h.app.Engagement.Unfollow(r.Context(), callerID, creatorID); err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		following, err := h.app.Engagement.IsFollowing(r.Context(), callerID, creatorID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"following": following})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) creatorPosts(w http.ResponseWriter, r *http.Request, creatorID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	viewerID := middleware.GetUserID(r.Context())
	state := post.State(r.URL.Query().Get("state"))
	posts, err := h.app.Posts.ListByCreator(r.Context(), viewerID, creatorID, state, parsePage(r))
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *handler) creatorEarnings(w http.ResponseWriter, r *http.Request, creatorID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if callerID != creatorID {
		writeError(w, http.StatusForbidden, fmt.Errorf("earnings are private to the creator"))
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid since: %w", err))
			return
		}
		since = parsed
	}
	summary, err := h.app.Creators.EarningsSummary(r.Context(), creatorID, since)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Series ------------------------------------------------------------------

type createSeriesRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=1000"`
	CoverURL    string `json:"cover_url" validate:"omitempty,url"`
}

type updateSeriesRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	CoverURL    *string `json:"cover_url" validate:"omitempty,url"`
}

func (h *handler) series(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var payload createSeriesRequest
	if err := h.decodeValid(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := h.app.Series.Create(r.Context(), callerID, payload.Title, payload.Description, payload.CoverURL)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) seriesResources(w http.ResponseWriter, r *http.Request) {
	seriesID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/series"), "/")
	if seriesID == "" || strings.Contains(seriesID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		sr, err := h.app.Series.Get(r.Context(), seriesID)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, sr)

	case http.MethodPatch:
		callerID, ok := h.requireUser(w, r)
		if !ok {
			return
		}
		var payload updateSeriesRequest
		if err := h.decodeValid(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sr, err := h.app.Series.Update(r.Context(), callerID, seriesID, payload.Title, payload.Description, payload.CoverURL)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, sr)

	case http.MethodDelete:
		callerID, ok := h.requireUser(w, r)
		if !ok {
			return
		}
		if err := h.app.Series.Delete(r.Context(), callerID, seriesID); err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Posts -------------------------------------------------------------------

type createPostRequest struct {
	Title      string `json:"title" validate:"required,max=200"`
	Body       string `json:"body"`
	SeriesID   string `json:"series_id"`
	Visibility string `json:"visibility" validate:"omitempty,oneof=public supporters"`
}

type updatePostRequest struct {
	Title      *string `json:"title" validate:"omitempty,max=200"`
	Body       *string `json:"body"`
	SeriesID   *string `json:"series_id"`
	Visibility *string `json:"visibility" validate:"omitempty,oneof=public supporters"`
}

type createCommentRequest struct {
	Body string `json:"body" validate:"required,max=2000"`
}

func (h *handler) posts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var payload createPostRequest
	if err := h.decodeValid(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := h.app.Posts.Create(r.Context(), callerID, payload.SeriesID, payload.Title, payload.Body, post.Visibility(payload.Visibility))
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) postResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/posts"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	postID := parts[0]

	if len(parts) == 1 {
		h.postByID(w, r, postID)
		return
	}

	switch parts[1] {
	case "publish":
		h.postTransition(w, r, postID, h.app.Posts.Publish)
	case "archive":
		h.postTransition(w, r, postID, h.app.Posts.Archive)
	case "media":
		h.postMedia(w, r, postID)
	case "like":
		h.postLike(w, r, postID)
	case "comments":
		h.postComments(w, r, postID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) postByID(w http.ResponseWriter, r *http.Request, postID string) {
	switch r.Method {
	case http.MethodGet:
		viewerID := middleware.GetUserID(r.Context())
		p, err := h.app.Posts.GetForViewer(r.Context(), viewerID, postID)
		if err != nil {
			// Unpublished posts are invisible to everyone but their owner.
			if errors.Is(err, postssvc.ErrNotOwner) {
				writeError(w, http.StatusNotFound, sql.ErrNoRows)
				return
			}
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, p)

	case http.MethodPatch:
		callerID, ok := h.requireUser(w, r)
		if !ok {
			return
		}
		var payload updatePostRequest
		if err := h.decodeValid(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var visibility *post.Visibility
		if payload.Visibility != nil {
			v := post.Visibility(*payload.Visibility)
			visibility = &v
		}
		p, err := h.app.Posts.Update(r.Context(), callerID, postID, payload.SeriesID, payload.Title, payload.Body, visibility)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, p)

	case http.MethodDelete:
		callerID, ok := h.requireUser(w, r)
		if !ok {
			return
		}
		if err := h.app.Posts.Delete(r.Context(), callerID, postID); err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) postTransition(w http.ResponseWriter, r *http.Request, postID string, transition func(ctx context.Context, callerID, postID string) (post.Post, error)) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	p, err := transition(r.Context(), callerID, postID)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) postMedia(w http.ResponseWriter, r *http.Request, postID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if h.app.Media == nil {
		writeError(w, http.StatusNotImplemented, fmt.Errorf("media uploads not configured"))
		return
	}

	filename, data, contentType, ok := readUpload(w, r)
	if !ok {
		return
	}
	p, err := h.app.Posts.AttachMedia(r.Context(), callerID, postID, filename, data, contentType)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// readUpload extracts the multipart "file" field from an upload request,
// writing the error response itself when the form is unusable.
func readUpload(w http.ResponseWriter, r *http.Request) (filename string, data []byte, contentType string, ok bool) {
	if err := r.ParseMultipartForm(maxMediaUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return "", nil, "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("file field is required"))
		return "", nil, "", false
	}
	defer file.Close()

	data, err = io.ReadAll(io.LimitReader(file, maxMediaUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return "", nil, "", false
	}
	return header.Filename, data, header.Header.Get("Content-Type"), true
}

func (h *handler) postLike(w http.ResponseWriter, r *http.Request, postID string) {
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPost:
		if err := h.app.Engagement.Like(r.Context(), callerID, postID); err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := h.app.Engagement.Unlike(r.Context(), callerID, postID); err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		liked, err := h.app.Engagement.HasLiked(r.Context(), callerID, postID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) postComments(w http.ResponseWriter, r *http.Request, postID string) {
	switch r.Method {
	case http.MethodGet:
		comments, err := h.app.Engagement.ListComments(r.Context(), postID, parsePage(r))
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, comments)

	case http.MethodPost:
		callerID, ok := h.requireUser(w, r)
		if !ok {
			return
		}
		var payload createCommentRequest
		if err := h.decodeValid(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		comment, err := h.app.Engagement.Comment(r.Context(), callerID, postID, payload.Body)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, comment)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) commentResources(w http.ResponseWriter, r *http.Request) {
	commentID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/comments"), "/")
	if commentID == "" || strings.Contains(commentID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := h.app.Engagement.DeleteComment(r.Context(), callerID, commentID); err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Support -----------------------------------------------------------------

type createTransactionRequest struct {
	CreatorID string `json:"creator_id" validate:"required"`
	AmountNPR int64  `json:"amount_npr" validate:"required,gt=0"`
	Message   string `json:"message" validate:"max=500"`
}

type createSubscriptionRequest struct {
	CreatorID string `json:"creator_id" validate:"required"`
	TierNPR   int64  `json:"tier_npr" validate:"gte=0"`
}

func (h *handler) transactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var payload createTransactionRequest
	if err := h.decodeValid(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tx, err := h.app.Support.RecordTransaction(r.Context(), callerID, payload.CreatorID, payload.AmountNPR, payload.Message)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *handler) transactionResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/support/transactions"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	transactionID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		tx, err := h.app.Support.GetTransaction(r.Context(), callerID, transactionID)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, tx)
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	// Settlement transitions are restricted to the transaction's parties.
	if _, err := h.app.Support.GetTransaction(r.Context(), callerID, transactionID); err != nil {
		writeError(w, errorStatus(err), err)
		return
	}

	switch parts[1] {
	case "complete":
		tx, err := h.app.Support.Complete(r.Context(), transactionID)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	case "refund":
		tx, err := h.app.Support.Refund(r.Context(), transactionID)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) subscriptions(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPost:
		var payload createSubscriptionRequest
		if err := h.decodeValid(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sub, err := h.app.Support.Subscribe(r.Context(), callerID, payload.CreatorID, payload.TierNPR)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, sub)

	case http.MethodGet:
		subs, err := h.app.Support.ListSubscriptions(r.Context(), callerID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, subs)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) subscriptionResources(w http.ResponseWriter, r *http.Request) {
	subscriptionID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/support/subscriptions"), "/")
	if subscriptionID == "" || strings.Contains(subscriptionID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	sub, err := h.app.Support.Cancel(r.Context(), callerID, subscriptionID)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *handler) supportReceived(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	txs, err := h.app.Support.ListReceived(r.Context(), callerID, parsePage(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *handler) supportSent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	txs, err := h.app.Support.ListSent(r.Context(), callerID, parsePage(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// Feeds -------------------------------------------------------------------

func (h *handler) feedDiscover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items, err := h.app.Feeds.Discover(r.Context(), parsePage(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) feedFollowing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	callerID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	items, err := h.app.Feeds.Following(r.Context(), callerID, parsePage(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) feedTrending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	creators, err := h.app.Feeds.Trending(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, creators)
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	result, err := h.app.Feeds.Search(r.Context(), r.URL.Query().Get("q"), parsePage(r))
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Helpers -----------------------------------------------------------------

func (h *handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return "", false
	}
	return userID, true
}

func (h *handler) decodeValid(body io.ReadCloser, dst interface{}) error {
	if err := decodeJSON(body, dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, postssvc.ErrNotOwner),
		errors.Is(err, seriessvc.ErrNotOwner),
		errors.Is(err, supportsvc.ErrNotOwner),
		errors.Is(err, engagementsvc.ErrNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, user.ErrUsernameTaken),
		errors.Is(err, post.ErrAlreadyPublished),
		errors.Is(err, supportdom.ErrAlreadySubscribed),
		errors.Is(err, supportsvc.ErrInvalidTransition),
		errors.Is(err, engagementsvc.ErrNotPublished),
		errors.Is(err, creatorssvc.ErrAlreadyCreator):
		return http.StatusConflict
	case errors.Is(err, validation.Err),
		errors.Is(err, supportdom.ErrSelfSupport),
		errors.Is(err, engagementsvc.ErrSelfFollow):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func parsePage(r *http.Request) storage.Page {
	var page storage.Page
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			page.Limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			page.Offset = parsed
		}
	}
	return page
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
