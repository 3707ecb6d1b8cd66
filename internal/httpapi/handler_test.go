package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/miyannishar/creators-nepal-v2/internal/app"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/post"
	supportdom "github.com/miyannishar/creators-nepal-v2/internal/domain/support"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/validation"
	"github.com/miyannishar/creators-nepal-v2/internal/middleware"
	engagementsvc "github.com/miyannishar/creators-nepal-v2/internal/services/engagement"
	postssvc "github.com/miyannishar/creators-nepal-v2/internal/services/posts"
	"github.com/miyannishar/creators-nepal-v2/internal/supabase"
	"github.com/miyannishar/creators-nepal-v2/pkg/logger"
)

func newTestApp(t *testing.T) *app.Application {
	t.Helper()
	application, err := app.New(app.Stores{}, app.Options{}, logger.NewNop())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	return application
}

func registerUser(t *testing.T, application *app.Application, id, username string) {
	t.Helper()
	if _, err := application.Users.Register(context.Background(), id, username+"@example.com", username, ""); err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
}

func marshal(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewReader(data)
}

// userRequest simulates a request that passed the auth middleware.
func userRequest(userID, method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	return req
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), dst); err != nil {
		t.Fatalf("unmarshal response %s: %v", resp.Body.String(), err)
	}
}

func TestHandlerCreatorLifecycle(t *testing.T) {
	application := newTestApp(t)
	handler := NewHandler(application, nil)
	registerUser(t, application, "alice", "alice")

	// Provision a creator profile.
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("alice", http.MethodPost, "/v1/creators", marshal(t, map[string]any{
		"bio":              "painter from Pokhara",
		"category":         "art",
		"support_tier_npr": 200,
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("provision creator: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	// Provisioning twice conflicts.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("alice", http.MethodPost, "/v1/creators", marshal(t, map[string]any{})))
	if resp.Code != http.StatusConflict {
		t.Fatalf("double provision: expected 409, got %d", resp.Code)
	}

	// Draft and publish a post.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("alice", http.MethodPost, "/v1/posts", marshal(t, map[string]any{
		"title": "First painting",
		"body":  "process notes",
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("create post: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created map[string]any
	decode(t, resp, &created)
	postID := created["id"].(string)

	// Drafts are hidden from other viewers.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("bob", http.MethodGet, "/v1/posts/"+postID, nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("draft read by stranger: expected 404, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("alice", http.MethodPost, "/v1/posts/"+postID+"/publish", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("publish: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	// Publishing twice conflicts.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("alice", http.MethodPost, "/v1/posts/"+postID+"/publish", nil))
	if resp.Code != http.StatusConflict {
		t.Fatalf("double publish: expected 409, got %d", resp.Code)
	}

	// The published post shows up in discovery.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("", http.MethodGet, "/v1/feed/discover", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("discover: expected 200, got %d", resp.Code)
	}
	var items []map[string]any
	decode(t, resp, &items)
	if len(items) != 1 || items[0]["title"] != "First painting" {
		t.Fatalf("discover items = %v", items)
	}

	// Follow, like, and comment as another user.
	registerUser(t, application, "bob", "bob")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("bob", http.MethodPost, "/v1/creators/alice/follow", nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("follow: expected 204, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("bob", http.MethodPost, "/v1/posts/"+postID+"/like", nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("like: expected 204, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("bob", http.MethodPost, "/v1/posts/"+postID+"/comments", marshal(t, map[string]any{
		"body": "beautiful colours",
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("comment: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	// The follower's feed carries the post.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("bob", http.MethodGet, "/v1/feed/following", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("following feed: expected 200, got %d", resp.Code)
	}
	decode(t, resp, &items)
	if len(items) != 1 {
		t.Fatalf("following feed items = %v", items)
	}

	// Search finds both the post and the creator.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("", http.MethodGet, "/v1/search?q=painting", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", resp.Code)
	}
}

func TestHandlerGatedContent(t *testing.T) {
	application := newTestApp(t)
	handler := NewHandler(application, nil)
	registerUser(t, application, "alice", "alice")
	registerUser(t, application, "bob", "bob")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("alice", http.MethodPost, "/v1/creators", marshal(t, map[string]any{
		"support_tier_npr": 100,
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("provision: expected 201, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("alice", http.MethodPost, "/v1/posts", marshal(t, map[string]any{
		"title":      "Members only",
		"body":       "the secret technique",
		"visibility": "supporters",
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("create post: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created map[string]any
	decode(t, resp, &created)
	postID := created["id"].(string)

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("alice", http.MethodPost, "/v1/posts/"+postID+"/publish", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("publish: expected 200, got %d", resp.Code)
	}

	// A non-supporter sees the post with a blank body.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("bob", http.MethodGet, "/v1/posts/"+postID, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("gated read: expected 200, got %d", resp.Code)
	}
	var gated map[string]any
	decode(t, resp, &gated)
	if gated["body"] != "" {
		t.Fatalf("gated body leaked: %v", gated["body"])
	}

	// Subscribing unlocks the body.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("bob", http.MethodPost, "/v1/support/subscriptions", marshal(t, map[string]any{
		"creator_id": "alice",
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("subscribe: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("bob", http.MethodGet, "/v1/posts/"+postID, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("supporter read: expected 200, got %d", resp.Code)
	}
	decode(t, resp, &gated)
	if gated["body"] != "the secret technique" {
		t.Fatalf("supporter body = %v", gated["body"])
	}

	// A second active subscription conflicts.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("bob", http.MethodPost, "/v1/support/subscriptions", marshal(t, map[string]any{
		"creator_id": "alice",
	})))
	if resp.Code != http.StatusConflict {
		t.Fatalf("duplicate subscribe: expected 409, got %d", resp.Code)
	}
}

func TestHandlerSupportSettlement(t *testing.T) {
	application := newTestApp(t)
	handler := NewHandler(application, nil)
	registerUser(t, application, "alice", "alice")
	registerUser(t, application, "bob", "bob")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("alice", http.MethodPost, "/v1/creators", marshal(t, map[string]any{})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("provision: expected 201, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("bob", http.MethodPost, "/v1/support/transactions", marshal(t, map[string]any{
		"creator_id": "alice",
		"amount_npr": 500,
		"message":    "keep painting",
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("record transaction: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var tx map[string]any
	decode(t, resp, &tx)
	txID := tx["id"].(string)

	// A stranger may not read or settle the transaction.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("mallory", http.MethodGet, "/v1/support/transactions/"+txID, nil))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("stranger read: expected 403, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("bob", http.MethodPost, "/v1/support/transactions/"+txID+"/complete", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	// Completing twice conflicts.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("bob", http.MethodPost, "/v1/support/transactions/"+txID+"/complete", nil))
	if resp.Code != http.StatusConflict {
		t.Fatalf("double complete: expected 409, got %d", resp.Code)
	}

	// The creator sees their earnings.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("alice", http.MethodGet, "/v1/creators/alice/earnings", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("earnings: expected 200, got %d", resp.Code)
	}
	var summary map[string]any
	decode(t, resp, &summary)
	if summary["total_npr"].(float64) != 500 {
		t.Fatalf("total_npr = %v, want 500", summary["total_npr"])
	}

	// Earnings are private.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("bob", http.MethodGet, "/v1/creators/alice/earnings", nil))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("earnings by stranger: expected 403, got %d", resp.Code)
	}
}

func TestHandlerAuthRequired(t *testing.T) {
	application := newTestApp(t)
	handler := NewHandler(application, nil)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/v1/creators"},
		{http.MethodPost, "/v1/posts"},
		{http.MethodPost, "/v1/support/transactions"},
		{http.MethodGet, "/v1/feed/following"},
		{http.MethodPatch, "/v1/users/me"},
	} {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, userRequest("", tc.method, tc.path, bytes.NewReader([]byte("{}"))))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", tc.method, tc.path, resp.Code)
		}
	}
}

func TestHandlerValidation(t *testing.T) {
	application := newTestApp(t)
	handler := NewHandler(application, nil)
	registerUser(t, application, "alice", "alice")

	// Unknown fields are rejected.
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("alice", http.MethodPost, "/v1/posts", marshal(t, map[string]any{
		"title":   "ok",
		"unknown": true,
	})))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: expected 400, got %d", resp.Code)
	}

	// A missing title fails validation.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("alice", http.MethodPost, "/v1/posts", marshal(t, map[string]any{
		"body": "no title",
	})))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("missing title: expected 400, got %d", resp.Code)
	}

	// Visibility must be one of the known values.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("alice", http.MethodPost, "/v1/posts", marshal(t, map[string]any{
		"title":      "ok",
		"visibility": "everyone",
	})))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("bad visibility: expected 400, got %d", resp.Code)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", sql.ErrNoRows, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load post: %w", sql.ErrNoRows), http.StatusNotFound},
		{"not owner", postssvc.ErrNotOwner, http.StatusForbidden},
		{"already published", post.ErrAlreadyPublished, http.StatusConflict},
		{"interaction on draft", engagementsvc.ErrNotPublished, http.StatusConflict},
		{"bad input", validation.New("title cannot be empty"), http.StatusBadRequest},
		{"wrapped bad input", fmt.Errorf("post validation failed: %w", validation.New("title cannot be empty")), http.StatusBadRequest},
		{"self support", supportdom.ErrSelfSupport, http.StatusBadRequest},
		{"self follow", engagementsvc.ErrSelfFollow, http.StatusBadRequest},
		{"store failure", errors.New("dial tcp: connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := errorStatus(tc.err); got != tc.want {
				t.Fatalf("errorStatus(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func multipartUpload(t *testing.T, filename, contentType string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandlerProfileUploads(t *testing.T) {
	bucketServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer bucketServer.Close()

	client, err := supabase.New(supabase.Config{URL: bucketServer.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("supabase client: %v", err)
	}
	application, err := app.New(app.Stores{}, app.Options{
		MediaStorage: client.Storage(),
		MediaBucket:  "profile-media",
	}, logger.NewNop())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	handler := NewHandler(application, nil)
	registerUser(t, application, "alice", "alice")

	// Upload an avatar and check it lands on the profile.
	body, contentType := multipartUpload(t, "me.png", "image/png", []byte("pngdata"))
	req := userRequest("alice", http.MethodPost, "/v1/users/me/avatar", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("avatar upload: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var updated map[string]any
	decode(t, resp, &updated)
	avatarURL, _ := updated["avatar_url"].(string)
	if !strings.Contains(avatarURL, "/profile-media/avatars/alice/") {
		t.Fatalf("avatar_url = %q, want an avatars/alice object", avatarURL)
	}

	// Cover uploads need a creator profile and the owner's token.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, userRequest("alice", http.MethodPost, "/v1/creators", marshal(t, map[string]any{
		"category": "art",
	})))
	if resp.Code != http.StatusCreated {
		t.Fatalf("provision creator: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	body, contentType = multipartUpload(t, "cover.jpg", "image/jpeg", []byte("jpegdata"))
	req = userRequest("bob", http.MethodPost, "/v1/creators/alice/cover", body)
	req.Header.Set("Content-Type", contentType)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("cover upload by stranger: expected 403, got %d", resp.Code)
	}

	body, contentType = multipartUpload(t, "cover.jpg", "image/jpeg", []byte("jpegdata"))
	req = userRequest("alice", http.MethodPost, "/v1/creators/alice/cover", body)
	req.Header.Set("Content-Type", contentType)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("cover upload: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var profile map[string]any
	decode(t, resp, &profile)
	coverURL, _ := profile["cover_url"].(string)
	if !strings.Contains(coverURL, "/profile-media/covers/alice/") {
		t.Fatalf("cover_url = %q, want a covers/alice object", coverURL)
	}

	// Uploads with a disallowed content type are rejected, not stored.
	body, contentType = multipartUpload(t, "evil.bin", "application/octet-stream", []byte("binary"))
	req = userRequest("alice", http.MethodPost, "/v1/users/me/avatar", body)
	req.Header.Set("Content-Type", contentType)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("bad content type: expected 400, got %d: %s", resp.Code, resp.Body.String())
	}
}
