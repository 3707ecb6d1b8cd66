package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Header http.Header
	Body   []byte
}

// fakePostgREST records each request and answers with the given body.
func fakePostgREST(t *testing.T, status int, respBody string) (*Client, *recordedRequest) {
	t.Helper()
	last := &recordedRequest{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*last = recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		}
		w.WriteHeader(status)
		w.Write([]byte(respBody))
	}))
	t.Cleanup(server.Close)

	client, err := New(Config{URL: server.URL, APIKey: "anon-key"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return client, last
}

func queryValue(t *testing.T, req *recordedRequest, key string) string {
	t.Helper()
	vals := req.Query[key]
	if len(vals) != 1 {
		t.Fatalf("query %q = %v, want exactly one value", key, vals)
	}
	return vals[0]
}

func TestQueryBuilderSelectEncoding(t *testing.T) {
	client, last := fakePostgREST(t, http.StatusOK, `[]`)

	_, err := client.From("posts").
		Select("id,title").
		Gte("published_at", "2026-01-01").
		Lt("likes_count", 100).
		ILike("title", "*nepal*").
		In("state", []string{"published", "archived"}).
		Is("media_url", "null").
		Order("published_at", false).
		Order("id", true).
		Limit(20).
		Offset(40).
		Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if last.Method != http.MethodGet || last.Path != "/rest/v1/posts" {
		t.Fatalf("request = %s %s, want GET /rest/v1/posts", last.Method, last.Path)
	}
	if got := queryValue(t, last, "select"); got != "id,title" {
		t.Errorf("select = %q", got)
	}
	if got := queryValue(t, last, "published_at"); got != "gte.2026-01-01" {
		t.Errorf("published_at = %q, want gte.2026-01-01", got)
	}
	if got := queryValue(t, last, "likes_count"); got != "lt.100" {
		t.Errorf("likes_count = %q, want lt.100", got)
	}
	if got := queryValue(t, last, "title"); got != "ilike.*nepal*" {
		t.Errorf("title = %q, want ilike.*nepal*", got)
	}
	if got := queryValue(t, last, "state"); got != "in.(published,archived)" {
		t.Errorf("state = %q, want in.(published,archived)", got)
	}
	if got := queryValue(t, last, "media_url"); got != "is.null" {
		t.Errorf("media_url = %q, want is.null", got)
	}
	if got := queryValue(t, last, "order"); got != "published_at.desc,id.asc" {
		t.Errorf("order = %q, want published_at.desc,id.asc", got)
	}
	if got := queryValue(t, last, "limit"); got != "20" {
		t.Errorf("limit = %q, want 20", got)
	}
	if got := queryValue(t, last, "offset"); got != "40" {
		t.Errorf("offset = %q, want 40", got)
	}
	if got := last.Header.Get("apikey"); got != "anon-key" {
		t.Errorf("apikey header = %q", got)
	}
	if got := last.Header.Get("Authorization"); got != "Bearer anon-key" {
		t.Errorf("Authorization header = %q", got)
	}
}

func TestQueryBuilderSingleAndCount(t *testing.T) {
	client, last := fakePostgREST(t, http.StatusOK, `{"id":"u1"}`)

	resp, err := client.From("users").
		Eq("id", "u1").
		Single().
		Count("exact").
		Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if got := last.Header.Get("Accept"); got != "application/vnd.pgrst.object+json" {
		t.Errorf("Accept = %q, want the single-object media type", got)
	}
	if got := last.Header.Get("Prefer"); got != "count=exact" {
		t.Errorf("Prefer = %q, want count=exact", got)
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := resp.JSON(&user); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}
	if user.ID != "u1" {
		t.Errorf("decoded id = %q, want u1", user.ID)
	}
}

func TestQueryBuilderInsert(t *testing.T) {
	client, last := fakePostgREST(t, http.StatusCreated, `[{"id":"p1"}]`)

	_, err := client.From("posts").ExecuteInsert(context.Background(), map[string]any{
		"title": "Hello",
	})
	if err != nil {
		t.Fatalf("ExecuteInsert() error: %v", err)
	}

	if last.Method != http.MethodPost || last.Path != "/rest/v1/posts" {
		t.Fatalf("request = %s %s, want POST /rest/v1/posts", last.Method, last.Path)
	}
	if got := last.Header.Get("Prefer"); got != "return=representation" {
		t.Errorf("Prefer = %q, want return=representation", got)
	}
	var sent map[string]any
	if err := json.Unmarshal(last.Body, &sent); err != nil {
		t.Fatalf("unmarshal sent body: %v", err)
	}
	if sent["title"] != "Hello" {
		t.Errorf("sent title = %v, want Hello", sent["title"])
	}
}

func TestQueryBuilderUpdateCarriesFilters(t *testing.T) {
	client, last := fakePostgREST(t, http.StatusOK, `[{"id":"p1"}]`)

	_, err := client.From("posts").
		Eq("id", "p1").
		Neq("state", "archived").
		ExecuteUpdate(context.Background(), map[string]any{"title": "Renamed"})
	if err != nil {
		t.Fatalf("ExecuteUpdate() error: %v", err)
	}

	if last.Method != http.MethodPatch {
		t.Fatalf("method = %s, want PATCH", last.Method)
	}
	if got := queryValue(t, last, "id"); got != "eq.p1" {
		t.Errorf("id filter = %q, want eq.p1", got)
	}
	if got := queryValue(t, last, "state"); got != "neq.archived" {
		t.Errorf("state filter = %q, want neq.archived", got)
	}
	if got := last.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestClientRPC(t *testing.T) {
	client, last := fakePostgREST(t, http.StatusOK, `42`)

	resp, err := client.RPC(context.Background(), "count_supporters", map[string]any{
		"creator_id": "c1",
	})
	if err != nil {
		t.Fatalf("RPC() error: %v", err)
	}

	if last.Method != http.MethodPost || last.Path != "/rest/v1/rpc/count_supporters" {
		t.Fatalf("request = %s %s, want POST /rest/v1/rpc/count_supporters", last.Method, last.Path)
	}
	var sent map[string]any
	if err := json.Unmarshal(last.Body, &sent); err != nil {
		t.Fatalf("unmarshal sent body: %v", err)
	}
	if sent["creator_id"] != "c1" {
		t.Errorf("sent creator_id = %v, want c1", sent["creator_id"])
	}

	var n int
	if err := resp.JSON(&n); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}
	if n != 42 {
		t.Errorf("result = %d, want 42", n)
	}
}

func TestResponseError(t *testing.T) {
	client, _ := fakePostgREST(t, http.StatusConflict, `{"message":"duplicate key"}`)

	resp, err := client.From("users").Eq("id", "u1").Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if resp.Error() == nil {
		t.Fatal("Error() = nil for a 409 response")
	}
}
