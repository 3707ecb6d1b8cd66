package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/miyannishar/creators-nepal-v2/internal/supabase"
	"github.com/miyannishar/creators-nepal-v2/pkg/logger"
)

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := supabase.New(supabase.Config{URL: server.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("supabase client: %v", err)
	}
	return New(client.Storage(), "post-media", logger.NewNop()), server
}

func TestService_UploadPostMedia(t *testing.T) {
	var uploadedPath, uploadedType string
	svc, server := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s", r.Method)
		}
		uploadedPath = strings.TrimPrefix(r.URL.Path, "/storage/v1/object/post-media/")
		uploadedType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	})

	url, err := svc.UploadPostMedia(context.Background(), "post-1", "My Photo.JPG", []byte("jpegdata"), "image/jpeg")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if !strings.HasPrefix(uploadedPath, "posts/post-1/") {
		t.Fatalf("object path = %q, want posts/post-1/ prefix", uploadedPath)
	}
	if strings.Contains(uploadedPath, " ") {
		t.Fatalf("object path not sanitized: %q", uploadedPath)
	}
	if uploadedType != "image/jpeg" {
		t.Fatalf("content type = %q", uploadedType)
	}
	wantPrefix := server.URL + "/storage/v1/object/public/post-media/posts/post-1/"
	if !strings.HasPrefix(url, wantPrefix) {
		t.Fatalf("public URL = %q, want prefix %q", url, wantPrefix)
	}
}

func TestService_UploadRejectsBadPayloads(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for rejected payloads")
	})

	if _, err := svc.UploadPostMedia(context.Background(), "p", "x.bin", []byte("data"), "application/octet-stream"); err == nil {
		t.Fatal("expected error for disallowed content type")
	}
	if _, err := svc.UploadPostMedia(context.Background(), "p", "x.jpg", nil, "image/jpeg"); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if _, err := svc.UploadPostMedia(context.Background(), "p", "x.jpg", make([]byte, maxUploadBytes+1), "image/jpeg"); err == nil {
		t.Fatal("expected error for oversized payload")
	}
}

func TestService_UploadSurfacesBucketErrors(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"bucket policy violation"}`))
	})

	if _, err := svc.UploadAvatar(context.Background(), "u1", "me.png", []byte("png"), "image/png"); err == nil {
		t.Fatal("expected error from bucket response")
	}
}
