package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/post"
	"github.com/miyannishar/creators-nepal-v2/internal/supabase"
	"github.com/miyannishar/creators-nepal-v2/pkg/logger"
)

type wireMessage struct {
	Topic   string         `json:"topic"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

// fakeRealtimeServer accepts one websocket connection and forwards every
// frame it receives.
func fakeRealtimeServer(t *testing.T) (*httptest.Server, <-chan wireMessage) {
	t.Helper()
	messages := make(chan wireMessage, 16)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg wireMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			messages <- msg
		}
	}))
	t.Cleanup(srv.Close)
	return srv, messages
}

func nextMessage(t *testing.T, messages <-chan wireMessage) wireMessage {
	t.Helper()
	select {
	case msg := <-messages:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a realtime frame")
		return wireMessage{}
	}
}

func expectBroadcast(t *testing.T, msg wireMessage, topic, postID string) {
	t.Helper()
	if msg.Topic != topic || msg.Event != "broadcast" {
		t.Fatalf("got %s %q on %q, want broadcast on %q", msg.Event, msg.Payload, msg.Topic, topic)
	}
	if event, _ := msg.Payload["event"].(string); event != "post_published" {
		t.Fatalf("payload event = %q, want post_published", event)
	}
	inner, _ := msg.Payload["payload"].(map[string]any)
	if got, _ := inner["post_id"].(string); got != postID {
		t.Fatalf("post_id = %q, want %q", got, postID)
	}
	if _, present := inner["body"]; present {
		t.Fatal("broadcast payload must not carry the post body")
	}
}

func TestAnnouncerPublishesOnFeedAndCreatorTopics(t *testing.T) {
	srv, messages := fakeRealtimeServer(t)

	client := supabase.NewRealtimeClient(srv.URL, "test-key")
	ann := NewAnnouncer(client, logger.NewNop())

	ctx := context.Background()
	if err := ann.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer ann.Stop(ctx)

	if msg := nextMessage(t, messages); msg.Topic != FeedTopic || msg.Event != "phx_join" {
		t.Fatalf("first frame = %s on %q, want phx_join on %q", msg.Event, msg.Topic, FeedTopic)
	}

	p := post.Post{
		ID:         "p1",
		CreatorID:  "c1",
		Title:      "Hello",
		Body:       "supporters only",
		Visibility: post.VisibilityPublic,
	}
	if err := ann.AnnouncePublish(ctx, p); err != nil {
		t.Fatalf("announce: %v", err)
	}

	expectBroadcast(t, nextMessage(t, messages), FeedTopic, "p1")

	if msg := nextMessage(t, messages); msg.Topic != CreatorTopic("c1") || msg.Event != "phx_join" {
		t.Fatalf("got %s on %q, want phx_join on %q", msg.Event, msg.Topic, CreatorTopic("c1"))
	}
	expectBroadcast(t, nextMessage(t, messages), CreatorTopic("c1"), "p1")

	// A second publish reuses the joined creator channel.
	p.ID = "p2"
	if err := ann.AnnouncePublish(ctx, p); err != nil {
		t.Fatalf("announce again: %v", err)
	}
	expectBroadcast(t, nextMessage(t, messages), FeedTopic, "p2")
	expectBroadcast(t, nextMessage(t, messages), CreatorTopic("c1"), "p2")
}
