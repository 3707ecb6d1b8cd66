// Package realtime pushes publish announcements to the hosted realtime
// channel that web clients subscribe to.
package realtime

import (
	"context"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/post"
	"github.com/miyannishar/creators-nepal-v2/internal/supabase"
	"github.com/miyannishar/creators-nepal-v2/internal/system"
	"github.com/miyannishar/creators-nepal-v2/pkg/logger"
)

// FeedTopic is the shared channel clients join for live feed updates.
const FeedTopic = "realtime:feed"

// CreatorTopic is the per-creator channel a creator's followers join.
func CreatorTopic(creatorID string) string {
	return "creators:" + creatorID
}

var _ system.Service = (*Announcer)(nil)

// Announcer broadcasts publish events on the shared feed topic and on the
// publishing creator's own topic. It is lifecycle-managed so the websocket
// connects at startup and closes on shutdown.
type Announcer struct {
	client *supabase.RealtimeClient
	log    *logger.Logger
}

// NewAnnouncer creates an announcer on the given realtime client.
func NewAnnouncer(client *supabase.RealtimeClient, log *logger.Logger) *Announcer {
	if log == nil {
		log = logger.NewDefault("realtime")
	}
	return &Announcer{client: client, log: log}
}

func (a *Announcer) Name() string { return "realtime-announcer" }

func (a *Announcer) Start(ctx context.Context) error {
	if err := a.client.Connect(ctx); err != nil {
		return err
	}
	if err := a.client.Channel(FeedTopic).Subscribe(ctx); err != nil {
		return err
	}
	a.log.Info("realtime announcer connected")
	return nil
}

func (a *Announcer) Stop(ctx context.Context) error {
	return a.client.Disconnect()
}

// AnnouncePublish broadcasts a post_published event with the post's public
// fields, once on the shared feed topic and once on the creator's own
// topic. Gated bodies are never included. Creator channels are joined
// lazily on the first publish.
func (a *Announcer) AnnouncePublish(ctx context.Context, p post.Post) error {
	payload := map[string]any{
		"post_id":      p.ID,
		"creator_id":   p.CreatorID,
		"title":        p.Title,
		"visibility":   string(p.Visibility),
		"published_at": p.PublishedAt,
	}

	if err := a.client.Channel(FeedTopic).Broadcast(ctx, "post_published", payload); err != nil {
		return err
	}

	creatorCh := a.client.Channel(CreatorTopic(p.CreatorID))
	if err := creatorCh.Subscribe(ctx); err != nil {
		return err
	}
	return creatorCh.Broadcast(ctx, "post_published", payload)
}
