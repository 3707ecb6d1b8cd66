package engagement

import (
	"context"
	"errors"
	"testing"

	"github.com/miyannishar/creators-nepal-v2/internal/domain/creator"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/post"
	"github.com/miyannishar/creators-nepal-v2/internal/domain/user"
	"github.com/miyannishar/creators-nepal-v2/internal/storage"
	"github.com/miyannishar/creators-nepal-v2/internal/storage/memory"
)

func seedCreator(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	if _, err := store.CreateUser(context.Background(), user.User{
		ID:       id,
		Email:    id + "@example.com",
		Username: id,
		Role:     user.RoleCreator,
	}); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	if _, err := store.CreateProfile(context.Background(), creator.Profile{UserID: id}); err != nil {
		t.Fatalf("seed profile %s: %v", id, err)
	}
}

func seedPublishedPost(t *testing.T, store *memory.Store, creatorID string) post.Post {
	t.Helper()
	p, err := store.CreatePost(context.Background(), post.Post{
		CreatorID: creatorID,
		Title:     "Post",
		Body:      "body",
		State:     post.StatePublished,
	})
	if err != nil {
		t.Fatalf("seed post: %v", err)
	}
	return p
}

func TestService_FollowIdempotent(t *testing.T) {
	store := memory.New()
	seedCreator(t, store, "c1")
	svc := New(store, store, store, nil)

	if err := svc.Follow(context.Background(), "fan", "c1"); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if err := svc.Follow(context.Background(), "fan", "c1"); err != nil {
		t.Fatalf("repeat follow must be a no-op: %v", err)
	}

	profile, _ := store.GetProfile(context.Background(), "c1")
	if profile.FollowersCount != 1 {
		t.Fatalf("FollowersCount = %d, want 1", profile.FollowersCount)
	}

	following, err := svc.IsFollowing(context.Background(), "fan", "c1")
	if err != nil || !following {
		t.Fatalf("IsFollowing = %v, %v", following, err)
	}

	if err := svc.Unfollow(context.Background(), "fan", "c1"); err != nil {
		t.Fatalf("unfollow: %v", err)
	}
	if err := svc.Unfollow(context.Background(), "fan", "c1"); err != nil {
		t.Fatalf("repeat unfollow must be a no-op: %v", err)
	}
	profile, _ = store.GetProfile(context.Background(), "c1")
	if profile.FollowersCount != 0 {
		t.Fatalf("FollowersCount = %d after unfollow, want 0", profile.FollowersCount)
	}
}

func TestService_SelfFollowRejected(t *testing.T) {
	store := memory.New()
	seedCreator(t, store, "c1")
	svc := New(store, store, store, nil)

	if err := svc.Follow(context.Background(), "c1", "c1"); !errors.Is(err, ErrSelfFollow) {
		t.Fatalf("expected ErrSelfFollow, got %v", err)
	}
}

func TestService_LikeIdempotent(t *testing.T) {
	store := memory.New()
	seedCreator(t, store, "c1")
	p := seedPublishedPost(t, store, "c1")
	svc := New(store, store, store, nil)

	if err := svc.Like(context.Background(), "fan", p.ID); err != nil {
		t.Fatalf("like: %v", err)
	}
	if err := svc.Like(context.Background(), "fan", p.ID); err != nil {
		t.Fatalf("repeat like must be a no-op: %v", err)
	}

	got, _ := store.GetPost(context.Background(), p.ID)
	if got.LikesCount != 1 {
		t.Fatalf("LikesCount = %d, want 1", got.LikesCount)
	}

	if err := svc.Unlike(context.Background(), "fan", p.ID); err != nil {
		t.Fatalf("unlike: %v", err)
	}
	got, _ = store.GetPost(context.Background(), p.ID)
	if got.LikesCount != 0 {
		t.Fatalf("LikesCount = %d after unlike, want 0", got.LikesCount)
	}
}

func TestService_LikeRequiresPublished(t *testing.T) {
	store := memory.New()
	seedCreator(t, store, "c1")
	draft, err := store.CreatePost(context.Background(), post.Post{CreatorID: "c1", Title: "Draft"})
	if err != nil {
		t.Fatalf("seed draft: %v", err)
	}
	svc := New(store, store, store, nil)

	if err := svc.Like(context.Background(), "fan", draft.ID); !errors.Is(err, ErrNotPublished) {
		t.Fatalf("expected ErrNotPublished, got %v", err)
	}
}

func TestService_Comments(t *testing.T) {
	store := memory.New()
	seedCreator(t, store, "c1")
	p := seedPublishedPost(t, store, "c1")
	svc := New(store, store, store, nil)

	c, err := svc.Comment(context.Background(), "fan", p.ID, "lovely work")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}

	got, _ := store.GetPost(context.Background(), p.ID)
	if got.CommentsCount != 1 {
		t.Fatalf("CommentsCount = %d, want 1", got.CommentsCount)
	}

	if _, err := svc.Comment(context.Background(), "fan", p.ID, "   "); err == nil {
		t.Fatal("expected error for blank comment")
	}

	// A stranger cannot delete the comment.
	if err := svc.DeleteComment(context.Background(), "stranger", c.ID); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("delete by stranger: got %v, want ErrNotAllowed", err)
	}

	// The post's creator can moderate.
	if err := svc.DeleteComment(context.Background(), "c1", c.ID); err != nil {
		t.Fatalf("delete by post creator: %v", err)
	}
	got, _ = store.GetPost(context.Background(), p.ID)
	if got.CommentsCount != 0 {
		t.Fatalf("CommentsCount = %d after delete, want 0", got.CommentsCount)
	}

	// The author can delete their own comment.
	c2, err := svc.Comment(context.Background(), "fan", p.ID, "again")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if err := svc.DeleteComment(context.Background(), "fan", c2.ID); err != nil {
		t.Fatalf("delete by author: %v", err)
	}
}

func TestService_ListComments(t *testing.T) {
	store := memory.New()
	seedCreator(t, store, "c1")
	p := seedPublishedPost(t, store, "c1")
	svc := New(store, store, store, nil)

	for _, body := range []string{"first", "second", "third"} {
		if _, err := svc.Comment(context.Background(), "fan", p.ID, body); err != nil {
			t.Fatalf("comment %q: %v", body, err)
		}
	}

	comments, err := svc.ListComments(context.Background(), p.ID, storage.Page{Limit: 2})
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("got %d comments, want 2", len(comments))
	}
	if comments[0].Body != "first" {
		t.Fatalf("comments not oldest-first: %q", comments[0].Body)
	}
}
