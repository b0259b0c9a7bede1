package posts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"inkwell/api/internal/docstore"
)

func newRepo(t *testing.T) *Repo {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRepo(docstore.NewRedisGatewayWithClient(client))
}

func TestPostRoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	id, err := repo.CreatePost(ctx, Post{
		Title:    "First post",
		Body:     `{"version":1,"blocks":[{"kind":"paragraph","text":"hello"}]}`,
		Category: "technology",
		AuthorID: "w1",
	})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	post, err := repo.GetPost(ctx, id)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if post.Title != "First post" || post.Category != "technology" || post.AuthorID != "w1" {
		t.Errorf("post = %+v", post)
	}
	if post.CommentCount != 0 || post.ViewCount != 0 || len(post.SavedBy) != 0 {
		t.Errorf("counters not zeroed: %+v", post)
	}
	if post.PublishedAt.IsZero() || !post.PublishedAt.Equal(post.UpdatedAt) {
		t.Errorf("timestamps = %v / %v", post.PublishedAt, post.UpdatedAt)
	}

	if err := repo.UpdatePost(ctx, id, "Renamed", post.Body, "science"); err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}
	updated, err := repo.GetPost(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Title != "Renamed" || updated.Category != "science" {
		t.Errorf("updated = %+v", updated)
	}
	if !updated.PublishedAt.Equal(post.PublishedAt) {
		t.Error("UpdatePost touched publishedAt")
	}

	if err := repo.DeletePost(ctx, id); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	if _, err := repo.GetPost(ctx, id); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("get after delete err = %v, want ErrNotFound", err)
	}
}

func TestListPostsOrderingAndFilters(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ids := make([]string, 3)
	for i, p := range []Post{
		{Title: "oldest", Category: "travel", AuthorID: "w1", PublishedAt: base},
		{Title: "middle", Category: "books", AuthorID: "w1", PublishedAt: base.Add(time.Hour)},
		{Title: "newest", Category: "travel", AuthorID: "w2", PublishedAt: base.Add(2 * time.Hour)},
	} {
		id, err := repo.CreatePost(ctx, p)
		if err != nil {
			t.Fatal(err)
		}
		ids[i] = id
	}

	all, err := repo.ListPosts(ctx)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(all) != 3 || all[0].Title != "newest" || all[2].Title != "oldest" {
		t.Fatalf("order = %v", titles(all))
	}

	travel, err := repo.ListPostsByCategory(ctx, "travel")
	if err != nil {
		t.Fatal(err)
	}
	if len(travel) != 2 || travel[0].Title != "newest" {
		t.Errorf("travel = %v", titles(travel))
	}

	// Bookmark the oldest post for u1 through the gateway primitive, then
	// query by membership.
	gw := repo.gateway
	if err := gw.UpdateFields(ctx, CollectionPosts, ids[0],
		docstore.ArrayUnion(FieldSavedBy, "u1")); err != nil {
		t.Fatal(err)
	}
	saved, err := repo.ListSavedBy(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 1 || saved[0].Title != "oldest" {
		t.Errorf("saved = %v", titles(saved))
	}
}

func TestListPostsSubsecondOrdering(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	// A whole-second timestamp must sort before a fractional one in the same
	// second. The stored strings are compared lexicographically, so this only
	// holds when the fractional part is fixed width.
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, p := range []Post{
		{Title: "whole", Category: "travel", AuthorID: "w1", PublishedAt: base},
		{Title: "half", Category: "travel", AuthorID: "w1", PublishedAt: base.Add(500 * time.Millisecond)},
		{Title: "next", Category: "travel", AuthorID: "w1", PublishedAt: base.Add(time.Second)},
	} {
		if _, err := repo.CreatePost(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	all, err := repo.ListPosts(ctx)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	want := []string{"next", "half", "whole"}
	got := titles(all)
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func titles(list []Post) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.Title
	}
	return out
}

func TestCommentsNewestFirst(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, body := range []string{"first comment body", "second comment body"} {
		_, err := repo.gateway.CreateDocument(ctx, CollectionComments, map[string]any{
			FieldPostID:      "p1",
			FieldCommentUID:  "u1",
			FieldDisplayName: "reader",
			FieldCommentBody: body,
			FieldCreatedAt:   docstore.FormatTime(base.Add(time.Duration(i) * time.Minute)),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	comments, err := repo.ListComments(ctx, "p1")
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(comments) != 2 || comments[0].Body != "second comment body" {
		t.Fatalf("comments = %+v", comments)
	}
	if comments[0].EditedAt != nil {
		t.Error("fresh comment carries editedAt")
	}
}

func TestPollRoundTripKeepsOptionOrder(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	id, err := repo.CreatePoll(ctx, "Favorite season?", []PollOption{
		{ID: "opt1", Text: "Winter"},
		{ID: "opt2", Text: "Summer"},
		{ID: "opt3", Text: "Autumn"},
	})
	if err != nil {
		t.Fatalf("CreatePoll: %v", err)
	}

	poll, err := repo.GetPoll(ctx, id)
	if err != nil {
		t.Fatalf("GetPoll: %v", err)
	}
	if poll.Question != "Favorite season?" || len(poll.Options) != 3 {
		t.Fatalf("poll = %+v", poll)
	}
	for i, want := range []string{"Winter", "Summer", "Autumn"} {
		if poll.Options[i].Text != want || poll.Options[i].Votes != 0 {
			t.Errorf("option %d = %+v, want %s with 0 votes", i, poll.Options[i], want)
		}
	}
	if poll.TotalVotes() != 0 || poll.HasVoted("F1") {
		t.Errorf("fresh poll state = %+v", poll)
	}
}
