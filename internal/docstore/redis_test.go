package docstore

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func setupTestGateway(t *testing.T) *RedisGateway {
	t.Helper()
	s := miniredis.RunT(t)
	gateway, err := NewRedisGateway("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis gateway: %v", err)
	}
	t.Cleanup(func() { gateway.Close() })
	return gateway
}

func TestRedisCreateAndGet(t *testing.T) {
	gateway := setupTestGateway(t)
	ctx := context.Background()

	id, err := gateway.CreateDocument(ctx, "posts", map[string]any{
		"title":      "First post",
		"viewCount":  0,
		"savedBy":    []string{"u1"},
		"categories": []string{},
	})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	doc, err := gateway.GetDocument(ctx, "posts", id)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.String("title") != "First post" {
		t.Errorf("title = %q", doc.String("title"))
	}
	if doc.Int("viewCount") != 0 {
		t.Errorf("viewCount = %d", doc.Int("viewCount"))
	}
	if saved := doc.StringSlice("savedBy"); len(saved) != 1 || saved[0] != "u1" {
		t.Errorf("savedBy = %v", saved)
	}
}

func TestRedisGetMissing(t *testing.T) {
	gateway := setupTestGateway(t)

	_, err := gateway.GetDocument(context.Background(), "posts", "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisIncrement(t *testing.T) {
	gateway := setupTestGateway(t)
	ctx := context.Background()

	id, err := gateway.CreateDocument(ctx, "posts", map[string]any{"viewCount": 3})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	if err := gateway.UpdateFields(ctx, "posts", id, Increment("viewCount", 1)); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if err := gateway.UpdateFields(ctx, "posts", id, Increment("viewCount", -2)); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	doc, err := gateway.GetDocument(ctx, "posts", id)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Int("viewCount") != 2 {
		t.Errorf("viewCount = %d, want 2", doc.Int("viewCount"))
	}
}

func TestRedisIncrementMissingFieldStartsAtZero(t *testing.T) {
	gateway := setupTestGateway(t)
	ctx := context.Background()

	id, err := gateway.CreateDocument(ctx, "posts", map[string]any{"title": "t"})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if err := gateway.UpdateFields(ctx, "posts", id, Increment("commentCount", 1)); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	doc, err := gateway.GetDocument(ctx, "posts", id)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Int("commentCount") != 1 {
		t.Errorf("commentCount = %d, want 1", doc.Int("commentCount"))
	}
}

func TestRedisArrayUnionAndRemove(t *testing.T) {
	gateway := setupTestGateway(t)
	ctx := context.Background()

	id, err := gateway.CreateDocument(ctx, "posts", map[string]any{"title": "t"})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	for _, user := range []string{"u1", "u2", "u1"} {
		if err := gateway.UpdateFields(ctx, "posts", id, ArrayUnion("savedBy", user)); err != nil {
			t.Fatalf("ArrayUnion: %v", err)
		}
	}

	doc, err := gateway.GetDocument(ctx, "posts", id)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	saved := doc.StringSlice("savedBy")
	sort.Strings(saved)
	if len(saved) != 2 || saved[0] != "u1" || saved[1] != "u2" {
		t.Fatalf("savedBy = %v, want [u1 u2]", saved)
	}

	if err := gateway.UpdateFields(ctx, "posts", id, ArrayRemove("savedBy", "u1")); err != nil {
		t.Fatalf("ArrayRemove: %v", err)
	}
	doc, err = gateway.GetDocument(ctx, "posts", id)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if saved := doc.StringSlice("savedBy"); len(saved) != 1 || saved[0] != "u2" {
		t.Fatalf("savedBy = %v, want [u2]", saved)
	}
}

func TestRedisUpdateMissingDocument(t *testing.T) {
	gateway := setupTestGateway(t)

	err := gateway.UpdateFields(context.Background(), "posts", "missing", Set("title", "x"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisCombinedUpdateIsApplied(t *testing.T) {
	gateway := setupTestGateway(t)
	ctx := context.Background()

	id, err := gateway.CreateDocument(ctx, "polls", map[string]any{
		"question": "favorite?",
		"votes:a":  3,
		"votes:b":  1,
	})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	// Vote counter and fingerprint land in one call.
	err = gateway.UpdateFields(ctx, "polls", id,
		Increment("votes:b", 1),
		ArrayUnion("votedBy", "F1"),
	)
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	doc, err := gateway.GetDocument(ctx, "polls", id)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Int("votes:b") != 2 {
		t.Errorf("votes:b = %d, want 2", doc.Int("votes:b"))
	}
	if voted := doc.StringSlice("votedBy"); len(voted) != 1 || voted[0] != "F1" {
		t.Errorf("votedBy = %v, want [F1]", voted)
	}
}

func TestRedisDelete(t *testing.T) {
	gateway := setupTestGateway(t)
	ctx := context.Background()

	id, err := gateway.CreateDocument(ctx, "comments", map[string]any{"content": "hello"})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if err := gateway.DeleteDocument(ctx, "comments", id); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := gateway.GetDocument(ctx, "comments", id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRedisQueryByField(t *testing.T) {
	gateway := setupTestGateway(t)
	ctx := context.Background()

	for _, post := range []map[string]any{
		{"title": "a", "category": "science", "publishedAt": "2026-01-01T00:00:00Z"},
		{"title": "b", "category": "travel", "publishedAt": "2026-02-01T00:00:00Z"},
		{"title": "c", "category": "science", "publishedAt": "2026-03-01T00:00:00Z"},
	} {
		if _, err := gateway.CreateDocument(ctx, "posts", post); err != nil {
			t.Fatalf("CreateDocument: %v", err)
		}
	}

	docs, err := gateway.QueryByField(ctx, "posts", Query{
		Field: "category", Value: "science", OrderBy: "publishedAt", Descending: true,
	})
	if err != nil {
		t.Fatalf("QueryByField: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0].String("title") != "c" || docs[1].String("title") != "a" {
		t.Errorf("order = [%s %s], want [c a]", docs[0].String("title"), docs[1].String("title"))
	}
}

func TestRedisQueryArrayContains(t *testing.T) {
	gateway := setupTestGateway(t)
	ctx := context.Background()

	saved, err := gateway.CreateDocument(ctx, "posts", map[string]any{
		"title": "saved", "savedBy": []string{"u1", "u2"},
	})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if _, err := gateway.CreateDocument(ctx, "posts", map[string]any{"title": "other"}); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	docs, err := gateway.QueryByField(ctx, "posts", Query{
		Field: "savedBy", Value: "u1", ArrayContains: true,
	})
	if err != nil {
		t.Fatalf("QueryByField: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != saved {
		t.Fatalf("got %v, want the saved post only", docs)
	}
}
