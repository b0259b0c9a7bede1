package authoring

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"inkwell/api/internal/posts"
	"inkwell/api/internal/richtext"
	"inkwell/api/internal/validate"
)

type fakeWriter struct {
	createFn func(context.Context, posts.Post) (string, error)
	updateFn func(context.Context, string, string, string, string) error

	created []posts.Post
	updated []string
}

func (f *fakeWriter) CreatePost(ctx context.Context, post posts.Post) (string, error) {
	f.created = append(f.created, post)
	if f.createFn != nil {
		return f.createFn(ctx, post)
	}
	return "post-1", nil
}

func (f *fakeWriter) UpdatePost(ctx context.Context, id, title, body, category string) error {
	f.updated = append(f.updated, id)
	if f.updateFn != nil {
		return f.updateFn(ctx, id, title, body, category)
	}
	return nil
}

func testRules() validate.Rules {
	return validate.Rules{MinTitleLength: 5, MinBodyLength: 10}
}

func validDraft(s *Session) {
	s.SetTitle("A long enough title")
	s.SetCategory("science")
	s.SetBody(richtext.Content{Blocks: []richtext.Block{
		{Kind: richtext.KindParagraph, Text: "a body comfortably over the minimum"},
	}})
}

func TestSubmitCreatesPost(t *testing.T) {
	writer := &fakeWriter{}
	session := NewSession(testRules(), writer, "author-1")
	session.StartNew()
	validDraft(session)

	outcome, err := session.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome.PostID != "post-1" {
		t.Errorf("PostID = %q", outcome.PostID)
	}
	if session.State() != StateCommitted {
		t.Errorf("state = %q, want %q", session.State(), StateCommitted)
	}
	if len(writer.created) != 1 {
		t.Fatalf("created %d posts", len(writer.created))
	}
	if writer.created[0].AuthorID != "author-1" {
		t.Errorf("author = %q", writer.created[0].AuthorID)
	}

	// The stored body must deserialize back to the draft.
	content, err := richtext.Deserialize(writer.created[0].Body)
	if err != nil {
		t.Fatalf("Deserialize stored body: %v", err)
	}
	if content.Blocks[0].Text != "a body comfortably over the minimum" {
		t.Errorf("stored text = %q", content.Blocks[0].Text)
	}
}

func TestSubmitValidationFailureIsLocal(t *testing.T) {
	writer := &fakeWriter{}
	session := NewSession(testRules(), writer, "author-1")
	session.StartNew()
	session.SetTitle("hi")

	outcome, err := session.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome.Validation.Valid() {
		t.Fatal("expected a validation failure")
	}
	if outcome.Validation.Kind != validate.TitleTooShort {
		t.Errorf("kind = %q", outcome.Validation.Kind)
	}
	if session.State() != StateEditing {
		t.Errorf("state = %q, want %q", session.State(), StateEditing)
	}
	if len(writer.created)+len(writer.updated) != 0 {
		t.Error("validation failure must not reach the store")
	}
	if session.Title() != "hi" {
		t.Errorf("draft title lost: %q", session.Title())
	}
}

func TestSubmitStoreFailurePreservesDraft(t *testing.T) {
	storeErr := errors.New("store down")
	writer := &fakeWriter{createFn: func(context.Context, posts.Post) (string, error) {
		return "", storeErr
	}}
	session := NewSession(testRules(), writer, "author-1")
	session.StartNew()
	validDraft(session)

	_, err := session.Submit(context.Background())
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
	if session.State() != StateRejected {
		t.Errorf("state = %q, want %q", session.State(), StateRejected)
	}
	if session.Title() != "A long enough title" || session.Category() != "science" {
		t.Error("rejected submit must preserve field values")
	}

	// Explicit resubmit succeeds once the store recovers.
	writer.createFn = nil
	outcome, err := session.Submit(context.Background())
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if outcome.PostID == "" {
		t.Error("resubmit should commit")
	}
}

func TestStartEditSeedsDraft(t *testing.T) {
	body, err := richtext.Serialize(richtext.Content{Blocks: []richtext.Block{
		{Kind: richtext.KindHeading2, Text: "Existing"},
	}})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	session := NewSession(testRules(), &fakeWriter{}, "author-1")
	err = session.StartEdit(posts.Post{ID: "p9", Title: "old title", Category: "books", Body: body})
	if err != nil {
		t.Fatalf("StartEdit: %v", err)
	}
	if session.Title() != "old title" || session.Category() != "books" {
		t.Error("draft not seeded from post")
	}
	if len(session.Body().Blocks) != 1 || session.Body().Blocks[0].Text != "Existing" {
		t.Errorf("body = %+v", session.Body())
	}
}

func TestStartEditMalformedBody(t *testing.T) {
	session := NewSession(testRules(), &fakeWriter{}, "author-1")
	err := session.StartEdit(posts.Post{ID: "p9", Title: "t", Body: `{"version":1,"blocks":[`})

	var formatErr *richtext.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected *richtext.FormatError, got %v", err)
	}
	if session.State() != StateEditing {
		t.Errorf("state = %q, want editing", session.State())
	}
	if len(session.Body().Blocks) != 0 {
		t.Error("draft body should be empty after a format error")
	}
}

func TestSubmitUpdatesExistingPost(t *testing.T) {
	writer := &fakeWriter{}
	session := NewSession(testRules(), writer, "author-1")
	if err := session.StartEdit(posts.Post{ID: "p7", Title: "old", Category: "books", Body: ""}); err != nil {
		t.Fatalf("StartEdit: %v", err)
	}
	validDraft(session)

	outcome, err := session.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome.PostID != "p7" {
		t.Errorf("PostID = %q, want p7", outcome.PostID)
	}
	if len(writer.updated) != 1 || writer.updated[0] != "p7" {
		t.Errorf("updated = %v", writer.updated)
	}
	if len(writer.created) != 0 {
		t.Error("edit mode must not create a new post")
	}
}

func TestToggleInlineStyle(t *testing.T) {
	session := NewSession(testRules(), &fakeWriter{}, "author-1")
	session.StartNew()
	session.SetBody(richtext.Content{Blocks: []richtext.Block{
		{Kind: richtext.KindParagraph, Text: "hello world"},
	}})
	session.Select(Selection{StartBlock: 0, StartOffset: 0, EndBlock: 0, EndOffset: 5})

	session.ToggleInlineStyle(richtext.StyleBold)
	want := []richtext.InlineRange{{Start: 0, End: 5, Style: richtext.StyleBold}}
	if got := session.Body().Blocks[0].Ranges; !reflect.DeepEqual(got, want) {
		t.Fatalf("after first toggle: %+v", got)
	}

	// Second toggle over the same selection removes the style.
	session.ToggleInlineStyle(richtext.StyleBold)
	if got := session.Body().Blocks[0].Ranges; len(got) != 0 {
		t.Fatalf("after second toggle: %+v", got)
	}
}

func TestToggleInlineStyleExtendsPartialRange(t *testing.T) {
	session := NewSession(testRules(), &fakeWriter{}, "author-1")
	session.StartNew()
	session.SetBody(richtext.Content{Blocks: []richtext.Block{
		{Kind: richtext.KindParagraph, Text: "hello world", Ranges: []richtext.InlineRange{
			{Start: 0, End: 3, Style: richtext.StyleBold},
		}},
	}})
	session.Select(Selection{StartBlock: 0, StartOffset: 0, EndBlock: 0, EndOffset: 8})

	// Selection is only partially bold, so the toggle bolds all of it.
	session.ToggleInlineStyle(richtext.StyleBold)
	want := []richtext.InlineRange{{Start: 0, End: 8, Style: richtext.StyleBold}}
	if got := session.Body().Blocks[0].Ranges; !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges = %+v, want %+v", got, want)
	}
}

func TestToggleBlockKind(t *testing.T) {
	session := NewSession(testRules(), &fakeWriter{}, "author-1")
	session.StartNew()
	session.SetBody(richtext.Content{Blocks: []richtext.Block{
		{Kind: richtext.KindParagraph, Text: "one"},
		{Kind: richtext.KindParagraph, Text: "two"},
	}})
	session.Select(Selection{StartBlock: 0, EndBlock: 1})

	session.ToggleBlockKind(richtext.KindUnorderedItem)
	for i, block := range session.Body().Blocks {
		if block.Kind != richtext.KindUnorderedItem {
			t.Fatalf("block %d kind = %q", i, block.Kind)
		}
	}

	// Toggling the same kind again reverts to paragraphs.
	session.ToggleBlockKind(richtext.KindUnorderedItem)
	for i, block := range session.Body().Blocks {
		if block.Kind != richtext.KindParagraph {
			t.Fatalf("block %d kind = %q", i, block.Kind)
		}
	}
}

func TestStyledDraftRoundTripsThroughSubmit(t *testing.T) {
	writer := &fakeWriter{}
	session := NewSession(testRules(), writer, "author-1")
	session.StartNew()
	session.SetTitle("A long enough title")
	session.SetCategory("science")
	session.SetBody(richtext.Content{Blocks: []richtext.Block{
		{Kind: richtext.KindParagraph, Text: strings.Repeat("word ", 10)},
	}})
	session.Select(Selection{StartBlock: 0, StartOffset: 0, EndBlock: 0, EndOffset: 4})
	session.ToggleInlineStyle(richtext.StyleItalic)
	wantBody := session.Body()

	if _, err := session.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	stored, err := richtext.Deserialize(writer.created[0].Body)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !reflect.DeepEqual(stored, wantBody) {
		t.Fatalf("stored %+v, want %+v", stored, wantBody)
	}
}
