package export

import (
	"context"
	"errors"
	"html/template"
	"strings"
	"testing"
	"time"

	"inkwell/api/internal/posts"
	"inkwell/api/internal/richtext"
)

type fakeSource struct {
	post     posts.Post
	postErr  error
	comments []posts.Comment
}

func (f *fakeSource) GetPost(ctx context.Context, id string) (posts.Post, error) {
	return f.post, f.postErr
}

func (f *fakeSource) ListComments(ctx context.Context, postID string) ([]posts.Comment, error) {
	return f.comments, nil
}

func serialized(t *testing.T, blocks ...richtext.Block) string {
	t.Helper()
	s, err := richtext.Serialize(richtext.Content{Blocks: blocks})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRenderPostHTML(t *testing.T) {
	published := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	source := &fakeSource{
		post: posts.Post{
			ID:          "p1",
			Title:       "Go & performance",
			Category:    "technology",
			AuthorID:    "writer-1",
			PublishedAt: published,
			Body: serialized(t,
				richtext.Block{Kind: richtext.KindHeading2, Text: "Benchmarks"},
				richtext.Block{Kind: richtext.KindParagraph, Text: "Measure first."},
			),
		},
		comments: []posts.Comment{
			{DisplayName: "reader <script>", Body: "great writeup, thanks", CreatedAt: published},
		},
	}

	post, err := source.GetPost(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	content, err := richtext.Deserialize(post.Body)
	if err != nil {
		t.Fatal(err)
	}

	data := TemplateData{
		Title:       post.Title,
		Category:    post.Category,
		Author:      post.AuthorID,
		PublishedAt: post.PublishedAt,
		ContentHTML: template.HTML(richtext.DisplayMarkup(content, 0)),
		Comments: []TemplateComment{
			{Author: source.comments[0].DisplayName, Body: source.comments[0].Body, CreatedAt: published},
		},
	}

	html, err := RenderPostHTML(data)
	if err != nil {
		t.Fatalf("RenderPostHTML: %v", err)
	}

	for _, want := range []string{
		"Go &amp; performance",
		"<h2>Benchmarks</h2>",
		"<p>Measure first.</p>",
		"Mar 14, 2026",
		"reader &lt;script&gt;",
		"great writeup, thanks",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered html missing %q", want)
		}
	}
	if strings.Contains(html, "<script>") {
		t.Error("comment author not escaped")
	}
}

func TestExportRejectsMalformedContent(t *testing.T) {
	source := &fakeSource{post: posts.Post{
		ID:    "p1",
		Title: "broken",
		Body:  `{"version":1,"blocks":[{"kind":"nope","text":""}]}`,
	}}
	s := NewService(source)

	_, err := s.Export(context.Background(), Request{PostID: "p1", Format: FormatPDF})
	if !errors.Is(err, ErrContentUnavailable) {
		t.Fatalf("err = %v, want ErrContentUnavailable", err)
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	source := &fakeSource{post: posts.Post{ID: "p1", Title: "fine", Body: ""}}
	s := NewService(source)

	if _, err := s.Export(context.Background(), Request{PostID: "p1", Format: "svg"}); err == nil {
		t.Fatal("want error for unsupported format")
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello", "hello"},
		{"hello world", "hello%20world"},
		{"a+b", "a%2Bb"},
		{"<p>", "%3Cp%3E"},
		{"naïve", "na%C3%AFve"},
	}
	for _, tc := range tests {
		if got := percentEncodeForDataURL(tc.input); got != tc.expected {
			t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"My Great Post", "My-Great-Post"},
		{"über/cool: yes?", "bercool-yes"},
		{"", "post"},
		{strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}
	for _, tc := range tests {
		if got := sanitizeFilename(tc.input); got != tc.expected {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}
