package search

import (
	"context"
	"fmt"
	"strings"

	"inkwell/api/internal/posts"
	"inkwell/api/internal/richtext"
)

// PostLister loads the posts the scanner walks. Satisfied by *posts.Repo.
type PostLister interface {
	ListPosts(ctx context.Context) ([]posts.Post, error)
}

// Scan is the degraded fallback searcher: it walks all posts through the
// document gateway and matches case-insensitive substrings against title and
// plain-text body. Slow but dependency-free, used whenever Meilisearch is
// down.
type Scan struct {
	lister PostLister
}

func NewScan(lister PostLister) *Scan {
	return &Scan{lister: lister}
}

// Search matches every query term; a post must contain all of them.
func (s *Scan) Search(ctx context.Context, q Query) ([]Result, int, error) {
	terms := strings.Fields(strings.ToLower(q.Text))
	if len(terms) == 0 {
		return []Result{}, 0, nil
	}

	all, err := s.lister.ListPosts(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("scan posts: %w", err)
	}

	limit := q.Limit
	if limit == 0 {
		limit = 20
	}

	var matched []Result
	for _, post := range all {
		if q.FilterCategory != "" && post.Category != q.FilterCategory {
			continue
		}
		body := plainBody(post.Body)
		haystack := strings.ToLower(post.Title + "\n" + body)
		if !containsAll(haystack, terms) {
			continue
		}
		matched = append(matched, Result{
			ID:       post.ID,
			Title:    post.Title,
			Snippet:  snippet(body, terms[0]),
			Category: post.Category,
			AuthorID: post.AuthorID,
		})
	}

	total := len(matched)
	if q.Offset >= total {
		return []Result{}, total, nil
	}
	matched = matched[q.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func containsAll(haystack string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

func plainBody(serialized string) string {
	content, err := richtext.Deserialize(serialized)
	if err != nil {
		return serialized
	}
	return richtext.PlainText(content)
}

// snippet returns a short window of the body around the first term hit.
func snippet(body, term string) string {
	const window = 120
	runes := []rune(body)
	idx := strings.Index(strings.ToLower(body), term)
	if idx < 0 {
		if len(runes) <= window {
			return body
		}
		return string(runes[:window]) + richtext.Ellipsis
	}

	start := len([]rune(body[:idx]))
	from := start - window/4
	if from < 0 {
		from = 0
	}
	to := from + window
	if to > len(runes) {
		to = len(runes)
	}

	out := string(runes[from:to])
	if from > 0 {
		out = richtext.Ellipsis + out
	}
	if to < len(runes) {
		out += richtext.Ellipsis
	}
	return out
}
