package validate

import (
	"strings"
	"testing"
)

func TestPostCheckOrder(t *testing.T) {
	rules := Rules{MinTitleLength: 30, MinBodyLength: 1000}

	// Every check fails at once; only the title failure may be reported.
	result := Post(rules, "", "", "short")
	if result.Valid() {
		t.Fatal("expected invalid result")
	}
	if result.Kind != TitleTooShort {
		t.Fatalf("got kind %q, want %q", result.Kind, TitleTooShort)
	}
}

func TestPost(t *testing.T) {
	rules := Rules{MinTitleLength: 30, MinBodyLength: 1000}
	longTitle := strings.Repeat("t", 30)
	longBody := strings.Repeat("b", 1200)

	cases := []struct {
		name     string
		title    string
		category string
		body     string
		wantKind FailureKind
	}{
		{name: "all valid", title: longTitle, category: "science", body: longBody, wantKind: ""},
		{name: "short title", title: strings.Repeat("t", 10), category: "science", body: longBody, wantKind: TitleTooShort},
		{name: "missing category", title: longTitle, category: "", body: longBody, wantKind: CategoryMissing},
		{name: "short body", title: longTitle, category: "science", body: "too short", wantKind: BodyTooShort},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := Post(rules, tc.title, tc.category, tc.body)
			if result.Kind != tc.wantKind {
				t.Fatalf("got kind %q, want %q", result.Kind, tc.wantKind)
			}
			if tc.wantKind == "" && !result.Valid() {
				t.Fatalf("expected valid, got %+v", result)
			}
		})
	}
}

func TestPostUnknownCategory(t *testing.T) {
	rules := Rules{MinTitleLength: 5, MinBodyLength: 10, Categories: []string{"science", "travel"}}
	longBody := strings.Repeat("b", 40)

	result := Post(rules, "A valid title", "gibberish", longBody)
	if result.Kind != CategoryMissing {
		t.Fatalf("got kind %q, want %q", result.Kind, CategoryMissing)
	}
	if result.Message != "Please choose a category!" {
		t.Fatalf("message = %q", result.Message)
	}

	// The title check still runs first even when the category is unknown.
	result = Post(rules, "abc", "gibberish", longBody)
	if result.Kind != TitleTooShort {
		t.Fatalf("got kind %q, want %q", result.Kind, TitleTooShort)
	}

	if result := Post(rules, "A valid title", "travel", longBody); !result.Valid() {
		t.Fatalf("known category rejected: %+v", result)
	}
}

func TestPostTitleMessageCountsMissingSymbols(t *testing.T) {
	rules := Rules{MinTitleLength: 30, MinBodyLength: 1000}
	result := Post(rules, strings.Repeat("t", 10), "science", strings.Repeat("b", 1200))
	if result.Kind != TitleTooShort {
		t.Fatalf("got kind %q, want %q", result.Kind, TitleTooShort)
	}
	if !strings.Contains(result.Message, "20 more") {
		t.Fatalf("message %q should mention the 20 missing symbols", result.Message)
	}
}

func TestComment(t *testing.T) {
	rules := CommentRules{MinLength: 20, MaxLength: 2000}

	cases := []struct {
		name     string
		body     string
		wantKind FailureKind
	}{
		{name: "valid", body: strings.Repeat("c", 40), wantKind: ""},
		{name: "too short", body: "nice post", wantKind: BodyTooShort},
		{name: "too long", body: strings.Repeat("c", 2001), wantKind: BodyTooLong},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := Comment(rules, tc.body)
			if result.Kind != tc.wantKind {
				t.Fatalf("got kind %q, want %q", result.Kind, tc.wantKind)
			}
		})
	}
}
