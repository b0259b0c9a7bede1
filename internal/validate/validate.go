// Package validate holds the pure draft validation rules applied before a
// post submit is allowed to reach the store.
package validate

import "fmt"

// FailureKind identifies which rule rejected a draft.
type FailureKind string

const (
	TitleTooShort   FailureKind = "title_too_short"
	CategoryMissing FailureKind = "category_missing"
	BodyTooShort    FailureKind = "body_too_short"
	BodyTooLong     FailureKind = "body_too_long"
	AuthorMissing   FailureKind = "author_missing"
)

// Rules carries the deployment-specific thresholds. Zero values disable the
// corresponding length check; an empty Categories list accepts any non-blank
// category.
type Rules struct {
	MinTitleLength int
	MinBodyLength  int
	Categories     []string
}

// Result is either valid or carries the first failing check.
type Result struct {
	Kind    FailureKind
	Message string
}

// Valid reports whether the draft passed every check.
func (r Result) Valid() bool {
	return r.Kind == ""
}

var ok = Result{}

// Post checks a draft in fixed order: title, then category, then body. Only
// the first failure is reported so the caller shows a single message.
func Post(rules Rules, title, category, plainBody string) Result {
	if titleLen := len([]rune(title)); titleLen < rules.MinTitleLength {
		return Result{
			Kind: TitleTooShort,
			Message: fmt.Sprintf(
				"Title should be at least %d symbols! You have %d symbols. Please add %d more.",
				rules.MinTitleLength, titleLen, rules.MinTitleLength-titleLen),
		}
	}
	if !knownCategory(rules, category) {
		return Result{Kind: CategoryMissing, Message: "Please choose a category!"}
	}
	if bodyLen := len([]rune(plainBody)); bodyLen < rules.MinBodyLength {
		return Result{
			Kind: BodyTooShort,
			Message: fmt.Sprintf(
				"Content should be at least %d symbols! You have %d symbols. You need %d more symbols.",
				rules.MinBodyLength, bodyLen, rules.MinBodyLength-bodyLen),
		}
	}
	return ok
}

func knownCategory(rules Rules, category string) bool {
	if category == "" {
		return false
	}
	if len(rules.Categories) == 0 {
		return true
	}
	for _, c := range rules.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// CommentRules carries the length bounds for plain-text comments.
type CommentRules struct {
	MinLength int
	MaxLength int
}

// Comment checks a comment body against the injected bounds.
func Comment(rules CommentRules, body string) Result {
	length := len([]rune(body))
	if length < rules.MinLength {
		return Result{
			Kind:    BodyTooShort,
			Message: fmt.Sprintf("Content must be at least %d symbols long!", rules.MinLength),
		}
	}
	if rules.MaxLength > 0 && length > rules.MaxLength {
		return Result{
			Kind:    BodyTooLong,
			Message: fmt.Sprintf("Content must be at most %d symbols long!", rules.MaxLength),
		}
	}
	return ok
}
