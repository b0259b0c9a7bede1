// Package authoring owns in-progress post drafts: local edit state, style
// commands, the validation gate and the submit lifecycle. Everything here is
// synchronous except Submit's single store call.
package authoring

import (
	"context"
	"errors"
	"fmt"

	"inkwell/api/internal/posts"
	"inkwell/api/internal/richtext"
	"inkwell/api/internal/validate"
)

// State is the session lifecycle position.
type State string

const (
	StateEmpty      State = "empty"
	StateEditing    State = "editing"
	StateSubmitting State = "submitting"
	StateCommitted  State = "committed"
	StateRejected   State = "rejected"
)

// ErrNotEditing reports an operation that needs an active draft.
var ErrNotEditing = errors.New("authoring: no active draft")

// postWriter is the slice of the post repository a session needs.
type postWriter interface {
	CreatePost(ctx context.Context, post posts.Post) (string, error)
	UpdatePost(ctx context.Context, id, title, body, category string) error
}

// Session is a per-post edit session. Sessions are value objects keyed by
// post id (or "" for a new post) and are not safe for concurrent use;
// callers serialize access.
type Session struct {
	rules    validate.Rules
	writer   postWriter
	authorID string

	state    State
	postID   string
	title    string
	category string
	body     richtext.Content
	sel      Selection
	lastErr  error
}

// NewSession creates an empty session for the given author.
func NewSession(rules validate.Rules, writer postWriter, authorID string) *Session {
	return &Session{rules: rules, writer: writer, authorID: authorID, state: StateEmpty}
}

// StartNew opens a blank draft.
func (s *Session) StartNew() {
	s.state = StateEditing
	s.postID = ""
	s.title = ""
	s.category = ""
	s.body = richtext.Content{}
	s.lastErr = nil
}

// StartEdit seeds the draft from a stored post. A body that fails to
// deserialize does not crash the session: the draft opens empty and the
// format error is returned so the caller can tell the user a rewrite is
// needed.
func (s *Session) StartEdit(post posts.Post) error {
	s.state = StateEditing
	s.postID = post.ID
	s.title = post.Title
	s.category = post.Category
	s.lastErr = nil

	content, err := richtext.Deserialize(post.Body)
	if err != nil {
		s.body = richtext.Content{}
		return fmt.Errorf("seed draft for post %s: %w", post.ID, err)
	}
	s.body = content
	return nil
}

func (s *Session) State() State           { return s.state }
func (s *Session) PostID() string         { return s.postID }
func (s *Session) Title() string          { return s.title }
func (s *Session) Category() string       { return s.category }
func (s *Session) Body() richtext.Content { return s.body }
func (s *Session) LastError() error       { return s.lastErr }

// editing reports whether local mutations are allowed. A rejected submit
// drops the session back into editing with the draft intact.
func (s *Session) editing() bool {
	if s.state == StateRejected {
		s.state = StateEditing
	}
	return s.state == StateEditing
}

func (s *Session) SetTitle(title string) {
	if s.editing() {
		s.title = title
	}
}

func (s *Session) SetCategory(category string) {
	if s.editing() {
		s.category = category
	}
}

func (s *Session) SetBody(body richtext.Content) {
	if s.editing() {
		s.body = body
	}
}

func (s *Session) Select(sel Selection) {
	if s.editing() {
		s.sel = sel
	}
}

// ToggleInlineStyle toggles an inline style over the current selection.
// Pure local transition, no suspension.
func (s *Session) ToggleInlineStyle(style richtext.Style) {
	if s.editing() {
		toggleInline(&s.body, style, s.sel)
	}
}

// ToggleBlockKind toggles the kind of the selected blocks.
func (s *Session) ToggleBlockKind(kind richtext.BlockKind) {
	if s.editing() {
		toggleBlock(&s.body, kind, s.sel)
	}
}

// Outcome reports what Submit did.
type Outcome struct {
	PostID     string
	Validation validate.Result
}

// Submit validates the draft and, when valid, writes it to the store. A
// validation failure stays local: nothing is persisted and no network call
// happens. A store failure preserves every field value; the caller may
// resubmit explicitly but nothing retries on its own.
func (s *Session) Submit(ctx context.Context) (Outcome, error) {
	if !s.editing() {
		return Outcome{}, ErrNotEditing
	}

	plain := richtext.PlainText(s.body)
	if result := validate.Post(s.rules, s.title, s.category, plain); !result.Valid() {
		return Outcome{Validation: result}, nil
	}

	serialized, err := richtext.Serialize(s.body)
	if err != nil {
		return Outcome{}, fmt.Errorf("serialize draft: %w", err)
	}

	s.state = StateSubmitting
	if s.postID == "" {
		id, err := s.writer.CreatePost(ctx, posts.Post{
			Title:    s.title,
			Body:     serialized,
			Category: s.category,
			AuthorID: s.authorID,
		})
		if err != nil {
			s.state = StateRejected
			s.lastErr = err
			return Outcome{}, err
		}
		s.postID = id
	} else {
		if err := s.writer.UpdatePost(ctx, s.postID, s.title, serialized, s.category); err != nil {
			s.state = StateRejected
			s.lastErr = err
			return Outcome{}, err
		}
	}

	committed := s.postID
	s.state = StateCommitted
	s.clearDraft()
	return Outcome{PostID: committed}, nil
}

// Cancel abandons the draft.
func (s *Session) Cancel() {
	s.state = StateEmpty
	s.clearDraft()
	s.postID = ""
}

func (s *Session) clearDraft() {
	s.title = ""
	s.category = ""
	s.body = richtext.Content{}
	s.sel = Selection{}
}
