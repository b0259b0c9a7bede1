package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"inkwell/api/internal/auth"
	"inkwell/api/internal/authoring"
	"inkwell/api/internal/config"
	"inkwell/api/internal/docstore"
	"inkwell/api/internal/export"
	"inkwell/api/internal/identity"
	"inkwell/api/internal/ledger"
	"inkwell/api/internal/posts"
	"inkwell/api/internal/rbac"
	"inkwell/api/internal/richtext"
	"inkwell/api/internal/search"
	"inkwell/api/internal/validate"
	"inkwell/api/internal/viewledger"
)

// snippetBudget bounds the preview markup on list endpoints.
const snippetBudget = 300

type pinger interface {
	Ping(ctx context.Context) error
}

// Service is the application facade the HTTP layer talks to.
type Service struct {
	cfg     config.Config
	gateway docstore.Gateway
	repo    *posts.Repo
	ledger  *ledger.Ledger
	search  *search.Service
	export  *export.Service
	views   *viewledger.Store
	rules   validate.Rules

	mu     sync.Mutex
	drafts map[string]*draft // keyed by author id
}

// draft pairs a long-lived authoring session with the lock that serializes
// requests touching it. Session itself is not safe for concurrent use, and
// the lock keeps one client's operations applied in the order they arrive.
type draft struct {
	mu      sync.Mutex
	session *authoring.Session
}

func New(
	cfg config.Config,
	gateway docstore.Gateway,
	searchService *search.Service,
	views *viewledger.Store,
) *Service {
	repo := posts.NewRepo(gateway)
	commentRules := validate.CommentRules{
		MinLength: cfg.MinCommentLength,
		MaxLength: cfg.MaxCommentLength,
	}
	return &Service{
		cfg:     cfg,
		gateway: gateway,
		repo:    repo,
		ledger:  ledger.New(gateway, commentRules),
		search:  searchService,
		export:  export.NewService(repo),
		views:   views,
		rules: validate.Rules{
			MinTitleLength: cfg.MinTitleLength,
			MinBodyLength:  cfg.MinBodyLength,
			Categories:     posts.Categories,
		},
		drafts: make(map[string]*draft),
	}
}

// Ping reports gateway connectivity for the readiness probe.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.gateway.(pinger); ok {
		return p.Ping(ctx)
	}
	_, err := s.gateway.QueryByField(ctx, posts.CollectionPosts, docstore.Query{Limit: 1})
	return err
}

// UserFromToken verifies a bearer token against the identity provider secret.
func (s *Service) UserFromToken(token string) (identity.User, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return identity.User{}, err
	}
	return identity.User{
		ID:   claims.Sub,
		Name: claims.Name,
		Role: identity.Normalize(claims.Role),
	}, nil
}

// PostView is the JSON shape of a single post.
type PostView struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Category     string           `json:"category"`
	AuthorID     string           `json:"userId"`
	PublishedAt  time.Time        `json:"publishedAt"`
	UpdatedAt    time.Time        `json:"updatedAt,omitempty"`
	CommentCount int64            `json:"commentCount"`
	ViewCount    int64            `json:"viewCount"`
	SavedBy      []string         `json:"savedBy"`
	Blocks       []richtext.Block `json:"blocks,omitempty"`
	Snippet      string           `json:"snippet,omitempty"`
}

func (s *Service) postView(post posts.Post, full bool) (PostView, error) {
	view := PostView{
		ID:           post.ID,
		Title:        post.Title,
		Category:     post.Category,
		AuthorID:     post.AuthorID,
		PublishedAt:  post.PublishedAt,
		UpdatedAt:    post.UpdatedAt,
		CommentCount: post.CommentCount,
		ViewCount:    post.ViewCount,
		SavedBy:      post.SavedBy,
	}
	if view.SavedBy == nil {
		view.SavedBy = []string{}
	}
	content, err := richtext.Deserialize(post.Body)
	if err != nil {
		return PostView{}, fmt.Errorf("post %s content: %w", post.ID, err)
	}
	if full {
		view.Blocks = content.Blocks
	} else {
		view.Snippet = richtext.DisplayMarkup(content, snippetBudget)
	}
	return view, nil
}

func (s *Service) postViews(list []posts.Post) []PostView {
	views := make([]PostView, 0, len(list))
	for _, post := range list {
		view, err := s.postView(post, false)
		if err != nil {
			// A post with unreadable content stays out of listings rather
			// than failing the whole page.
			continue
		}
		views = append(views, view)
	}
	return views
}

// GetPost loads one post with its full block content.
func (s *Service) GetPost(ctx context.Context, id string) (PostView, error) {
	post, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return PostView{}, err
	}
	return s.postView(post, true)
}

// ListPosts returns post previews, optionally filtered by category.
func (s *Service) ListPosts(ctx context.Context, category string) ([]PostView, error) {
	var (
		list []posts.Post
		err  error
	)
	if category == "" {
		list, err = s.repo.ListPosts(ctx)
	} else {
		if !posts.ValidCategory(category) {
			return nil, domainError(http.StatusBadRequest, "UNKNOWN_CATEGORY",
				fmt.Sprintf("Unknown category %q", category), nil)
		}
		list, err = s.repo.ListPostsByCategory(ctx, category)
	}
	if err != nil {
		return nil, err
	}
	return s.postViews(list), nil
}

// ListSaved returns the caller's bookmarked posts.
func (s *Service) ListSaved(ctx context.Context, user identity.User) ([]PostView, error) {
	list, err := s.repo.ListSavedBy(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.postViews(list), nil
}

// PostInput is the request body for direct post writes.
type PostInput struct {
	Title    string           `json:"title"`
	Category string           `json:"category"`
	Blocks   []richtext.Block `json:"blocks"`
}

// CreatePost runs a one-shot authoring session over the input and returns
// the stored post. A validation failure surfaces as a 422 and nothing is
// persisted.
func (s *Service) CreatePost(ctx context.Context, user identity.User, in PostInput) (PostView, error) {
	if !rbac.Can(user.Role, rbac.ActionWrite) {
		return PostView{}, errForbidden()
	}

	session := authoring.NewSession(s.rules, s.repo, user.ID)
	session.StartNew()
	session.SetTitle(in.Title)
	session.SetCategory(in.Category)
	session.SetBody(richtext.Content{Blocks: in.Blocks})

	outcome, err := session.Submit(ctx)
	if err != nil {
		return PostView{}, err
	}
	if !outcome.Validation.Valid() {
		return PostView{}, validationFailed(outcome.Validation)
	}
	return s.afterPostWrite(ctx, outcome.PostID)
}

// UpdatePost rewrites an existing post through an edit session.
func (s *Service) UpdatePost(ctx context.Context, user identity.User, id string, in PostInput) (PostView, error) {
	post, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return PostView{}, err
	}
	if !rbac.CanEditPost(user, post.AuthorID) {
		return PostView{}, errForbidden()
	}

	session := authoring.NewSession(s.rules, s.repo, user.ID)
	if err := session.StartEdit(post); err != nil {
		return PostView{}, err
	}
	session.SetTitle(in.Title)
	session.SetCategory(in.Category)
	session.SetBody(richtext.Content{Blocks: in.Blocks})

	outcome, err := session.Submit(ctx)
	if err != nil {
		return PostView{}, err
	}
	if !outcome.Validation.Valid() {
		return PostView{}, validationFailed(outcome.Validation)
	}
	return s.afterPostWrite(ctx, outcome.PostID)
}

// afterPostWrite reloads the stored post and refreshes the search index.
func (s *Service) afterPostWrite(ctx context.Context, id string) (PostView, error) {
	post, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return PostView{}, err
	}
	if s.search != nil {
		content, cerr := richtext.Deserialize(post.Body)
		if cerr == nil {
			s.search.IndexPost(search.PostRecord{
				ID:       post.ID,
				Title:    post.Title,
				Body:     richtext.PlainText(content),
				Category: post.Category,
				AuthorID: post.AuthorID,
			})
		}
	}
	return s.postView(post, true)
}

// DeletePost removes a post. Owner or admin only.
func (s *Service) DeletePost(ctx context.Context, user identity.User, id string) error {
	post, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if !rbac.CanDeletePost(user, post.AuthorID) {
		return errForbidden()
	}
	if err := s.repo.DeletePost(ctx, id); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeletePost(id)
	}
	return nil
}

// draftFor returns the caller's draft slot, creating an empty one on first
// use. Callers must hold the slot's lock while touching the session.
func (s *Service) draftFor(user identity.User) *draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[user.ID]
	if !ok {
		d = &draft{session: authoring.NewSession(s.rules, s.repo, user.ID)}
		s.drafts[user.ID] = d
	}
	return d
}

// DraftView is the JSON shape of an authoring session.
type DraftView struct {
	State    authoring.State  `json:"state"`
	PostID   string           `json:"postId,omitempty"`
	Title    string           `json:"title"`
	Category string           `json:"category"`
	Blocks   []richtext.Block `json:"blocks"`
	Error    string           `json:"error,omitempty"`
}

func draftView(session *authoring.Session) DraftView {
	view := DraftView{
		State:    session.State(),
		PostID:   session.PostID(),
		Title:    session.Title(),
		Category: session.Category(),
		Blocks:   session.Body().Blocks,
	}
	if view.Blocks == nil {
		view.Blocks = []richtext.Block{}
	}
	if err := session.LastError(); err != nil {
		view.Error = err.Error()
	}
	return view
}

// Draft returns the caller's current draft.
func (s *Service) Draft(user identity.User) (DraftView, error) {
	if !rbac.Can(user.Role, rbac.ActionWrite) {
		return DraftView{}, errForbidden()
	}
	d := s.draftFor(user)
	d.mu.Lock()
	defer d.mu.Unlock()
	return draftView(d.session), nil
}

// DraftInput carries a partial draft update. Nil fields stay untouched.
type DraftInput struct {
	Title    *string           `json:"title"`
	Category *string           `json:"category"`
	Blocks   *[]richtext.Block `json:"blocks"`
}

// UpdateDraft edits the caller's draft, starting a fresh one when none is in
// progress.
func (s *Service) UpdateDraft(user identity.User, in DraftInput) (DraftView, error) {
	if !rbac.Can(user.Role, rbac.ActionWrite) {
		return DraftView{}, errForbidden()
	}
	d := s.draftFor(user)
	d.mu.Lock()
	defer d.mu.Unlock()
	session := d.session
	if session.State() == authoring.StateEmpty || session.State() == authoring.StateCommitted {
		session.StartNew()
	}
	if in.Title != nil {
		session.SetTitle(*in.Title)
	}
	if in.Category != nil {
		session.SetCategory(*in.Category)
	}
	if in.Blocks != nil {
		session.SetBody(richtext.Content{Blocks: *in.Blocks})
	}
	return draftView(session), nil
}

// EditDraft seeds the caller's draft from a stored post.
func (s *Service) EditDraft(ctx context.Context, user identity.User, postID string) (DraftView, error) {
	post, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return DraftView{}, err
	}
	if !rbac.CanEditPost(user, post.AuthorID) {
		return DraftView{}, errForbidden()
	}
	d := s.draftFor(user)
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.session.StartEdit(post); err != nil {
		return DraftView{}, domainError(http.StatusBadRequest, "INVALID_CONTENT",
			"Stored content could not be read; starting from an empty draft", nil)
	}
	return draftView(d.session), nil
}

// StyleInput selects a span and the style or block kind to toggle.
type StyleInput struct {
	Selection authoring.Selection `json:"selection"`
	Style     richtext.Style      `json:"style,omitempty"`
	Kind      richtext.BlockKind  `json:"kind,omitempty"`
}

// ToggleDraftStyle toggles an inline style across the selection.
func (s *Service) ToggleDraftStyle(user identity.User, in StyleInput) (DraftView, error) {
	if !rbac.Can(user.Role, rbac.ActionWrite) {
		return DraftView{}, errForbidden()
	}
	d := s.draftFor(user)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session.Select(in.Selection)
	if in.Kind != "" {
		d.session.ToggleBlockKind(in.Kind)
	} else {
		d.session.ToggleInlineStyle(in.Style)
	}
	return draftView(d.session), nil
}

// SubmitDraft validates and persists the caller's draft.
func (s *Service) SubmitDraft(ctx context.Context, user identity.User) (PostView, error) {
	if !rbac.Can(user.Role, rbac.ActionWrite) {
		return PostView{}, errForbidden()
	}
	d := s.draftFor(user)
	d.mu.Lock()
	defer d.mu.Unlock()
	outcome, err := d.session.Submit(ctx)
	if err != nil {
		return PostView{}, err
	}
	if !outcome.Validation.Valid() {
		return PostView{}, validationFailed(outcome.Validation)
	}
	return s.afterPostWrite(ctx, outcome.PostID)
}

// CancelDraft abandons the caller's draft.
func (s *Service) CancelDraft(user identity.User) error {
	if !rbac.Can(user.Role, rbac.ActionWrite) {
		return errForbidden()
	}
	d := s.draftFor(user)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session.Cancel()
	return nil
}

// CommentView is the JSON shape of a comment.
type CommentView struct {
	ID          string     `json:"id"`
	PostID      string     `json:"postId"`
	AuthorID    string     `json:"uid"`
	DisplayName string     `json:"author"`
	Body        string     `json:"content"`
	CreatedAt   time.Time  `json:"timestamp"`
	EditedAt    *time.Time `json:"editedAt,omitempty"`
}

func commentView(c posts.Comment) CommentView {
	return CommentView{
		ID:          c.ID,
		PostID:      c.PostID,
		AuthorID:    c.AuthorID,
		DisplayName: c.DisplayName,
		Body:        c.Body,
		CreatedAt:   c.CreatedAt,
		EditedAt:    c.EditedAt,
	}
}

// ListComments returns a post's comments, newest first.
func (s *Service) ListComments(ctx context.Context, postID string) ([]CommentView, error) {
	list, err := s.repo.ListComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	views := make([]CommentView, 0, len(list))
	for _, c := range list {
		views = append(views, commentView(c))
	}
	return views, nil
}

// AddComment posts a comment on behalf of the caller.
func (s *Service) AddComment(ctx context.Context, user identity.User, postID, displayName, body string) (CommentView, error) {
	if !rbac.Can(user.Role, rbac.ActionComment) {
		return CommentView{}, errForbidden()
	}
	// The post must exist before the ledger touches its counter.
	if _, err := s.repo.GetPost(ctx, postID); err != nil {
		return CommentView{}, err
	}
	comment, err := s.ledger.AddComment(ctx, user, postID, displayName, body)
	if err != nil {
		return CommentView{}, err
	}
	return commentView(comment), nil
}

// EditComment rewrites a comment body.
func (s *Service) EditComment(ctx context.Context, user identity.User, commentID, body string) (CommentView, error) {
	comment, err := s.repo.GetComment(ctx, commentID)
	if err != nil {
		return CommentView{}, err
	}
	edited, err := s.ledger.EditComment(ctx, user, comment, body)
	if err != nil {
		return CommentView{}, err
	}
	return commentView(edited), nil
}

// DeleteComment removes a comment and fixes the post counter.
func (s *Service) DeleteComment(ctx context.Context, user identity.User, commentID string) error {
	comment, err := s.repo.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	return s.ledger.DeleteComment(ctx, user, comment)
}

// PollOptionView is one poll option with its computed share.
type PollOptionView struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Votes      int64   `json:"votes"`
	Percentage float64 `json:"percentage"`
}

// PollResultsView is the JSON shape of a poll. Results come sorted by votes;
// HasVoted is computed for the requesting fingerprint.
type PollResultsView struct {
	ID         string           `json:"id"`
	Question   string           `json:"question"`
	Options    []PollOptionView `json:"options"`
	TotalVotes int64            `json:"totalVotes"`
	HasVoted   bool             `json:"hasVoted"`
}

func pollResults(poll posts.Poll, fp string) PollResultsView {
	total := poll.TotalVotes()
	sorted := ledger.SortedOptions(&poll)
	options := make([]PollOptionView, 0, len(sorted))
	for _, opt := range sorted {
		options = append(options, PollOptionView{
			ID:         opt.ID,
			Text:       opt.Text,
			Votes:      opt.Votes,
			Percentage: ledger.Percentage(opt.Votes, total),
		})
	}
	return PollResultsView{
		ID:         poll.ID,
		Question:   poll.Question,
		Options:    options,
		TotalVotes: total,
		HasVoted:   poll.HasVoted(fp),
	}
}

// GetPoll returns poll results for one fingerprint.
func (s *Service) GetPoll(ctx context.Context, pollID, fp string) (PollResultsView, error) {
	poll, err := s.repo.GetPoll(ctx, pollID)
	if err != nil {
		return PollResultsView{}, err
	}
	return pollResults(poll, fp), nil
}

// PollInput is the request body for creating a poll.
type PollInput struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// CreatePoll creates an anonymous poll. Writers and admins only.
func (s *Service) CreatePoll(ctx context.Context, user identity.User, in PollInput) (PollResultsView, error) {
	if !rbac.Can(user.Role, rbac.ActionWrite) {
		return PollResultsView{}, errForbidden()
	}
	if in.Question == "" || len(in.Options) < 2 {
		return PollResultsView{}, domainError(http.StatusUnprocessableEntity, "INVALID_POLL",
			"A poll needs a question and at least two options", nil)
	}
	options := make([]posts.PollOption, 0, len(in.Options))
	for i, text := range in.Options {
		options = append(options, posts.PollOption{
			ID:   fmt.Sprintf("opt%d", i+1),
			Text: text,
		})
	}
	id, err := s.repo.CreatePoll(ctx, in.Question, options)
	if err != nil {
		return PollResultsView{}, err
	}
	poll, err := s.repo.GetPoll(ctx, id)
	if err != nil {
		return PollResultsView{}, err
	}
	return pollResults(poll, ""), nil
}

// CastVote records one anonymous vote and returns the updated results.
func (s *Service) CastVote(ctx context.Context, pollID, optionID, fp string) (PollResultsView, error) {
	poll, err := s.repo.GetPoll(ctx, pollID)
	if err != nil {
		return PollResultsView{}, err
	}
	if err := s.ledger.CastVote(ctx, &poll, optionID, fp); err != nil {
		return PollResultsView{}, err
	}
	return pollResults(poll, fp), nil
}

// ToggleBookmark flips the caller's bookmark on a post.
func (s *Service) ToggleBookmark(ctx context.Context, user identity.User, postID string) (bool, error) {
	post, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return false, err
	}
	return s.ledger.ToggleBookmark(ctx, &post, user.ID)
}

// RecordView counts a view once per client fingerprint.
func (s *Service) RecordView(ctx context.Context, postID, clientKey string) (bool, error) {
	if _, err := s.repo.GetPost(ctx, postID); err != nil {
		return false, err
	}
	return s.ledger.RecordView(ctx, postID, s.views.Client(clientKey))
}

// Search runs a full-text query over posts.
func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(ctx, q)
}

// Export renders a post to a downloadable file.
func (s *Service) Export(ctx context.Context, req export.Request) (*export.Result, error) {
	return s.export.Export(ctx, req)
}

func errForbidden() *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func validationFailed(result validate.Result) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_FAILED",
		result.Message, map[string]any{"kind": result.Kind})
}
