package posts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inkwell/api/internal/docstore"
)

// Repo reads and writes the domain collections through the gateway. All
// counter and set mutations live in the ledger package; Repo only does
// creates, reads and non-shared field updates.
type Repo struct {
	gateway docstore.Gateway
}

func NewRepo(gateway docstore.Gateway) *Repo {
	return &Repo{gateway: gateway}
}

func (r *Repo) CreatePost(ctx context.Context, post Post) (string, error) {
	now := post.PublishedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return r.gateway.CreateDocument(ctx, CollectionPosts, map[string]any{
		FieldTitle:        post.Title,
		FieldContent:      post.Body,
		FieldCategory:     post.Category,
		FieldAuthorID:     post.AuthorID,
		FieldPublishedAt:  docstore.FormatTime(now),
		FieldUpdatedAt:    docstore.FormatTime(now),
		FieldCommentCount: 0,
		FieldViewCount:    0,
		FieldSavedBy:      []string{},
	})
}

func (r *Repo) GetPost(ctx context.Context, id string) (Post, error) {
	doc, err := r.gateway.GetDocument(ctx, CollectionPosts, id)
	if err != nil {
		return Post{}, err
	}
	return postFromDocument(doc), nil
}

// UpdatePost rewrites the authored fields only. Comment count, view count
// and the savedBy set belong to the engagement ledger and stay untouched.
func (r *Repo) UpdatePost(ctx context.Context, id, title, body, category string) error {
	return r.gateway.UpdateFields(ctx, CollectionPosts, id,
		docstore.Set(FieldTitle, title),
		docstore.Set(FieldContent, body),
		docstore.Set(FieldCategory, category),
		docstore.Set(FieldUpdatedAt, docstore.FormatTime(time.Now())),
	)
}

func (r *Repo) DeletePost(ctx context.Context, id string) error {
	return r.gateway.DeleteDocument(ctx, CollectionPosts, id)
}

func (r *Repo) ListPosts(ctx context.Context) ([]Post, error) {
	docs, err := r.gateway.QueryByField(ctx, CollectionPosts, docstore.Query{
		OrderBy: FieldPublishedAt, Descending: true,
	})
	if err != nil {
		return nil, err
	}
	return postsFromDocuments(docs), nil
}

func (r *Repo) ListPostsByCategory(ctx context.Context, category string) ([]Post, error) {
	docs, err := r.gateway.QueryByField(ctx, CollectionPosts, docstore.Query{
		Field: FieldCategory, Value: category,
		OrderBy: FieldPublishedAt, Descending: true,
	})
	if err != nil {
		return nil, err
	}
	return postsFromDocuments(docs), nil
}

// ListSavedBy returns the posts a user has bookmarked.
func (r *Repo) ListSavedBy(ctx context.Context, userID string) ([]Post, error) {
	docs, err := r.gateway.QueryByField(ctx, CollectionPosts, docstore.Query{
		Field: FieldSavedBy, Value: userID, ArrayContains: true,
		OrderBy: FieldPublishedAt, Descending: true,
	})
	if err != nil {
		return nil, err
	}
	return postsFromDocuments(docs), nil
}

func (r *Repo) GetComment(ctx context.Context, id string) (Comment, error) {
	doc, err := r.gateway.GetDocument(ctx, CollectionComments, id)
	if err != nil {
		return Comment{}, err
	}
	return commentFromDocument(doc), nil
}

// ListComments returns a post's comments, newest first.
func (r *Repo) ListComments(ctx context.Context, postID string) ([]Comment, error) {
	docs, err := r.gateway.QueryByField(ctx, CollectionComments, docstore.Query{
		Field: FieldPostID, Value: postID,
		OrderBy: FieldCreatedAt, Descending: true,
	})
	if err != nil {
		return nil, err
	}
	comments := make([]Comment, 0, len(docs))
	for _, doc := range docs {
		comments = append(comments, commentFromDocument(doc))
	}
	return comments, nil
}

func (r *Repo) GetPoll(ctx context.Context, id string) (Poll, error) {
	doc, err := r.gateway.GetDocument(ctx, CollectionPolls, id)
	if err != nil {
		return Poll{}, err
	}
	return pollFromDocument(doc), nil
}

// CreatePoll stores a poll with zeroed counters. Option order is persisted
// so tie-breaks stay stable forever.
func (r *Repo) CreatePoll(ctx context.Context, question string, options []PollOption) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("poll needs at least one option")
	}
	order := make([]string, len(options))
	fields := map[string]any{
		FieldQuestion: question,
		FieldVotedBy:  []string{},
	}
	for i, opt := range options {
		order[i] = opt.ID
		fields[textFieldPrefix+opt.ID] = opt.Text
		fields[voteFieldPrefix+opt.ID] = opt.Votes
	}
	fields[FieldOptionOrder] = strings.Join(order, ",")
	return r.gateway.CreateDocument(ctx, CollectionPolls, fields)
}

func pollFromDocument(doc docstore.Document) Poll {
	poll := Poll{
		ID:       doc.ID,
		Question: doc.String(FieldQuestion),
		VotedBy:  doc.StringSlice(FieldVotedBy),
	}
	order := doc.String(FieldOptionOrder)
	if order == "" {
		return poll
	}
	for _, optionID := range strings.Split(order, ",") {
		poll.Options = append(poll.Options, PollOption{
			ID:    optionID,
			Text:  doc.String(textFieldPrefix + optionID),
			Votes: doc.Int(voteFieldPrefix + optionID),
		})
	}
	return poll
}

func postsFromDocuments(docs []docstore.Document) []Post {
	posts := make([]Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, postFromDocument(doc))
	}
	return posts
}
