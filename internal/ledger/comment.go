package ledger

import (
	"context"
	"strings"
	"time"

	"inkwell/api/internal/docstore"
	"inkwell/api/internal/identity"
	"inkwell/api/internal/posts"
	"inkwell/api/internal/rbac"
	"inkwell/api/internal/validate"
)

// AddComment creates a comment and bumps the post's comment counter. The two
// writes hit different documents and are not transactional: a crash between
// them leaves the counter one behind, which the design accepts.
func (l *Ledger) AddComment(ctx context.Context, user identity.User, postID, displayName, body string) (posts.Comment, error) {
	if strings.TrimSpace(displayName) == "" {
		return posts.Comment{}, &ValidationError{Result: validate.Result{
			Kind: validate.AuthorMissing, Message: "Author is required!",
		}}
	}
	if result := validate.Comment(l.commentRules, strings.TrimSpace(body)); !result.Valid() {
		return posts.Comment{}, &ValidationError{Result: result}
	}

	now := time.Now().UTC()
	comment := posts.Comment{
		PostID:      postID,
		AuthorID:    user.ID,
		DisplayName: displayName,
		Body:        body,
		CreatedAt:   now,
	}
	id, err := l.gateway.CreateDocument(ctx, posts.CollectionComments, map[string]any{
		posts.FieldPostID:      postID,
		posts.FieldCommentUID:  user.ID,
		posts.FieldDisplayName: displayName,
		posts.FieldCommentBody: body,
		posts.FieldCreatedAt:   docstore.FormatTime(now),
	})
	if err != nil {
		return posts.Comment{}, err
	}
	comment.ID = id

	err = l.gateway.UpdateFields(ctx, posts.CollectionPosts, postID,
		docstore.Increment(posts.FieldCommentCount, 1))
	if err != nil {
		return posts.Comment{}, err
	}
	return comment, nil
}

// EditComment rewrites a comment's body. Only the comment's author or an
// admin may edit; the body is re-validated against the injected bounds and
// editedAt is stamped.
func (l *Ledger) EditComment(ctx context.Context, user identity.User, comment posts.Comment, body string) (posts.Comment, error) {
	if !rbac.CanModifyComment(user, comment.AuthorID) {
		return posts.Comment{}, ErrNotAllowed
	}
	if result := validate.Comment(l.commentRules, strings.TrimSpace(body)); !result.Valid() {
		return posts.Comment{}, &ValidationError{Result: result}
	}

	now := time.Now().UTC()
	err := l.gateway.UpdateFields(ctx, posts.CollectionComments, comment.ID,
		docstore.Set(posts.FieldCommentBody, body),
		docstore.Set(posts.FieldEditedAt, docstore.FormatTime(now)),
	)
	if err != nil {
		return posts.Comment{}, err
	}
	comment.Body = body
	comment.EditedAt = &now
	return comment, nil
}

// DeleteComment removes a comment and decrements the post's counter by
// exactly one. Permission matches EditComment: comment author or admin; a
// post's author cannot remove other users' comments from their post.
func (l *Ledger) DeleteComment(ctx context.Context, user identity.User, comment posts.Comment) error {
	if !rbac.CanModifyComment(user, comment.AuthorID) {
		return ErrNotAllowed
	}

	if err := l.gateway.DeleteDocument(ctx, posts.CollectionComments, comment.ID); err != nil {
		return err
	}
	return l.gateway.UpdateFields(ctx, posts.CollectionPosts, comment.PostID,
		docstore.Increment(posts.FieldCommentCount, -1))
}
