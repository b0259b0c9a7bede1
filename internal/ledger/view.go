package ledger

import (
	"context"
	"fmt"

	"inkwell/api/internal/docstore"
	"inkwell/api/internal/posts"
)

// ViewLedger is the client-local set of post ids already counted by this
// client. It is a dedup aid, not authoritative state: clearing it or viewing
// from another device legitimately counts again.
type ViewLedger interface {
	Contains(postID string) bool
	Add(postID string) error
}

// RecordView counts a post view at most once per client. A post already in
// the client ledger is a no-op. Otherwise the remote counter is incremented
// by exactly one and the post is marked locally. Returns whether a view was
// counted.
func (l *Ledger) RecordView(ctx context.Context, postID string, views ViewLedger) (bool, error) {
	if views.Contains(postID) {
		return false, nil
	}

	err := l.gateway.UpdateFields(ctx, posts.CollectionPosts, postID,
		docstore.Increment(posts.FieldViewCount, 1))
	if err != nil {
		return false, err
	}

	if err := views.Add(postID); err != nil {
		// The remote count already moved; a failed local mark only risks one
		// extra count from this client later.
		return true, fmt.Errorf("mark post %s viewed: %w", postID, err)
	}
	return true, nil
}
