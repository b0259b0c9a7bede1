package ledger

import (
	"context"

	"inkwell/api/internal/docstore"
	"inkwell/api/internal/posts"
)

// ToggleBookmark flips the user's membership in the post's savedBy set. The
// remote write is a single atomic set-add or set-remove, never a full-set
// overwrite, so concurrent bookmarkers can't clobber each other. On failure
// the local flip is reverted. Returns whether the post ended up bookmarked.
func (l *Ledger) ToggleBookmark(ctx context.Context, post *posts.Post, userID string) (bool, error) {
	snapshot := post.SavedBy
	bookmarked := false
	for _, id := range snapshot {
		if id == userID {
			bookmarked = true
			break
		}
	}

	var update docstore.FieldUpdate
	if bookmarked {
		kept := make([]string, 0, len(snapshot))
		for _, id := range snapshot {
			if id != userID {
				kept = append(kept, id)
			}
		}
		post.SavedBy = kept
		update = docstore.ArrayRemove(posts.FieldSavedBy, userID)
	} else {
		post.SavedBy = append(append([]string(nil), snapshot...), userID)
		update = docstore.ArrayUnion(posts.FieldSavedBy, userID)
	}

	if err := l.gateway.UpdateFields(ctx, posts.CollectionPosts, post.ID, update); err != nil {
		post.SavedBy = snapshot
		return bookmarked, err
	}
	return !bookmarked, nil
}
