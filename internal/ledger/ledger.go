// Package ledger applies the concurrency-sensitive engagement mutations:
// poll votes, bookmarks, view counts and comment moderation. Every operation
// follows the same two-phase shape: apply the change optimistically to the
// caller's local copy, issue one gateway call, then confirm or roll the
// local copy back. Nothing here retries on its own.
package ledger

import (
	"errors"

	"inkwell/api/internal/docstore"
	"inkwell/api/internal/validate"
)

var (
	// ErrAlreadyVoted reports a duplicate fingerprint. The duplicate call is
	// a local no-op and never reaches the network.
	ErrAlreadyVoted = errors.New("ledger: already voted")
	// ErrUnknownOption reports a vote for an option the poll doesn't have.
	ErrUnknownOption = errors.New("ledger: unknown poll option")
	// ErrNotAllowed reports a moderation permission rejection. Never retried.
	ErrNotAllowed = errors.New("ledger: not allowed")
)

// ValidationError carries a failed comment validation back to the caller.
// It is local and user-correctable; nothing was persisted.
type ValidationError struct {
	Result validate.Result
}

func (e *ValidationError) Error() string {
	return "ledger: " + e.Result.Message
}

// Ledger issues engagement mutations through the document store gateway.
type Ledger struct {
	gateway      docstore.Gateway
	commentRules validate.CommentRules
}

func New(gateway docstore.Gateway, commentRules validate.CommentRules) *Ledger {
	return &Ledger{gateway: gateway, commentRules: commentRules}
}
