package ledger

import (
	"context"
	"math"
	"sort"

	"inkwell/api/internal/docstore"
	"inkwell/api/internal/posts"
)

// CastVote records one anonymous vote. A fingerprint that already voted is
// rejected locally with ErrAlreadyVoted before any network traffic. The
// counter increment and the fingerprint append travel in one atomic gateway
// call, so a crash cannot land one without the other.
func (l *Ledger) CastVote(ctx context.Context, poll *posts.Poll, optionID, fingerprint string) error {
	if poll.HasVoted(fingerprint) {
		return ErrAlreadyVoted
	}

	optionIndex := -1
	for i, opt := range poll.Options {
		if opt.ID == optionID {
			optionIndex = i
			break
		}
	}
	if optionIndex < 0 {
		return ErrUnknownOption
	}

	// Optimistic local apply.
	poll.Options[optionIndex].Votes++
	poll.VotedBy = append(poll.VotedBy, fingerprint)

	err := l.gateway.UpdateFields(ctx, posts.CollectionPolls, poll.ID,
		docstore.Increment(posts.VoteField(optionID), 1),
		docstore.ArrayUnion(posts.FieldVotedBy, fingerprint),
	)
	if err != nil {
		// Rollback to the pre-vote snapshot.
		poll.Options[optionIndex].Votes--
		poll.VotedBy = poll.VotedBy[:len(poll.VotedBy)-1]
		return err
	}
	return nil
}

// Percentage returns an option's share of the total, rounded to one decimal
// place. A poll with no votes reads 0 everywhere.
func Percentage(votes, totalVotes int64) float64 {
	if totalVotes == 0 {
		return 0
	}
	return math.Round(float64(votes)/float64(totalVotes)*1000) / 10
}

// SortedOptions returns options by descending vote count. Equal counts keep
// their insertion order, so the sort must be stable.
func SortedOptions(poll *posts.Poll) []posts.PollOption {
	sorted := make([]posts.PollOption, len(poll.Options))
	copy(sorted, poll.Options)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Votes > sorted[j].Votes
	})
	return sorted
}
