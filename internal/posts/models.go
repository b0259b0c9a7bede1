// Package posts holds the persistent domain model: posts, comments and
// polls, stored as documents behind the docstore gateway.
package posts

import (
	"time"

	"inkwell/api/internal/docstore"
)

// Collections in the document store.
const (
	CollectionPosts    = "posts"
	CollectionComments = "comments"
	CollectionPolls    = "polls"
)

// Post field names. Counters and the savedBy set are only ever mutated
// through atomic field primitives.
const (
	FieldTitle        = "title"
	FieldContent      = "content"
	FieldCategory     = "category"
	FieldAuthorID     = "userId"
	FieldPublishedAt  = "publishedAt"
	FieldUpdatedAt    = "updatedAt"
	FieldCommentCount = "commentCount"
	FieldViewCount    = "viewCount"
	FieldSavedBy      = "savedBy"
)

// Comment field names.
const (
	FieldPostID      = "postId"
	FieldCommentUID  = "uid"
	FieldDisplayName = "author"
	FieldCommentBody = "content"
	FieldCreatedAt   = "timestamp"
	FieldEditedAt    = "editedAt"
)

// Poll field names. Option counters are flat fields ("votes:<optionId>") so
// each one can be incremented atomically.
const (
	FieldQuestion    = "question"
	FieldOptionOrder = "optionOrder"
	FieldVotedBy     = "votedBy"

	voteFieldPrefix = "votes:"
	textFieldPrefix = "text:"
)

// VoteField names the counter field for one poll option.
func VoteField(optionID string) string {
	return voteFieldPrefix + optionID
}

// Categories is the fixed category set posts may carry.
var Categories = []string{
	"technology",
	"science",
	"travel",
	"lifestyle",
	"books",
	"projects",
}

func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Post is a published entry. Body holds the serialized rich content.
type Post struct {
	ID           string
	Title        string
	Body         string
	Category     string
	AuthorID     string
	PublishedAt  time.Time
	UpdatedAt    time.Time
	CommentCount int64
	ViewCount    int64
	SavedBy      []string
}

// Comment is a plain-text reader comment on a post.
type Comment struct {
	ID          string
	PostID      string
	AuthorID    string
	DisplayName string
	Body        string
	CreatedAt   time.Time
	EditedAt    *time.Time
}

// PollOption keeps its insertion position; rendering sorts by votes but
// breaks ties in this order.
type PollOption struct {
	ID    string
	Text  string
	Votes int64
}

// Poll is an anonymous vote: VotedBy carries device fingerprints, not user
// ids.
type Poll struct {
	ID       string
	Question string
	Options  []PollOption
	VotedBy  []string
}

// HasVoted reports whether a fingerprint already voted.
func (p *Poll) HasVoted(fingerprint string) bool {
	for _, f := range p.VotedBy {
		if f == fingerprint {
			return true
		}
	}
	return false
}

// TotalVotes sums all option counters.
func (p *Poll) TotalVotes() int64 {
	var total int64
	for _, opt := range p.Options {
		total += opt.Votes
	}
	return total
}

func postFromDocument(doc docstore.Document) Post {
	return Post{
		ID:           doc.ID,
		Title:        doc.String(FieldTitle),
		Body:         doc.String(FieldContent),
		Category:     doc.String(FieldCategory),
		AuthorID:     doc.String(FieldAuthorID),
		PublishedAt:  doc.Time(FieldPublishedAt),
		UpdatedAt:    doc.Time(FieldUpdatedAt),
		CommentCount: doc.Int(FieldCommentCount),
		ViewCount:    doc.Int(FieldViewCount),
		SavedBy:      doc.StringSlice(FieldSavedBy),
	}
}

func commentFromDocument(doc docstore.Document) Comment {
	comment := Comment{
		ID:          doc.ID,
		PostID:      doc.String(FieldPostID),
		AuthorID:    doc.String(FieldCommentUID),
		DisplayName: doc.String(FieldDisplayName),
		Body:        doc.String(FieldCommentBody),
		CreatedAt:   doc.Time(FieldCreatedAt),
	}
	if edited := doc.Time(FieldEditedAt); !edited.IsZero() {
		comment.EditedAt = &edited
	}
	return comment
}
