// Package docstore defines the remote document store boundary: key-addressed
// documents with atomic field primitives (increment, set-add, set-remove).
// Shared counters and sets are only ever touched through those primitives,
// never by whole-document overwrite, so concurrent clients merge instead of
// clobbering each other.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports a missing document.
var ErrNotFound = errors.New("docstore: document not found")

// ErrPermission reports a store-side permission rejection. It is fatal to the
// operation and never retried.
var ErrPermission = errors.New("docstore: permission denied")

// NetworkError wraps a transient transport failure. Callers may retry
// manually; nothing retries automatically.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("docstore: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Document is a stored record: an id plus a flat field map. Array-valued
// fields decode as []string, numbers as int64, timestamps as RFC 3339
// strings.
type Document struct {
	ID     string
	Fields map[string]any
}

type updateOp int

const (
	opSet updateOp = iota
	opIncrement
	opArrayUnion
	opArrayRemove
)

// FieldUpdate is one atomic mutation of a single document field. Construct
// values with Set, Increment, ArrayUnion or ArrayRemove.
type FieldUpdate struct {
	Field string
	op    updateOp
	value any
	delta int64
}

// Set overwrites a non-shared field.
func Set(field string, value any) FieldUpdate {
	return FieldUpdate{Field: field, op: opSet, value: value}
}

// Increment atomically adds delta to a numeric field, treating a missing
// field as zero.
func Increment(field string, delta int64) FieldUpdate {
	return FieldUpdate{Field: field, op: opIncrement, delta: delta}
}

// ArrayUnion atomically adds value to a set-valued field if absent.
func ArrayUnion(field, value string) FieldUpdate {
	return FieldUpdate{Field: field, op: opArrayUnion, value: value}
}

// ArrayRemove atomically removes value from a set-valued field.
func ArrayRemove(field, value string) FieldUpdate {
	return FieldUpdate{Field: field, op: opArrayRemove, value: value}
}

// Query selects documents by a single field predicate.
type Query struct {
	Field         string
	Value         any
	ArrayContains bool // match set membership instead of equality
	OrderBy       string
	Descending    bool
	Limit         int
}

// Gateway is the capability set the application consumes. All calls may fail
// with ErrNotFound, ErrPermission or a *NetworkError; no call is atomic
// across more than one document.
type Gateway interface {
	GetDocument(ctx context.Context, collection, id string) (Document, error)
	CreateDocument(ctx context.Context, collection string, fields map[string]any) (string, error)
	// UpdateFields applies every update in one atomic call against a single
	// document.
	UpdateFields(ctx context.Context, collection, id string, updates ...FieldUpdate) error
	DeleteDocument(ctx context.Context, collection, id string) error
	QueryByField(ctx context.Context, collection string, q Query) ([]Document, error)
}

// String returns a string field, or "" when absent.
func (d Document) String(field string) string {
	s, _ := d.Fields[field].(string)
	return s
}

// Int returns a numeric field, or 0 when absent.
func (d Document) Int(field string) int64 {
	switch v := d.Fields[field].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// StringSlice returns a set-valued field, or nil when absent.
func (d Document) StringSlice(field string) []string {
	switch v := d.Fields[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// TimeLayout is the stored timestamp form. The fractional second stays fixed
// width so lexicographic order over stored strings equals chronological
// order, which Query.OrderBy relies on.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders a timestamp in TimeLayout, normalized to UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Time parses an RFC 3339 timestamp field, or returns the zero time.
func (d Document) Time(field string) time.Time {
	s := d.String(field)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
