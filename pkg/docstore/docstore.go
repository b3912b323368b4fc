// Package docstore defines the document-store contract the repositories are written against.
//
// A Store holds named collections of schemaless documents addressed by string id.
// Update supports three sentinel values that adapters must resolve atomically per
// document: ServerTimestamp, ArrayUnion and ArrayRemove.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Update when the target document does not exist.
var ErrNotFound = errors.New("docstore: document not found")

// Store is a connected document store.
type Store interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close() error
}

// Collection is a named set of documents.
type Collection interface {
	// NewID returns a fresh, unique document id.
	NewID() string
	// Get returns nil, nil when the document is absent.
	Get(ctx context.Context, id string) (*Snapshot, error)
	// Set creates or fully replaces a document.
	Set(ctx context.Context, id string, data map[string]any) error
	// Update merges top-level fields into an existing document.
	Update(ctx context.Context, id string, updates []Update) error
	// Delete removes a document; absent documents are not an error.
	Delete(ctx context.Context, id string) error
	All(ctx context.Context) ([]*Snapshot, error)
	Where(ctx context.Context, f Filter) ([]*Snapshot, error)
}

// Snapshot is a document read from the store.
type Snapshot struct {
	ID   string
	Data map[string]any
}

// DataTo decodes the document into v using its json tags.
func (s *Snapshot) DataTo(v any) error {
	raw, err := json.Marshal(s.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Update sets a single top-level field. Value may be a sentinel.
type Update struct {
	Path  string
	Value any
}

// Op is a query operator.
type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

// Filter selects documents whose Field matches Value under Op.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Eq is shorthand for an equality filter.
func Eq(field string, value any) Filter { return Filter{Field: field, Op: OpEqual, Value: value} }

// Contains is shorthand for an array-contains filter.
func Contains(field string, value any) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: value}
}

type serverTimestamp struct{}

// ServerTimestamp is replaced by the store's current time when written.
var ServerTimestamp any = serverTimestamp{}

// ArrayUnionOp adds elements to an array field, skipping those already present.
type ArrayUnionOp struct{ Elems []any }

// ArrayRemoveOp removes every occurrence of the elements from an array field.
type ArrayRemoveOp struct{ Elems []any }

func ArrayUnion(elems ...any) any  { return ArrayUnionOp{Elems: elems} }
func ArrayRemove(elems ...any) any { return ArrayRemoveOp{Elems: elems} }

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}
