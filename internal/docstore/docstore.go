// Package docstore adapts schema-less document stores to the narrow surface
// the sync engine needs: keyed merge-writes, deletes and full scans.
package docstore

import (
	"context"
	"errors"
)

// ErrStopStream may be returned by a Stream callback to end the scan early
// without reporting an error.
var ErrStopStream = errors.New("stop stream")

// Document is one stored document. Fields never include the key.
type Document struct {
	ID     string
	Fields map[string]any
}

// Store is implemented by every document store backend.
type Store interface {
	// Merge creates the document or merges fields into it, leaving other
	// fields untouched.
	Merge(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete removes the document. Missing documents are not an error.
	Delete(ctx context.Context, collection, id string) error
	// Stream calls fn for every document in the collection. Field values
	// are normalized to plain Go types (time.Time, string, int64, float64,
	// bool, map[string]any, []any).
	Stream(ctx context.Context, collection string, fn func(Document) error) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
