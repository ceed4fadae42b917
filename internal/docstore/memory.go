package docstore

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
)

// Memory is an in-process Store for tests and local development.
type Memory struct {
	mu      sync.Mutex
	data    map[string]map[string]map[string]any
	merges  int
	deletes int

	// MergeErr and DeleteErr, when set, fail the next calls.
	MergeErr  error
	DeleteErr error
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: map[string]map[string]map[string]any{}}
}

func (m *Memory) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MergeErr != nil {
		return m.MergeErr
	}
	docs, ok := m.data[collection]
	if !ok {
		docs = map[string]map[string]any{}
		m.data[collection] = docs
	}
	doc, ok := docs[id]
	if !ok {
		doc = map[string]any{}
		docs[id] = doc
	}
	maps.Copy(doc, fields)
	m.merges++
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.data[collection], id)
	m.deletes++
	return nil
}

// Stream visits documents in id order over a snapshot of the collection.
func (m *Memory) Stream(ctx context.Context, collection string, fn func(Document) error) error {
	m.mu.Lock()
	docs := make([]Document, 0, len(m.data[collection]))
	for _, id := range slices.Sorted(maps.Keys(m.data[collection])) {
		docs = append(docs, Document{ID: id, Fields: maps.Clone(m.data[collection][id])})
	}
	m.mu.Unlock()

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			if errors.Is(err, ErrStopStream) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close(ctx context.Context) error { return nil }

// Put seeds a document without counting it as a write.
func (m *Memory) Put(collection, id string, fields map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[collection] == nil {
		m.data[collection] = map[string]map[string]any{}
	}
	m.data[collection][id] = maps.Clone(fields)
}

// Get returns a copy of a document.
func (m *Memory) Get(collection, id string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.data[collection][id]
	return maps.Clone(doc), ok
}

// Writes returns the number of successful merges and deletes.
func (m *Memory) Writes() (merges, deletes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.merges, m.deletes
}
