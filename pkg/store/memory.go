package store

import (
	"context"

	"github.com/benmeehan/rendezvous-agent/pkg/geo"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// MemoryStore keeps documents in process. It backs local demos and tests.
type MemoryStore struct {
	collection string
	documents  cmap.ConcurrentMap[string, map[string]any]
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(collection string) *MemoryStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &MemoryStore{
		collection: collection,
		documents:  cmap.New[map[string]any](),
	}
}

// Get returns the coordinate stored under key.
func (m *MemoryStore) Get(ctx context.Context, key string) (geo.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return geo.Coordinate{}, err
	}
	doc, ok := m.documents.Get(documentPath(m.collection, key))
	if !ok {
		return geo.Coordinate{}, ErrDocumentNotFound
	}
	return DecodeDocument(doc)
}

// Set replaces the document stored under key.
func (m *MemoryStore) Set(ctx context.Context, key string, coord geo.Coordinate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.documents.Set(documentPath(m.collection, key), EncodeDocument(coord))
	return nil
}

// PutDocument stores a raw document without validation.
func (m *MemoryStore) PutDocument(key string, doc map[string]any) {
	m.documents.Set(documentPath(m.collection, key), doc)
}

// Delete removes the document stored under key.
func (m *MemoryStore) Delete(key string) {
	m.documents.Remove(documentPath(m.collection, key))
}
