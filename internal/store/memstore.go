package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe in-memory document engine. When a Persistence is
// attached every mutation of a collection is written back to disk before the
// call returns.
type MemStore struct {
	mu sync.RWMutex
	// Structure: [collection][id]document
	data      map[string]map[string]Document
	persister *Persistence
	newID     func() string
}

// NewMemStore initializes a store from existing data (as returned by
// Persistence.LoadAll) and an optional persister.
func NewMemStore(initialData map[string]map[string]Document, p *Persistence) *MemStore {
	if initialData == nil {
		initialData = make(map[string]map[string]Document)
	}
	return &MemStore{
		data:      initialData,
		persister: p,
		newID:     uuid.NewString,
	}
}

// OpenMemStore loads every collection found in dir and returns a MemStore
// persisting back to it.
func OpenMemStore(dir string) (*MemStore, error) {
	p, err := NewPersistence(dir)
	if err != nil {
		return nil, err
	}
	data, err := p.LoadAll()
	if err != nil {
		return nil, err
	}
	return NewMemStore(data, p), nil
}

func (m *MemStore) Add(ctx context.Context, collection string, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := m.newID()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.collection(collection)[id] = clone(doc)
	if err := m.persist(collection); err != nil {
		return "", err
	}
	return id, nil
}

func (m *MemStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(doc), nil
}

func (m *MemStore) Put(ctx context.Context, collection, id string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.collection(collection)[id] = clone(doc)
	return m.persist(collection)
}

func (m *MemStore) Update(ctx context.Context, collection, id string, fields Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.data[collection][id]
	if !ok {
		return ErrNotFound
	}
	merged := clone(existing)
	for k, v := range clone(fields) {
		merged[k] = v
	}
	m.data[collection][id] = merged
	return m.persist(collection)
}

func (m *MemStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	docs, ok := m.data[collection]
	if !ok {
		return nil
	}
	if _, ok := docs[id]; !ok {
		return nil
	}
	delete(docs, id)
	return m.persist(collection)
}

func (m *MemStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for id, doc := range m.data[collection] {
		if Matches(doc, filters) {
			out = append(out, Record{ID: id, Data: clone(doc)})
		}
	}
	return out, nil
}

// Close is a no-op; every mutation is already persisted.
func (m *MemStore) Close() error {
	return nil
}

// collection returns the map for a collection, creating it if needed.
// It MUST be called while holding m.mu.Lock.
func (m *MemStore) collection(name string) map[string]Document {
	docs, ok := m.data[name]
	if !ok {
		docs = make(map[string]Document)
		m.data[name] = docs
	}
	return docs
}

// copyCollection creates a copy of a collection for persistence.
// It MUST be called while holding m.mu.Lock.
func (m *MemStore) copyCollection(name string) map[string]Document {
	original := m.data[name]
	out := make(map[string]Document, len(original))
	for id, doc := range original {
		out[id] = clone(doc)
	}
	return out
}

// persist writes the current state of a collection to disk. It MUST be
// called while holding m.mu.Lock so that writes land in mutation order.
func (m *MemStore) persist(collection string) error {
	if m.persister == nil {
		return nil
	}
	return m.persister.SaveCollection(collection, m.copyCollection(collection))
}
