package storage

import (
	"context"
	"sync"

	"shelfsync/internal/catalog"
)

// MapStore is an in-memory Storage implementation for tests. Lookups are
// tracked so tests can assert how often resolution hit the store.
type MapStore struct {
	mu      sync.RWMutex
	links   map[string]string
	err     error
	Lookups int
}

// NewMapStore creates an empty in-memory store.
func NewMapStore() *MapStore {
	return &MapStore{links: make(map[string]string)}
}

// Add registers a filename to link mapping.
func (m *MapStore) Add(filename, link string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[filename] = link
}

// Fail makes every subsequent lookup return err.
func (m *MapStore) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FindShareLink implements Storage.
func (m *MapStore) FindShareLink(_ context.Context, ref catalog.ArtifactRef) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups++
	if m.err != nil {
		return "", m.err
	}
	return m.links[ref.Filename], nil
}
