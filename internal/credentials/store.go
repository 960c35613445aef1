// Package credentials keeps the remote account session at rest.
package credentials

import (
	"context"
	"sync"
)

// Keys under which the session is stored.
const (
	KeyUsername = "username"
	KeyToken    = "token"
)

// Store is a small secret key/value store.
// Load reports ok=false for an absent key; that is not an error.
type Store interface {
	Save(ctx context.Context, key, value string) error
	Load(ctx context.Context, key string) (value string, ok bool, err error)
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps secrets in process memory. Used by tests and the
// memory store backend.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Save(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Load(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
