// Package driver holds the storage backends the cart snapshot is persisted to.
package driver

import (
	"context"
	"sync"
)

// KeyValueStore is the durable string key-value API the cart needs.
type KeyValueStore interface {
	// Get returns the value stored under key. found is false when the key has
	// never been written or was removed.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set overwrites the value stored under key.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

var _ KeyValueStore = (*MemoryStore)(nil)

// MemoryStore keeps values in process memory. Contents do not survive a
// restart.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[key]
	return value, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}
