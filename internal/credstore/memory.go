package credstore

import (
	"context"
	"sync"
)

// MemoryStore keeps credentials in process memory. Sessions held in a
// MemoryStore do not survive the process; it backs ephemeral (isolated)
// sessions and tests.
type MemoryStore struct {
	scope string

	mu     sync.RWMutex
	values map[string]string
}

// Compile-time check to ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore for the given scope.
func NewMemoryStore(scope string) *MemoryStore {
	return &MemoryStore{
		scope:  scope,
		values: make(map[string]string),
	}
}

// Get returns the stored credential, or ErrNotFound.
func (m *MemoryStore) Get(ctx context.Context, kind Kind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[storageKey(kind, m.scope)]
	if !ok || value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

// Set stores the credential, overwriting any existing value.
func (m *MemoryStore) Set(ctx context.Context, kind Kind, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[storageKey(kind, m.scope)] = value
	return nil
}

// Clear removes both credentials for this store's scope.
func (m *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, storageKey(KindAccess, m.scope))
	delete(m.values, storageKey(KindRefresh, m.scope))
	return nil
}

// Scope returns the storage partition this store operates on.
func (m *MemoryStore) Scope() string {
	return m.scope
}
