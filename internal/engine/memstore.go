package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/celerix-dev/celerix-crm/pkg/sdk"
)

// MemStore is a thread-safe in-memory store with optional file persistence.
// Writes reach disk before they become visible in memory, so a failed
// persist leaves the previous value in place.
type MemStore struct {
	mu        sync.RWMutex
	data      map[string][]byte
	persister *Persistence
}

// NewMemStore initializes a store.
// It accepts existing data (from LoadAll) and a persister; both may be nil.
func NewMemStore(initialData map[string][]byte, p *Persistence) *MemStore {
	if initialData == nil {
		initialData = make(map[string][]byte)
	}
	return &MemStore{
		data:      initialData,
		persister: p,
	}
}

// --- Interface Implementation ---

func (m *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	val, ok := m.data[key]
	if !ok {
		return nil, sdk.ErrKeyNotFound
	}
	return cloneBytes(val), nil
}

func (m *MemStore) Set(_ context.Context, key string, val []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.persister != nil {
		if err := m.persister.SaveKey(key, val); err != nil {
			return err
		}
	}
	m.data[key] = cloneBytes(val)
	return nil
}

func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[key]; !ok {
		return nil
	}
	if m.persister != nil {
		if err := m.persister.RemoveKey(key); err != nil {
			return err
		}
	}
	delete(m.data, key)
	return nil
}

func (m *MemStore) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]string, 0, len(m.data))
	for k := range m.data {
		list = append(list, k)
	}
	sort.Strings(list)
	return list, nil
}

func (m *MemStore) Dump(_ context.Context) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to prevent external mutation of the internal map
	out := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		out[k] = cloneBytes(v)
	}
	return out, nil
}

// Close is a no-op: every write is already on disk when Set returns.
func (m *MemStore) Close() error {
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
