package counter

import (
	"context"
	"sync"
)

// MemoryStore keeps counters in process memory. It is the default for a
// single node without a database and for tests.
type MemoryStore struct {
	mu     sync.Mutex
	values map[Key]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[Key]int64)}
}

func (m *MemoryStore) Increment(_ context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key]++
	return m.values[key], nil
}

func (m *MemoryStore) Reset(_ context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		m.values[key] = 0
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}
