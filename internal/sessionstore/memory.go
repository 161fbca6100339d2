package sessionstore

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process backend for development and tests. TTL is
// enforced lazily on read.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	indexes map[string]map[string]struct{}

	// now is swappable in tests
	now func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		indexes: make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, ErrNotFound
	}
	return e.value, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) AddToIndex(_ context.Context, index, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexes[index] == nil {
		m.indexes[index] = make(map[string]struct{})
	}
	m.indexes[index][member] = struct{}{}
	return nil
}

func (m *Memory) RemoveFromIndex(_ context.Context, index, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.indexes[index]
	if !ok {
		return nil
	}
	delete(members, member)
	if len(members) == 0 {
		delete(m.indexes, index)
	}
	return nil
}

func (m *Memory) IndexMembers(_ context.Context, index string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members := make([]string, 0, len(m.indexes[index]))
	for member := range m.indexes[index] {
		members = append(members, member)
	}
	return members, nil
}

func (m *Memory) Close() error {
	return nil
}
