package store

import (
	"context"
	"maps"
	"sync"
)

// Memory is an in-process Store for tests and local runs.
type Memory struct {
	mu    sync.RWMutex
	items map[string]Record
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]Record)}
}

func (m *Memory) Get(_ context.Context, key string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return maps.Clone(rec), nil
}

func (m *Memory) Put(_ context.Context, key string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = maps.Clone(rec)
	return nil
}
