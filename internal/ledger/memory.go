package ledger

import (
	"context"
	"sync"
)

// Memory is an in-process Ledger. Its contents are lost on restart
type Memory[V any] struct {
	entries map[string]V
	mu      sync.Mutex
}

var _ Ledger[string] = (*Memory[string])(nil)

// NewMemory creates an empty in-memory Ledger
func NewMemory[V any]() *Memory[V] {
	return &Memory[V]{
		entries: map[string]V{},
	}
}

func (m *Memory[V]) Set(_ context.Context, key string, value V) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *Memory[V]) SetIfAbsent(
	_ context.Context, key string, value V,
) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		return false, nil
	}
	m.entries[key] = value
	return true, nil
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory[V]) Dump(context.Context) ([]Record[V], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]Record[V], 0, len(m.entries))
	for k, v := range m.entries {
		res = append(res, Record[V]{Key: k, Value: v})
	}
	return res, nil
}

func (m *Memory[V]) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
	return nil
}
