package store

import (
	"context"
	"slices"
	"sync"
)

// Memory keeps documents in process memory. Used in development and tests.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.docs[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(body), true, nil
}

func (m *Memory) Set(_ context.Context, key string, body []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = slices.Clone(body)
	return nil
}

func (m *Memory) Close() error { return nil }

var _ DocumentStore = (*Memory)(nil)
