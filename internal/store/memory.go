package store

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process store used for development and as the test
// fixture. Safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]string
	hub  *notifier
}

// NewMemory creates a memory store with every collection provisioned
func NewMemory() *Memory {
	data := make(map[string]map[string]string, len(Collections))
	for _, c := range Collections {
		data[c] = make(map[string]string)
	}
	return &Memory{data: data, hub: newNotifier()}
}

// Get returns the value for key, or ErrNotFound
func (m *Memory) Get(ctx context.Context, collection, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records, ok := m.data[collection]
	if !ok {
		return "", fmt.Errorf("unknown collection %q", collection)
	}
	value, ok := records[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set upserts the value for key
func (m *Memory) Set(ctx context.Context, collection, key, value string) error {
	m.mu.Lock()
	records, ok := m.data[collection]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown collection %q", collection)
	}
	records[key] = value
	m.mu.Unlock()

	m.hub.publish(Change{Collection: collection, Key: key, Op: OpPut})
	return nil
}

// Delete removes the key; deleting an absent key is a no-op
func (m *Memory) Delete(ctx context.Context, collection, key string) error {
	m.mu.Lock()
	records, ok := m.data[collection]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown collection %q", collection)
	}
	_, existed := records[key]
	delete(records, key)
	m.mu.Unlock()

	if existed {
		m.hub.publish(Change{Collection: collection, Key: key, Op: OpDelete})
	}
	return nil
}

// List returns a copy of every key/value pair in the collection
func (m *Memory) List(ctx context.Context, collection string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records, ok := m.data[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	out := make(map[string]string, len(records))
	for k, v := range records {
		out[k] = v
	}
	return out, nil
}

// Subscribe returns in-process change notifications for the named
// collections
func (m *Memory) Subscribe(collections ...string) (<-chan Change, func()) {
	return m.hub.subscribe(collections...)
}

// HealthCheck always succeeds for the memory backend
func (m *Memory) HealthCheck(ctx context.Context) error {
	return nil
}

// Close is a no-op for the memory backend
func (m *Memory) Close() error {
	return nil
}
