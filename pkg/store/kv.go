package store

import (
	"context"
	"errors"
	"sync"
)

// ErrQuotaExceeded is returned by a KV that has run out of space.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// KV is the persistent key/value surface the Store is built on.
// Implementations must be safe for concurrent use.
type KV interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// RemoveAll deletes every key for which match returns true and reports how many were removed.
	RemoveAll(ctx context.Context, match func(key string) bool) (int, error)
}

// Memory is an in-memory KV with an optional size quota.
type Memory struct {
	data  map[string]string
	quota int
	size  int
	mu    sync.RWMutex
}

// NewMemory creates an in-memory KV. A quota > 0 caps the total bytes of keys and
// values; writes beyond it fail with ErrQuotaExceeded.
func NewMemory(quota int) *Memory {
	return &Memory{data: make(map[string]string), quota: quota}
}

// Get implements KV.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set implements KV.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := m.size + len(key) + len(value)
	if old, ok := m.data[key]; ok {
		size -= len(key) + len(old)
	}
	if m.quota > 0 && size > m.quota {
		return ErrQuotaExceeded
	}
	m.data[key] = value
	m.size = size
	return nil
}

// RemoveAll implements KV.
func (m *Memory) RemoveAll(_ context.Context, match func(string) bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, v := range m.data {
		if match(k) {
			delete(m.data, k)
			m.size -= len(k) + len(v)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
