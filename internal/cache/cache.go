// Package cache holds freshness-bounded, cloud-sourced values the control
// loop reads every cycle but cannot afford to block on: the daemon keeps
// spot prices and solar forecasts here. The cloud-delivered power setpoint
// is not cached here; the decision engine holds the last one received.
package cache

import (
	"sync"
	"time"

	"github.com/lifo4/edge-controller/internal/domain"
)

// Manager is a generic, TTL-aware cache. Stale entries are not evicted
// automatically — Get reports staleness so callers decide whether to act on
// a stale value (e.g. fall back to the last-known price) or treat it as a
// miss.
type Manager[T any] struct {
	mu      sync.RWMutex
	entries map[string]domain.CacheEntry[T]
}

// NewManager creates an empty cache.
func NewManager[T any]() *Manager[T] {
	return &Manager[T]{entries: make(map[string]domain.CacheEntry[T])}
}

// Set stores value under key with the given TTL. A zero TTL means the
// entry never expires (used for sticky optimization config).
func (m *Manager[T]) Set(key string, value T, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = domain.CacheEntry[T]{Value: value, StoredAt: time.Now(), Expiry: ttl}
}

// Get returns the stored value, whether it is present at all, and whether
// it is still fresh. A present-but-stale value is still returned so callers
// can choose to use it as a fallback.
func (m *Manager[T]) Get(key string) (value T, present bool, fresh bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return value, false, false
	}
	return e.Value, true, e.Fresh(time.Now())
}

// GetFresh returns domain.ErrCacheMiss unless the key is present and fresh.
func (m *Manager[T]) GetFresh(key string) (T, error) {
	v, present, fresh := m.Get(key)
	if !present || !fresh {
		return v, domain.ErrCacheMiss
	}
	return v, nil
}

// Delete removes a key.
func (m *Manager[T]) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Len reports the number of entries currently stored, fresh or not.
func (m *Manager[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
