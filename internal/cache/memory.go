// Package cache provides the TTL key/value accelerator placed in front of the
// record store.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process TTL cache for values of type V. Each Put replaces
// the whole entry for its key.
type Memory[V any] struct {
	items      *gocache.Cache
	defaultTTL time.Duration
}

// NewMemory creates a cache whose entries default to ttl. Expired entries are
// purged every 2*ttl.
func NewMemory[V any](ttl time.Duration) *Memory[V] {
	return &Memory[V]{
		items:      gocache.New(ttl, ttl*2),
		defaultTTL: ttl,
	}
}

// Get returns the live value stored under key.
func (m *Memory[V]) Get(key string) (V, bool) {
	var zero V
	raw, found := m.items.Get(key)
	if !found {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// Put stores v under key for ttl; a non-positive ttl uses the default.
func (m *Memory[V]) Put(key string, v V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.items.Set(key, v, ttl)
}

// Evict removes key.
func (m *Memory[V]) Evict(key string) {
	m.items.Delete(key)
}

// Len reports the number of entries, including expired ones not yet purged.
func (m *Memory[V]) Len() int {
	return m.items.ItemCount()
}

// Flush removes every entry.
func (m *Memory[V]) Flush() {
	m.items.Flush()
}
