package cache

import (
	"sync"
	"time"
)

// entry is a stored value with its insertion time and time to live.
type entry struct {
	value      interface{}
	insertedAt time.Time
	ttl        time.Duration
}

// Memory is an in-process TTL cache shared by all concurrent screening
// tasks. Expiry is lazy: an entry past its TTL is removed on the next Get,
// there is no background sweeper. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// NewMemoryWithClock creates a cache with an injected clock, for tests.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Get returns the cached value for key and true if present and not expired.
// A miss is not an error, callers just re-fetch from the provider.
func (m *Memory) Get(key string) (interface{}, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if m.now().Sub(e.insertedAt) > e.ttl {
		m.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have
		// refreshed the entry between the two lock acquisitions.
		if cur, ok := m.entries[key]; ok && m.now().Sub(cur.insertedAt) > cur.ttl {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

// Set stores value under key for ttl. It always overwrites and resets the
// insertion time.
func (m *Memory) Set(key string, value interface{}, ttl time.Duration) {
	m.mu.Lock()
	m.entries[key] = entry{
		value:      value,
		insertedAt: m.now(),
		ttl:        ttl,
	}
	m.mu.Unlock()
}

// Len reports the current entry count, expired entries included until their
// next Get.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Clear removes all entries.
func (m *Memory) Clear() {
	m.mu.Lock()
	m.entries = make(map[string]entry)
	m.mu.Unlock()
}
