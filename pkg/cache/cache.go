// Package cache is the process-local read shortcut shared by the services.
// Values are the marshaled JSON payloads the service would otherwise rebuild
// from the database, so every Store implementation only has to move bytes.
package cache

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Store is deliberately small: services invalidate by clearing the whole
// store after any mutation, never per key.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Clear()
}

type entry struct {
	value      []byte
	insertedAt time.Time
	ttl        time.Duration
}

// TTLStore is a map with best-effort TTL semantics: entries are never swept,
// a stale entry is treated as a miss and removed on the read that finds it.
// There is no size bound.
type TTLStore struct {
	mu      sync.RWMutex
	entries map[string]entry

	hits   prometheus.Counter
	misses prometheus.Counter

	now func() time.Time
}

// NewTTLStore wires the store to the shared hit/miss counters. Both counters
// may be nil when observability is not needed (tests).
func NewTTLStore(hits, misses prometheus.Counter) *TTLStore {
	return &TTLStore{
		entries: make(map[string]entry),
		hits:    hits,
		misses:  misses,
		now:     time.Now,
	}
}

func (s *TTLStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if ok && s.now().Sub(e.insertedAt) > e.ttl {
		s.mu.Lock()
		// Recheck under the write lock: a concurrent Set may have refreshed it.
		if cur, still := s.entries[key]; still && cur.insertedAt.Equal(e.insertedAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		ok = false
	}

	if !ok {
		if s.misses != nil {
			s.misses.Inc()
		}
		return nil, false
	}
	if s.hits != nil {
		s.hits.Inc()
	}
	return e.value, true
}

func (s *TTLStore) Set(key string, value []byte, ttl time.Duration) {
	s.mu.Lock()
	s.entries[key] = entry{value: value, insertedAt: s.now(), ttl: ttl}
	s.mu.Unlock()
}

func (s *TTLStore) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
}

func (s *TTLStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
