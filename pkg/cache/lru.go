package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
)

// LRUStore bounds memory with an expirable LRU. The per-entry TTL argument is
// ignored: the library fixes one TTL for the whole cache at construction,
// which matches how callers use Set anyway.
type LRUStore struct {
	lru *expirable.LRU[string, []byte]

	hits   prometheus.Counter
	misses prometheus.Counter
}

func NewLRUStore(size int, ttl time.Duration, hits, misses prometheus.Counter) *LRUStore {
	return &LRUStore{
		lru:    expirable.NewLRU[string, []byte](size, nil, ttl),
		hits:   hits,
		misses: misses,
	}
}

func (s *LRUStore) Get(key string) ([]byte, bool) {
	v, ok := s.lru.Get(key)
	if !ok {
		if s.misses != nil {
			s.misses.Inc()
		}
		return nil, false
	}
	if s.hits != nil {
		s.hits.Inc()
	}
	return v, true
}

func (s *LRUStore) Set(key string, value []byte, _ time.Duration) {
	s.lru.Add(key, value)
}

func (s *LRUStore) Clear() {
	s.lru.Purge()
}
