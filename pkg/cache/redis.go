package cache

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// RedisStore shares the cache across replicas of a service. Keys are
// namespaced per service so Clear only drops that service's entries.
type RedisStore struct {
	rdb    *redis.Client
	prefix string

	hits   prometheus.Counter
	misses prometheus.Counter
}

func NewRedisStore(addr, prefix string, hits, misses prometheus.Counter) *RedisStore {
	return &RedisStore{
		rdb:    redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix + ":",
		hits:   hits,
		misses: misses,
	}
}

func (s *RedisStore) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	v, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
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

func (s *RedisStore) Set(key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s.rdb.Set(ctx, s.prefix+key, value, ttl)
}

func (s *RedisStore) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		s.rdb.Del(ctx, iter.Val())
	}
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
