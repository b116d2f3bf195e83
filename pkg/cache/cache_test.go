package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLStore_GetBeforeExpiry(t *testing.T) {
	t.Parallel()

	s := NewTTLStore(nil, nil)
	s.Set("k", []byte("v"), 100*time.Millisecond)

	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestTTLStore_ExpiredEntryIsAMiss(t *testing.T) {
	t.Parallel()

	s := NewTTLStore(nil, nil)
	s.Set("k", []byte("v"), 100*time.Millisecond)

	time.Sleep(150 * time.Millisecond)

	_, ok := s.Get("k")
	require.False(t, ok)
	// The stale entry is removed lazily by the read that found it.
	assert.Equal(t, 0, s.Len())
}

func TestTTLStore_SetOverwrites(t *testing.T) {
	t.Parallel()

	s := NewTTLStore(nil, nil)
	s.Set("k", []byte("old"), time.Minute)
	s.Set("k", []byte("new"), time.Minute)

	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), v)
	assert.Equal(t, 1, s.Len())
}

func TestTTLStore_Clear(t *testing.T) {
	t.Parallel()

	s := NewTTLStore(nil, nil)
	for i := 0; i < 5; i++ {
		s.Set(fmt.Sprintf("k%d", i), []byte("v"), time.Minute)
	}
	s.Clear()

	assert.Equal(t, 0, s.Len())
	_, ok := s.Get("k0")
	assert.False(t, ok)
}

func TestTTLStore_CountsHitsAndMisses(t *testing.T) {
	t.Parallel()

	hits := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_cache_hits_total"})
	misses := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_cache_misses_total"})
	s := NewTTLStore(hits, misses)

	s.Get("absent")
	s.Set("k", []byte("v"), time.Minute)
	s.Get("k")
	s.Get("k")

	assert.Equal(t, float64(2), testutil.ToFloat64(hits))
	assert.Equal(t, float64(1), testutil.ToFloat64(misses))
}

func TestLRUStore_EvictsOldestWhenFull(t *testing.T) {
	t.Parallel()

	s := NewLRUStore(2, time.Minute, nil, nil)
	s.Set("a", []byte("1"), 0)
	s.Set("b", []byte("2"), 0)
	s.Set("c", []byte("3"), 0)

	_, ok := s.Get("a")
	assert.False(t, ok)

	v, ok := s.Get("c")
	require.True(t, ok)
	assert.Equal(t, []byte("3"), v)
}

func TestLRUStore_Clear(t *testing.T) {
	t.Parallel()

	s := NewLRUStore(8, time.Minute, nil, nil)
	s.Set("a", []byte("1"), 0)
	s.Clear()

	_, ok := s.Get("a")
	assert.False(t, ok)
}
