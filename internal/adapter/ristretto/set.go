// Package ristretto implements the cache port using dgraph-io/ristretto as an
// in-process L1 set.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Strob0t/solrelay/internal/port/cache"
)

// Set is an in-process TTL set. Admission is best-effort: under memory
// pressure ristretto may evict or refuse an entry.
type Set struct {
	c *ristretto.Cache[string, struct{}]
}

var _ cache.Set = (*Set)(nil)

// NewSet creates a set bounded to roughly maxCostBytes of key text.
func NewSet(maxCostBytes int64) (*Set, error) {
	if maxCostBytes < 1024 {
		maxCostBytes = 1024
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, struct{}]{
		NumCounters: maxCostBytes / 100 * 10, // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Set{c: c}, nil
}

// Contains reports whether key is present and not expired.
func (s *Set) Contains(_ context.Context, key string) (bool, error) {
	_, found := s.c.Get(key)
	return found, nil
}

// Add records key for ttl. The write is applied before Add returns.
func (s *Set) Add(_ context.Context, key string, ttl time.Duration) error {
	s.c.SetWithTTL(key, struct{}{}, int64(len(key)), ttl)
	s.c.Wait()
	return nil
}

// Close releases the cache.
func (s *Set) Close() {
	s.c.Close()
}
