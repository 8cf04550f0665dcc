// Package tiered implements a two-level (L1 + L2) set adapter.
package tiered

import (
	"context"
	"time"

	"github.com/Strob0t/solrelay/internal/port/cache"
)

// Set combines an L1 (in-process) and L2 (shared) set.
// Contains checks L1 first, then L2 (backfilling L1 on L2 hit).
// Add writes both levels.
type Set struct {
	l1       cache.Set
	l2       cache.Set
	l1Expire time.Duration
}

var _ cache.Set = (*Set)(nil)

// New creates a tiered set with the given L1 and L2 backends.
// l1Expire controls how long L2 backfill entries live in L1.
func New(l1, l2 cache.Set, l1Expire time.Duration) *Set {
	return &Set{l1: l1, l2: l2, l1Expire: l1Expire}
}

// Contains checks L1, then L2. On L2 hit, backfills L1.
func (s *Set) Contains(ctx context.Context, key string) (bool, error) {
	found, err := s.l1.Contains(ctx, key)
	if err != nil {
		return false, err
	}
	if found {
		return true, nil
	}

	found, err = s.l2.Contains(ctx, key)
	if err != nil {
		return false, err
	}
	if found {
		_ = s.l1.Add(ctx, key, s.l1Expire)
	}
	return found, nil
}

// Add writes to both L1 and L2.
func (s *Set) Add(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.l1.Add(ctx, key, ttl); err != nil {
		return err
	}
	return s.l2.Add(ctx, key, ttl)
}
