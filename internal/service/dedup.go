package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/solrelay/internal/port/cache"
)

// DedupService suppresses events whose transaction signature was already
// relayed within the window, for example when the upstream re-sends a
// notification around a reconnect. Cache failures fail open: the event is
// published.
type DedupService struct {
	set cache.Set
	ttl time.Duration
}

// NewDedupService creates a dedup window of length ttl backed by set.
func NewDedupService(set cache.Set, ttl time.Duration) *DedupService {
	return &DedupService{set: set, ttl: ttl}
}

// Seen reports whether signature was recorded within the window, and
// records it if not.
func (d *DedupService) Seen(ctx context.Context, signature string) bool {
	found, err := d.set.Contains(ctx, signature)
	if err != nil {
		slog.Warn("dedup lookup failed, publishing anyway", "signature", signature, "error", err)
		return false
	}
	if found {
		return true
	}
	if err := d.set.Add(ctx, signature, d.ttl); err != nil {
		slog.Warn("dedup record failed", "signature", signature, "error", err)
	}
	return false
}
