// Package cache defines the port interface for the transaction signature
// dedup window.
package cache

import (
	"context"
	"time"
)

// Set is a set of keys whose members expire after a TTL.
type Set interface {
	Contains(ctx context.Context, key string) (bool, error)
	Add(ctx context.Context, key string, ttl time.Duration) error
}
