// Package natskv implements the cache port using a NATS JetStream KV bucket
// as the shared L2 set.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/solrelay/internal/port/cache"
)

// Set wraps a NATS JetStream KeyValue bucket. Expiry is managed at bucket
// level, so every member lives for the bucket TTL.
type Set struct {
	kv jetstream.KeyValue
}

var _ cache.Set = (*Set)(nil)

// New creates a set over an existing bucket.
func New(kv jetstream.KeyValue) *Set {
	return &Set{kv: kv}
}

// Open creates or updates bucket with the given TTL and returns a set over it.
func Open(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration) (*Set, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "solrelay transaction signature dedup window",
		TTL:         ttl,
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("kv bucket %s: %w", bucket, err)
	}
	return New(kv), nil
}

// Contains reports whether key is present in the bucket.
func (s *Set) Contains(ctx context.Context, key string) (bool, error) {
	_, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Add stores key in the bucket. The ttl argument is ignored.
func (s *Set) Add(ctx context.Context, key string, _ time.Duration) error {
	_, err := s.kv.Put(ctx, key, []byte{1})
	return err
}
