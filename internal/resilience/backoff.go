// Package resilience provides retry pacing for the upstream connection.
package resilience

import (
	"context"
	"time"
)

// Backoff computes the wait between consecutive reconnect attempts.
// With Max <= Base the delay is flat; otherwise it doubles per consecutive
// failure and is capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Flat returns a Backoff that always waits d.
func Flat(d time.Duration) Backoff {
	return Backoff{Base: d}
}

// Exponential returns a Backoff that starts at base and doubles up to max.
func Exponential(base, maxDelay time.Duration) Backoff {
	return Backoff{Base: base, Max: maxDelay}
}

// Delay returns the wait before the next attempt after the given number of
// consecutive failures (1 for the first failure).
func (b Backoff) Delay(failures int) time.Duration {
	if b.Max <= b.Base || failures <= 1 {
		return b.Base
	}
	d := b.Base
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= b.Max || d <= 0 {
			return b.Max
		}
	}
	return d
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
