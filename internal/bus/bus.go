// Package bus implements the in-process event bus between the upstream
// connector and the downstream client handlers.
//
// The bus is a bounded ring of serialized events. Every subscriber owns an
// independent cursor that starts at the publish head at subscription time.
// Publishing never blocks: once the ring is full the oldest frame is
// overwritten, and a subscriber whose cursor pointed at an overwritten frame
// receives a *LagError on its next Recv instead of stale data.
package bus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Strob0t/solrelay/internal/port/broadcast"
)

// DefaultCapacity is the number of frames retained when none is configured.
const DefaultCapacity = 100

// ErrClosed is returned by Recv once the bus is closed and the subscriber
// has consumed every frame published before the close.
var ErrClosed = errors.New("bus closed")

// ErrUnsubscribed is returned by Recv on a subscription that was closed.
var ErrUnsubscribed = errors.New("subscription closed")

// LagError reports that a subscriber fell more than the bus capacity behind
// the publish head. Missed frames are gone; the next Recv continues with the
// oldest frame still retained.
type LagError struct {
	Missed uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("subscriber lagged, missed %d events", e.Missed)
}

// IsLag reports whether err is a *LagError.
func IsLag(err error) bool {
	var lag *LagError
	return errors.As(err, &lag)
}

// Bus is a bounded multi-subscriber broadcast ring. The zero value is not
// usable; construct with New.
type Bus struct {
	mu     sync.Mutex
	ring   [][]byte
	head   uint64        // sequence number of the next publish
	notify chan struct{} // closed and replaced on every publish
	subs   int
	closed bool
}

var (
	_ broadcast.Publisher = (*Bus)(nil)
	_ broadcast.Stats     = (*Bus)(nil)
)

// New creates a bus retaining up to capacity frames. A capacity below 1
// falls back to DefaultCapacity.
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Bus{
		ring:   make([][]byte, capacity),
		notify: make(chan struct{}),
	}
}

// Capacity returns the number of frames the bus retains.
func (b *Bus) Capacity() int {
	return len(b.ring)
}

// Publish appends frame to the ring and wakes waiting subscribers. It never
// blocks and succeeds with zero subscribers. The bus takes ownership of
// frame; callers must not modify it afterwards. It returns the number of
// subscribers at publish time, or 0 when the bus is closed.
func (b *Bus) Publish(frame []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0
	}

	b.ring[b.head%uint64(len(b.ring))] = frame
	b.head++

	close(b.notify)
	b.notify = make(chan struct{})

	return b.subs
}

// Subscribe returns a cursor that receives every frame published after
// this call.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs++
	return &Subscription{bus: b, next: b.head}
}

// SubscriberCount returns the number of open subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs
}

// Published returns the total number of frames published so far.
func (b *Bus) Published() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.head
}

// Close stops accepting frames. Subscribers drain what they have not yet
// read and then receive ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.notify)
}

// oldest returns the sequence number of the oldest retained frame.
// Must be called with b.mu held.
func (b *Bus) oldest() uint64 {
	if c := uint64(len(b.ring)); b.head > c {
		return b.head - c
	}
	return 0
}

// Subscription is one delivery cursor into a Bus. It is owned by a single
// goroutine; Recv must not be called concurrently on the same Subscription.
type Subscription struct {
	bus    *Bus
	next   uint64 // guarded by bus.mu
	closed bool   // guarded by bus.mu
}

// Recv returns the next frame for this subscriber, blocking until one is
// published, ctx is done, or the bus is closed. The returned slice is a
// private copy. A *LagError means frames were skipped; calling Recv again
// continues from the oldest retained frame.
func (s *Subscription) Recv(ctx context.Context) ([]byte, error) {
	b := s.bus
	for {
		b.mu.Lock()
		if s.closed {
			b.mu.Unlock()
			return nil, ErrUnsubscribed
		}

		if oldest := b.oldest(); s.next < oldest {
			missed := oldest - s.next
			s.next = oldest
			b.mu.Unlock()
			return nil, &LagError{Missed: missed}
		}

		if s.next < b.head {
			frame := bytes.Clone(b.ring[s.next%uint64(len(b.ring))])
			s.next++
			b.mu.Unlock()
			return frame, nil
		}

		if b.closed {
			b.mu.Unlock()
			return nil, ErrClosed
		}

		wait := b.notify
		b.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Pending returns how many frames are published but not yet read by this
// subscriber, including frames already lost to lag.
func (s *Subscription) Pending() uint64 {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	return s.bus.head - s.next
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	b.subs--
}
