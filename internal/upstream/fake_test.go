package upstream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errDial = errors.New("connection refused")

type fakeFrame struct {
	typ  MessageType
	data []byte
}

// fakeStream is a scripted upstream connection. Frames pushed with send are
// returned by Read; closing the input ends the stream cleanly.
type fakeStream struct {
	in        chan fakeFrame
	closed    chan struct{}
	closeOnce sync.Once
	writeErr  error

	mu      sync.Mutex
	written [][]byte
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		in:     make(chan fakeFrame, 64),
		closed: make(chan struct{}),
	}
}

func (s *fakeStream) send(data string) { s.in <- fakeFrame{typ: MessageText, data: []byte(data)} }

func (s *fakeStream) sendBinary(data string) {
	s.in <- fakeFrame{typ: MessageBinary, data: []byte(data)}
}

func (s *fakeStream) hangUp() { close(s.in) }

func (s *fakeStream) Read(ctx context.Context) (MessageType, []byte, error) {
	select {
	case f, ok := <-s.in:
		if !ok {
			return 0, nil, ErrStreamClosed
		}
		return f.typ, f.data, nil
	case <-s.closed:
		return 0, nil, errors.New("read on closed stream")
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (s *fakeStream) Write(_ context.Context, data []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, append([]byte(nil), data...))
	return nil
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.written...)
}

func (s *fakeStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// fakeDialer fails the first `failures` dials, then hands out streams built
// by newStream (or plain fakeStreams) and announces them on opened.
type fakeDialer struct {
	mu        sync.Mutex
	failures  int
	dials     int
	newStream func() *fakeStream
	opened    chan *fakeStream
}

func newFakeDialer(failures int) *fakeDialer {
	return &fakeDialer{failures: failures, opened: make(chan *fakeStream, 64)}
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failures {
		return nil, errDial
	}
	s := newFakeStream()
	if d.newStream != nil {
		s = d.newStream()
	}
	d.opened <- s
	return s, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) nextStream(t *testing.T) *fakeStream {
	t.Helper()
	select {
	case s := <-d.opened:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a dial")
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
