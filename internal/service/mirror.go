package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/Strob0t/solrelay/internal/bus"
	"github.com/Strob0t/solrelay/internal/port/messagequeue"
)

// MirrorService republishes every bus frame to a message queue subject so
// consumers outside the process can follow the event stream.
type MirrorService struct {
	queue   messagequeue.Queue
	subject string

	published atomic.Int64
	failed    atomic.Int64
	lagged    atomic.Int64
}

// NewMirrorService creates a mirror publishing to subject on queue.
func NewMirrorService(queue messagequeue.Queue, subject string) *MirrorService {
	if subject == "" {
		subject = messagequeue.DefaultSubject
	}
	return &MirrorService{queue: queue, subject: subject}
}

// Run forwards frames from sub until ctx is done or the bus closes. Publish
// failures and lag are logged and do not stop the mirror. The subscription
// is released on return.
func (s *MirrorService) Run(ctx context.Context, sub *bus.Subscription) error {
	defer sub.Close()
	slog.Info("event mirror started", "subject", s.subject)

	for {
		frame, err := sub.Recv(ctx)
		if err != nil {
			var lag *bus.LagError
			switch {
			case errors.As(err, &lag):
				s.lagged.Add(int64(lag.Missed)) //nolint:gosec // bounded by publish count
				slog.Warn("event mirror lagged, events skipped", "missed", lag.Missed)
				continue
			case errors.Is(err, bus.ErrClosed):
				slog.Info("event mirror stopped, bus closed")
				return nil
			default:
				return err
			}
		}

		if err := s.queue.Publish(ctx, s.subject, frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.failed.Add(1)
			slog.Error("event mirror publish failed", "subject", s.subject, "error", err)
			continue
		}
		s.published.Add(1)
	}
}

// Published returns the number of frames mirrored.
func (s *MirrorService) Published() int64 { return s.published.Load() }

// Failed returns the number of frames the queue rejected.
func (s *MirrorService) Failed() int64 { return s.failed.Load() }

// Lagged returns the number of frames skipped because the mirror fell behind.
func (s *MirrorService) Lagged() int64 { return s.lagged.Load() }
