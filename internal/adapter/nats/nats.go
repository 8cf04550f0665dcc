// Package nats implements the message queue port using NATS. With a stream
// name configured, publishes go through JetStream; otherwise core NATS.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/solrelay/internal/port/messagequeue"
)

// Queue implements messagequeue.Queue.
type Queue struct {
	nc     *nats.Conn
	js     jetstream.JetStream // nil for core NATS
	stream string
}

var _ messagequeue.Queue = (*Queue)(nil)

// Connect establishes a connection to NATS. When stream is non-empty it
// ensures a JetStream stream capturing subjects exists.
func Connect(ctx context.Context, url, stream string, subjects ...string) (*Queue, error) {
	nc, err := nats.Connect(url,
		nats.Name("solrelay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	q := &Queue{nc: nc, stream: stream}
	if stream == "" {
		slog.Info("nats connected", "url", url)
		return q, nil
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: subjects,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	q.js = js
	slog.Info("nats connected", "url", url, "stream", stream)
	return q, nil
}

// Publish validates data as a serialized event and sends it to subject.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := messagequeue.Validate(subject, data); err != nil {
		return err
	}
	if q.js != nil {
		if _, err := q.js.Publish(ctx, subject, data); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}
	if err := q.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for messages on the given subject. With
// JetStream the consumer acks on success and naks on handler error.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	if q.js == nil {
		sub, err := q.nc.Subscribe(subject, func(msg *nats.Msg) {
			if err := handler(ctx, msg.Subject, msg.Data); err != nil {
				slog.Error("message handler failed", "subject", msg.Subject, "error", err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("nats subscribe %s: %w", subject, err)
		}
		return func() { _ = sub.Unsubscribe() }, nil
	}

	consumer, err := q.js.CreateOrUpdateConsumer(ctx, q.stream, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := handler(ctx, msg.Subject(), msg.Data()); err != nil {
			slog.Error("message handler failed", "subject", msg.Subject(), "error", err)
			if nakErr := msg.Nak(); nakErr != nil {
				slog.Error("nats nak failed", "error", nakErr)
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Error("nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// JetStream returns the JetStream context, creating it for core NATS
// connections on first use.
func (q *Queue) JetStream() (jetstream.JetStream, error) {
	if q.js != nil {
		return q.js, nil
	}
	return jetstream.New(q.nc)
}

// Drain flushes pending messages and closes the connection.
func (q *Queue) Drain() error {
	return q.nc.Drain()
}

// Close shuts down the NATS connection.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// IsConnected reports whether the connection is up.
func (q *Queue) IsConnected() bool {
	return q.nc.IsConnected()
}
