// Package upstream maintains the single subscription to the Solana RPC
// WebSocket endpoint and feeds decoded events into the bus.
package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/solrelay/internal/adapter/otel"
	"github.com/Strob0t/solrelay/internal/domain"
	"github.com/Strob0t/solrelay/internal/domain/event"
	"github.com/Strob0t/solrelay/internal/port/broadcast"
	"github.com/Strob0t/solrelay/internal/port/decoder"
	"github.com/Strob0t/solrelay/internal/resilience"
)

// Config holds the connector settings.
type Config struct {
	URL         string
	ProgramID   string
	Commitment  string
	Backoff     resilience.Backoff
	DialTimeout time.Duration
	WaitForAck  bool
	AckTimeout  time.Duration
}

// Deduper suppresses events whose transaction signature was already published.
type Deduper interface {
	Seen(ctx context.Context, signature string) bool
}

// Connector owns the upstream connection lifecycle: dial, subscribe, read,
// decode, publish, and on any failure wait and start over. It is meant to run
// for the life of the process.
type Connector struct {
	cfg     Config
	dialer  Dialer
	decoder decoder.Decoder
	pub     broadcast.Publisher
	dedup   Deduper
	metrics *cfotel.Metrics

	state    atomic.Int32
	attempts atomic.Int64
	events   atomic.Int64

	sleep func(ctx context.Context, d time.Duration) error
}

// NewConnector creates a connector publishing decoded events to pub.
func NewConnector(cfg Config, dialer Dialer, dec decoder.Decoder, pub broadcast.Publisher) *Connector {
	if cfg.Commitment == "" {
		cfg.Commitment = "finalized"
	}
	if cfg.Backoff.Base <= 0 {
		cfg.Backoff = resilience.Flat(5 * time.Second)
	}
	m, _ := cfotel.NewMetrics() // no-op instruments until SetMetrics
	return &Connector{
		cfg:     cfg,
		dialer:  dialer,
		decoder: dec,
		pub:     pub,
		metrics: m,
		sleep:   resilience.Sleep,
	}
}

// SetDeduper enables signature dedup across sessions.
func (c *Connector) SetDeduper(d Deduper) { c.dedup = d }

// SetMetrics replaces the metric instruments.
func (c *Connector) SetMetrics(m *cfotel.Metrics) {
	if m != nil {
		c.metrics = m
	}
}

// State returns the current lifecycle state.
func (c *Connector) State() State { return State(c.state.Load()) }

// Attempts returns the number of connection attempts made so far.
func (c *Connector) Attempts() int64 { return c.attempts.Load() }

// EventsPublished returns the number of events handed to the bus.
func (c *Connector) EventsPublished() int64 { return c.events.Load() }

func (c *Connector) setState(s State) { c.state.Store(int32(s)) }

// Run connects and reconnects until ctx is cancelled, then returns ctx.Err().
// Connection failures are logged and retried after the backoff delay; no
// error other than cancellation ever ends the loop.
func (c *Connector) Run(ctx context.Context) error {
	slog.Info("upstream connector starting",
		"url", c.cfg.URL,
		"program_id", c.cfg.ProgramID,
		"commitment", c.cfg.Commitment,
	)

	failures := 0
	for {
		attempt := c.attempts.Add(1)
		subscribed, err := c.session(ctx, attempt)
		c.setState(StateDisconnected)

		if ctx.Err() != nil {
			slog.Info("upstream connector stopped", "attempts", attempt)
			return ctx.Err()
		}

		if subscribed {
			failures = 1
		} else {
			failures++
		}
		delay := c.cfg.Backoff.Delay(failures)

		switch {
		case err == nil, isCleanClose(err):
			slog.Warn("upstream connection closed, reconnecting", "attempt", attempt, "delay", delay)
		default:
			slog.Error("upstream connection error, reconnecting", "attempt", attempt, "delay", delay, "error", err)
		}

		if err := c.sleep(ctx, delay); err != nil {
			slog.Info("upstream connector stopped", "attempts", attempt)
			return err
		}
	}
}

// session runs one ConnectionSession. subscribed reports whether the
// subscription was established before the session ended.
func (c *Connector) session(ctx context.Context, attempt int64) (subscribed bool, err error) {
	sessionID := uuid.NewString()
	ctx, span := cfotel.StartSessionSpan(ctx, sessionID, c.cfg.URL, attempt)
	defer func() {
		if err != nil && !isCleanClose(err) && ctx.Err() == nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := slog.With("session_id", sessionID, "attempt", attempt)

	c.setState(StateConnecting)
	c.metrics.UpstreamAttempts.Add(ctx, 1)

	stream, err := c.dial(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrConnection, err)
	}
	defer func() { _ = stream.Close() }()
	log.Info("upstream connected", "url", c.cfg.URL)

	req, err := subscribeRequest(c.cfg.ProgramID, c.cfg.Commitment)
	if err != nil {
		return false, fmt.Errorf("build subscribe request: %w", err)
	}
	if err := stream.Write(ctx, req); err != nil {
		return false, fmt.Errorf("%w: send subscribe: %w", domain.ErrConnection, err)
	}

	if c.cfg.WaitForAck {
		subID, err := c.awaitAck(ctx, stream)
		if err != nil {
			return false, fmt.Errorf("%w: subscribe ack: %w", domain.ErrConnection, err)
		}
		log = log.With("subscription", subID)
	}

	c.setState(StateSubscribed)
	c.metrics.UpstreamSubscribed.Add(ctx, 1)
	log.Info("upstream subscribed", "program_id", c.cfg.ProgramID, "commitment", c.cfg.Commitment)

	start := time.Now()
	defer func() {
		c.metrics.UpstreamDisconnects.Add(context.WithoutCancel(ctx), 1)
		c.metrics.SessionDuration.Record(context.WithoutCancel(ctx), time.Since(start).Seconds())
	}()

	for {
		typ, data, err := stream.Read(ctx)
		if err != nil {
			if isCleanClose(err) {
				log.Info("upstream closed the stream")
				return true, err
			}
			return true, fmt.Errorf("%w: read: %w", domain.ErrConnection, err)
		}
		if typ != MessageText {
			continue
		}
		c.handle(ctx, log, data)
	}
}

func (c *Connector) dial(ctx context.Context) (Stream, error) {
	if c.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.DialTimeout)
		defer cancel()
	}
	return c.dialer.Dial(ctx, c.cfg.URL)
}

// awaitAck reads frames until the response to the subscribe request arrives.
func (c *Connector) awaitAck(ctx context.Context, stream Stream) (uint64, error) {
	if c.cfg.AckTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.AckTimeout)
		defer cancel()
	}
	for {
		typ, data, err := stream.Read(ctx)
		if err != nil {
			return 0, err
		}
		if typ != MessageText {
			continue
		}
		subID, matched, err := parseAck(data)
		if !matched {
			continue
		}
		return subID, err
	}
}

// handle decodes one upstream frame and publishes the resulting event, if any.
func (c *Connector) handle(ctx context.Context, log *slog.Logger, data []byte) {
	c.metrics.MessagesReceived.Add(ctx, 1)

	ev, ok := c.decode(log, data)
	if !ok {
		c.metrics.MessagesSkipped.Add(ctx, 1)
		return
	}

	if c.dedup != nil && c.dedup.Seen(ctx, ev.TransactionSignature) {
		c.metrics.EventsDuplicate.Add(ctx, 1)
		log.Debug("duplicate event suppressed", "signature", ev.TransactionSignature)
		return
	}

	frame, err := ev.Marshal()
	if err != nil {
		c.metrics.MessagesSkipped.Add(ctx, 1)
		log.Warn("event marshal failed", "signature", ev.TransactionSignature, "error", err)
		return
	}

	receivers := c.pub.Publish(frame)
	c.events.Add(1)
	c.metrics.EventsPublished.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", string(ev.Type)),
	))
	log.Debug("event published",
		"event_type", ev.Type,
		"signature", ev.TransactionSignature,
		"receivers", receivers,
	)
}

// decode runs the decoder, treating a panic as "no event".
func (c *Connector) decode(log *slog.Logger, data []byte) (ev event.TokenEvent, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("decoder panicked, message dropped", "error", fmt.Errorf("%w: %v", domain.ErrDecode, r))
			ev, ok = event.TokenEvent{}, false
		}
	}()
	return c.decoder.Decode(data)
}
