package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	cfnats "github.com/Strob0t/solrelay/internal/adapter/nats"
	"github.com/Strob0t/solrelay/internal/adapter/natskv"
	cfotel "github.com/Strob0t/solrelay/internal/adapter/otel"
	"github.com/Strob0t/solrelay/internal/adapter/ristretto"
	"github.com/Strob0t/solrelay/internal/adapter/tiered"
	"github.com/Strob0t/solrelay/internal/adapter/ws"
	"github.com/Strob0t/solrelay/internal/bus"
	"github.com/Strob0t/solrelay/internal/config"
	"github.com/Strob0t/solrelay/internal/decoder"
	"github.com/Strob0t/solrelay/internal/logger"
	"github.com/Strob0t/solrelay/internal/port/cache"
	"github.com/Strob0t/solrelay/internal/resilience"
	"github.com/Strob0t/solrelay/internal/server"
	"github.com/Strob0t/solrelay/internal/service"
	"github.com/Strob0t/solrelay/internal/upstream"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"upstream", cfg.Upstream.URL,
		"program_id", cfg.Upstream.ProgramID,
		"decoder", cfg.Upstream.Decoder,
		"bus_capacity", cfg.Bus.Capacity,
		"log_level", cfg.Logging.Level,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---

	shutdownOTEL, err := cfotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	}()

	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Pipeline ---

	events := bus.New(cfg.Bus.Capacity)
	defer events.Close()

	dec, err := decoder.New(cfg.Upstream.Decoder)
	if err != nil {
		return fmt.Errorf("decoder: %w", err)
	}

	backoff := resilience.Flat(cfg.Upstream.ReconnectDelay)
	if cfg.Upstream.MaxReconnectDelay > cfg.Upstream.ReconnectDelay {
		backoff = resilience.Exponential(cfg.Upstream.ReconnectDelay, cfg.Upstream.MaxReconnectDelay)
	}

	connector := upstream.NewConnector(upstream.Config{
		URL:         cfg.Upstream.URL,
		ProgramID:   cfg.Upstream.ProgramID,
		Commitment:  cfg.Upstream.Commitment,
		Backoff:     backoff,
		DialTimeout: cfg.Upstream.DialTimeout,
		WaitForAck:  cfg.Upstream.WaitForAck,
		AckTimeout:  cfg.Upstream.AckTimeout,
	}, upstream.WebSocketDialer{}, dec, events)
	connector.SetMetrics(metrics)

	// The queue is optional; an unreachable NATS server does not stop the relay.
	var queue *cfnats.Queue
	if cfg.NATS.URL != "" {
		q, err := cfnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream, cfg.NATS.Subject)
		if err != nil {
			slog.Error("nats unavailable, event mirror disabled", "url", cfg.NATS.URL, "error", err)
		} else {
			queue = q
			defer func() { _ = queue.Drain() }()
		}
	}

	if cfg.Dedup.Enabled {
		set, closeSet, err := dedupSet(ctx, cfg.Dedup, queue)
		if err != nil {
			return fmt.Errorf("dedup: %w", err)
		}
		defer closeSet()
		connector.SetDeduper(service.NewDedupService(set, cfg.Dedup.TTL))
	}

	hub := ws.NewHub(events, cfg.Client.WriteTimeout)
	hub.SetMetrics(metrics)

	srv := server.New(cfg.Server, hub, events)
	srv.SetUpstream(connector)
	if cfg.OTEL.Endpoint != "" {
		srv.SetTracing(cfg.OTEL.ServiceName)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	g.Go(func() error {
		if err := connector.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if queue != nil {
		mirror := service.NewMirrorService(queue, cfg.NATS.Subject)
		sub := events.Subscribe()
		g.Go(func() error {
			if err := mirror.Run(gctx, sub); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	err = g.Wait()
	slog.Info("relay stopped",
		"upstream_attempts", connector.Attempts(),
		"events_published", connector.EventsPublished(),
	)
	return err
}

// dedupSet builds the signature window: ristretto in-process, backed by a
// shared NATS KV bucket when one is configured and reachable.
func dedupSet(ctx context.Context, cfg config.Dedup, queue *cfnats.Queue) (cache.Set, func(), error) {
	l1, err := ristretto.NewSet(cfg.MaxCostBytes)
	if err != nil {
		return nil, nil, err
	}
	if cfg.NATSBucket == "" || queue == nil {
		return l1, l1.Close, nil
	}

	js, err := queue.JetStream()
	if err != nil {
		slog.Warn("shared dedup window unavailable, using in-process only", "error", err)
		return l1, l1.Close, nil
	}
	l2, err := natskv.Open(ctx, js, cfg.NATSBucket, cfg.TTL)
	if err != nil {
		slog.Warn("shared dedup window unavailable, using in-process only", "bucket", cfg.NATSBucket, "error", err)
		return l1, l1.Close, nil
	}
	slog.Info("shared dedup window enabled", "bucket", cfg.NATSBucket, "ttl", cfg.TTL)
	return tiered.New(l1, l2, cfg.TTL), l1.Close, nil
}
