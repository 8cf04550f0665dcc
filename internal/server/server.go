// Package server exposes the relay over HTTP: WebSocket upgrade routes for
// clients and a health endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	cfotel "github.com/Strob0t/solrelay/internal/adapter/otel"
	"github.com/Strob0t/solrelay/internal/adapter/ws"
	"github.com/Strob0t/solrelay/internal/config"
	"github.com/Strob0t/solrelay/internal/domain"
	"github.com/Strob0t/solrelay/internal/port/broadcast"
	"github.com/Strob0t/solrelay/internal/upstream"
)

const shutdownTimeout = 10 * time.Second

// UpstreamStatus reports the connector lifecycle for /health.
type UpstreamStatus interface {
	State() upstream.State
	Attempts() int64
}

// Server routes client connections to the hub.
type Server struct {
	cfg         config.Server
	hub         *ws.Hub
	stats       broadcast.Stats
	upstream    UpstreamStatus
	serviceName string
}

// New creates a server for hub. stats feeds /health.
func New(cfg config.Server, hub *ws.Hub, stats broadcast.Stats) *Server {
	return &Server{cfg: cfg, hub: hub, stats: stats}
}

// SetUpstream includes the connector state in /health.
func (s *Server) SetUpstream(u UpstreamStatus) { s.upstream = u }

// SetTracing wraps every request in an OpenTelemetry span named after service.
func (s *Server) SetTracing(service string) { s.serviceName = service }

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	if s.serviceName != "" {
		r.Use(cfotel.HTTPMiddleware(s.serviceName))
	}

	r.Get("/health", s.handleHealth)

	mounted := map[string]bool{}
	for _, p := range []string{"/", "/ws", s.cfg.Path} {
		if p == "" || mounted[p] {
			continue
		}
		mounted[p] = true
		r.Get(p, s.hub.HandleWS)
	}

	return r
}

// ListenAndServe binds the configured port and serves until ctx is done.
// A bind failure is returned wrapped in domain.ErrBind.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.cfg.Port
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrBind, addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully. Open client streams are told to close.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// No read or write timeouts: client streams are long-lived.
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv.RegisterOnShutdown(s.hub.CloseAll)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("relay server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down relay server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type healthStatus struct {
	Status           string `json:"status"`
	Upstream         string `json:"upstream,omitempty"`
	UpstreamAttempts int64  `json:"upstream_attempts,omitempty"`
	Subscribers      int    `json:"subscribers"`
	Clients          int    `json:"clients"`
	Published        uint64 `json:"published"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := healthStatus{
		Status:      "ok",
		Subscribers: s.stats.SubscriberCount(),
		Clients:     s.hub.ConnectionCount(),
		Published:   s.stats.Published(),
	}
	if s.upstream != nil {
		state := s.upstream.State()
		status.Upstream = state.String()
		status.UpstreamAttempts = s.upstream.Attempts()
		if state != upstream.StateSubscribed {
			status.Status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(status)
}
