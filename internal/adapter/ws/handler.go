// Package ws implements the downstream WebSocket endpoint: every client gets
// its own bus subscription and receives each event as one text message.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	cfotel "github.com/Strob0t/solrelay/internal/adapter/otel"
	"github.com/Strob0t/solrelay/internal/bus"
	"github.com/Strob0t/solrelay/internal/domain"
	"github.com/Strob0t/solrelay/internal/logger"
)

// DefaultWriteTimeout bounds a single write to a client.
const DefaultWriteTimeout = 10 * time.Second

// conn is one accepted client.
type conn struct {
	id          string
	remote      string
	connectedAt time.Time
	ws          *websocket.Conn
	cancel      context.CancelFunc

	mu    sync.Mutex
	state ClientState
}

func (c *conn) setState(s ClientState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *conn) info() ClientInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClientInfo{ID: c.id, Remote: c.remote, State: c.state, ConnectedAt: c.connectedAt}
}

// Hub accepts client connections and streams bus events to them.
type Hub struct {
	bus          *bus.Bus
	writeTimeout time.Duration
	metrics      *cfotel.Metrics

	mu    sync.RWMutex
	conns map[*conn]struct{}
}

// NewHub creates a hub serving events from b. A non-positive writeTimeout
// falls back to DefaultWriteTimeout.
func NewHub(b *bus.Bus, writeTimeout time.Duration) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	m, _ := cfotel.NewMetrics()
	return &Hub{
		bus:          b,
		writeTimeout: writeTimeout,
		metrics:      m,
		conns:        make(map[*conn]struct{}),
	}
}

// SetMetrics replaces the metric instruments.
func (h *Hub) SetMetrics(m *cfotel.Metrics) {
	if m != nil {
		h.metrics = m
	}
}

// HandleWS upgrades the request and streams events until the client goes
// away, a write fails, or the request context ends. It blocks for the
// lifetime of the connection.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	c := &conn{
		remote:      r.RemoteAddr,
		connectedAt: time.Now(),
		state:       ClientConnecting,
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // any origin may subscribe
	})
	if err != nil {
		h.metrics.ClientHandshakeErrs.Add(r.Context(), 1)
		slog.Warn("client handshake failed",
			"remote", r.RemoteAddr,
			"error", fmt.Errorf("%w: %w", domain.ErrClientHandshake, err),
		)
		return
	}

	c.id = uuid.NewString()
	c.ws = ws
	c.setState(ClientUpgraded)

	ctx, span := cfotel.StartClientSpan(logger.WithConnID(r.Context(), c.id), c.id, c.remote)
	defer span.End()

	// streamCtx ends the forwarding loop; the read pump keeps using ctx so a
	// close handshake can still complete after the loop stops.
	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer cancel()

	log := logger.From(ctx)
	h.add(ctx, c)
	defer h.remove(ctx, c)
	log.Info("client connected", "remote", c.remote)

	sub := h.bus.Subscribe()
	defer sub.Close()

	// Read pump: client data is discarded, a read error means the client is gone.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()

	c.setState(ClientStreaming)
	err = h.forward(streamCtx, log, sub, func(ctx context.Context, frame []byte) error {
		return ws.Write(ctx, websocket.MessageText, frame)
	})
	c.setState(ClientClosed)

	switch {
	case errors.Is(err, domain.ErrClientSend):
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		log.Warn("client send failed, closing", "error", err)
		_ = ws.CloseNow()
	case errors.Is(err, bus.ErrClosed):
		log.Info("event bus closed, disconnecting client")
		_ = ws.Close(websocket.StatusGoingAway, "relay shutting down")
	default:
		log.Info("client disconnected")
		_ = ws.Close(websocket.StatusNormalClosure, "")
	}
}

// writeFunc sends one frame to a client.
type writeFunc func(ctx context.Context, frame []byte) error

// forward copies frames from sub to write until ctx ends, the bus closes or a
// write fails. Lag is logged and skipped; the client is not told.
func (h *Hub) forward(ctx context.Context, log *slog.Logger, sub *bus.Subscription, write writeFunc) error {
	for {
		frame, err := sub.Recv(ctx)
		if err != nil {
			var lag *bus.LagError
			if errors.As(err, &lag) {
				h.metrics.ClientLaggedEvents.Add(ctx, int64(lag.Missed)) //nolint:gosec // bounded by publish count
				log.Warn("client lagged, events skipped", "missed", lag.Missed)
				continue
			}
			return err
		}

		wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
		err = write(wctx, frame)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h.metrics.ClientSendErrs.Add(ctx, 1)
			return fmt.Errorf("%w: %w", domain.ErrClientSend, err)
		}
		h.metrics.FramesDelivered.Add(ctx, 1)
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Clients returns a snapshot of the connected clients.
func (h *Hub) Clients() []ClientInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ClientInfo, 0, len(h.conns))
	for c := range h.conns {
		out = append(out, c.info())
	}
	return out
}

// CloseAll ends every active client stream. Handlers close their sockets
// and return on their own.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		c.cancel()
	}
}

func (h *Hub) add(ctx context.Context, c *conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.ClientsActive.Add(ctx, 1)
}

func (h *Hub) remove(ctx context.Context, c *conn) {
	h.mu.Lock()
	_, ok := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()
	if ok {
		h.metrics.ClientsActive.Add(context.WithoutCancel(ctx), -1)
	}
}
