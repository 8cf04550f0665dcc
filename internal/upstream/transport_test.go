package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// echoRPC accepts one subscription request, answers with an ack and a
// notification, then closes normally.
func echoRPC(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		ctx := r.Context()
		_, req, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if !strings.Contains(string(req), `"logsSubscribe"`) {
			_ = conn.Close(websocket.StatusPolicyViolation, "unexpected request")
			return
		}
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"jsonrpc":"2.0","result":7,"id":1}`))
		_ = conn.Write(ctx, websocket.MessageBinary, []byte{0x01})
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"jsonrpc":"2.0","method":"logsNotification"}`))
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}))
}

func TestWebSocketDialerRoundTrip(t *testing.T) {
	srv := echoRPC(t)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := WebSocketDialer{}.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = stream.Close() }()

	req, err := subscribeRequest("Prog111", "finalized")
	if err != nil {
		t.Fatal(err)
	}
	if err := stream.Write(ctx, req); err != nil {
		t.Fatalf("write: %v", err)
	}

	wantTypes := []MessageType{MessageText, MessageBinary, MessageText}
	for i, want := range wantTypes {
		typ, _, err := stream.Read(ctx)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if typ != want {
			t.Fatalf("frame %d: expected type %d, got %d", i, want, typ)
		}
	}

	_, _, err = stream.Read(ctx)
	if err == nil {
		t.Fatal("expected close after the last frame")
	}
	if !isCleanClose(err) {
		t.Fatalf("normal closure should be clean, got %v", err)
	}
}

func TestWebSocketDialerRejectsNonWebSocket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := WebSocketDialer{}.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if !strings.Contains(err.Error(), "status 403") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestIsCleanClose(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"stream closed", ErrStreamClosed, true},
		{"wrapped stream closed", fmt.Errorf("read: %w", ErrStreamClosed), true},
		{"eof", io.EOF, true},
		{"reset", errors.New("connection reset by peer"), false},
		{"deadline", context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isCleanClose(tt.err); got != tt.want {
				t.Fatalf("isCleanClose(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
