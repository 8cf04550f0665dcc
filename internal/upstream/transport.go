package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/coder/websocket"
)

// MessageType distinguishes text from binary frames.
type MessageType int

const (
	MessageText MessageType = iota + 1
	MessageBinary
)

// Stream is one open duplex connection to the upstream endpoint.
type Stream interface {
	// Read blocks until the next data frame arrives.
	Read(ctx context.Context) (MessageType, []byte, error)
	// Write sends one text frame.
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens Streams. The WebSocket dialer is the production implementation;
// tests substitute fakes.
type Dialer interface {
	Dial(ctx context.Context, url string) (Stream, error)
}

// readLimit bounds a single upstream frame. Log notifications for busy
// transactions easily exceed the library default of 32 KiB.
const readLimit = 8 << 20

// WebSocketDialer dials upstream endpoints with coder/websocket.
type WebSocketDialer struct {
	Options *websocket.DialOptions
}

// Dial implements Dialer.
func (d WebSocketDialer) Dial(ctx context.Context, url string) (Stream, error) {
	conn, resp, err := websocket.Dial(ctx, url, d.Options)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s: status %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}
	conn.SetReadLimit(readLimit)
	return &wsStream{conn: conn}, nil
}

type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Read(ctx context.Context) (MessageType, []byte, error) {
	typ, data, err := s.conn.Read(ctx)
	if err != nil {
		return 0, nil, err
	}
	if typ == websocket.MessageBinary {
		return MessageBinary, data, nil
	}
	return MessageText, data, nil
}

func (s *wsStream) Write(ctx context.Context, data []byte) error {
	return s.conn.Write(ctx, websocket.MessageText, data)
}

func (s *wsStream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

// isCleanClose reports whether err is the peer closing the stream rather than
// a transport failure.
func isCleanClose(err error) bool {
	return websocket.CloseStatus(err) != -1 || errors.Is(err, ErrStreamClosed) || errors.Is(err, io.EOF)
}

// ErrStreamClosed lets non-WebSocket streams signal a clean close.
var ErrStreamClosed = errors.New("stream closed by peer")
