package logger

import (
	"context"
	"log/slog"
)

type contextKey int

const (
	connIDKey contextKey = iota
	loggerKey
)

// WithConnID returns a new context carrying the downstream or upstream
// connection identifier.
func WithConnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connIDKey, id)
}

// ConnID extracts the connection ID from the context.
// Returns an empty string if none is set.
func ConnID(ctx context.Context) string {
	id, _ := ctx.Value(connIDKey).(string)
	return id
}

// WithLogger stores l in the context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// From returns the logger stored in ctx, or slog.Default(). A connection ID
// present in ctx is attached as "conn_id".
func From(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(loggerKey).(*slog.Logger)
	if !ok || l == nil {
		l = slog.Default()
	}
	if id := ConnID(ctx); id != "" {
		l = l.With("conn_id", id)
	}
	return l
}
