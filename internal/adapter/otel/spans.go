package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "solrelay"

// StartSessionSpan starts a span covering one upstream connection session.
func StartSessionSpan(ctx context.Context, sessionID, endpoint string, attempt int64) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "upstream.session",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("upstream.endpoint", endpoint),
			attribute.Int64("upstream.attempt", attempt),
		),
	)
}

// StartClientSpan starts a span covering one downstream client connection.
func StartClientSpan(ctx context.Context, connID, remote string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "client.stream",
		trace.WithAttributes(
			attribute.String("conn.id", connID),
			attribute.String("client.remote", remote),
		),
	)
}
