package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "classpad"

// StartSessionSpan starts a span for a live session operation.
func StartSessionSpan(ctx context.Context, op, sessionID, sectionID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, op,
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("section.id", sectionID),
		),
	)
}

// StartBroadcastSpan starts a span for a realtime broadcast.
func StartBroadcastSpan(ctx context.Context, channel, event string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "broadcast",
		trace.WithAttributes(
			attribute.String("broadcast.channel", channel),
			attribute.String("broadcast.event", event),
		),
	)
}
