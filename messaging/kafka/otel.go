package kafka

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const otelName = "messaging/kafka"

func newOTELSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(otelName).Start(ctx, name)
}
