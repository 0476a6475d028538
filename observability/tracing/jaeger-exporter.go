package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/harphies/go.eventstream.io/utils"
)

const defaultJaegerEndpoint = "http://localhost:14268/api/traces"

// InitProviderWithJaegerExporter exports spans to a Jaeger collector and returns the
// provider's shutdown function.
func (t *DistributedTracing) InitProviderWithJaegerExporter(ctx context.Context) (func(context.Context) error, error) {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(t.jaegerCollectorEndpoint())))
	if err != nil {
		return nil, fmt.Errorf("create jaeger exporter: %w", err)
	}
	return t.install(ctx, "jaeger", trace.WithBatcher(exp)).Shutdown, nil
}

// jaegerCollectorEndpoint prefers the configured endpoint, then the environment.
func (t *DistributedTracing) jaegerCollectorEndpoint() string {
	if t.jaegerEndpoint != "" {
		return t.jaegerEndpoint
	}
	return utils.GetEnv("OPEN_TELEMETRY_COLLECTOR_JAEGER_EXPORTER_ENDPOINT", defaultJaegerEndpoint)
}
