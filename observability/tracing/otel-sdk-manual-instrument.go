package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.uber.org/zap"
)

// Config selects the span exporter. Exporter is "otlp" (default) or "jaeger".
type Config struct {
	Enabled        bool   `mapstructure:"enabled"`
	Exporter       string `mapstructure:"exporter"`
	Environment    string `mapstructure:"environment"`
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// DistributedTracing configures and initialises an OpenTelemetry TracerProvider
// that exports spans via OTLP gRPC to an OpenTelemetry Collector, or to Jaeger.
type DistributedTracing struct {
	logger         *zap.Logger
	environment    string
	serviceName    string
	version        string
	jaegerEndpoint string
}

// Option applies optional configuration to DistributedTracing.
type Option func(*DistributedTracing)

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(version string) Option {
	return func(dt *DistributedTracing) {
		dt.version = version
	}
}

// WithJaegerEndpoint sets the collector endpoint used by the Jaeger exporter.
func WithJaegerEndpoint(endpoint string) Option {
	return func(dt *DistributedTracing) {
		dt.jaegerEndpoint = endpoint
	}
}

// NewDistributedTracingWithOpenTelemetry creates a new DistributedTracing instance.
func NewDistributedTracingWithOpenTelemetry(logger *zap.Logger, environment, serviceName string, opts ...Option) *DistributedTracing {
	dt := &DistributedTracing{
		logger:      logger,
		environment: environment,
		serviceName: serviceName,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// Setup installs the global tracer provider described by cfg and returns its shutdown
// function. A disabled config installs nothing and returns a no-op shutdown.
func Setup(ctx context.Context, logger *zap.Logger, cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	dt := NewDistributedTracingWithOpenTelemetry(logger, cfg.Environment, cfg.ServiceName, WithJaegerEndpoint(cfg.JaegerEndpoint))
	switch cfg.Exporter {
	case "", "otlp":
		tp, err := dt.InitProviderWithOpenTelemetryCollectorGrpcEndpoint(ctx)
		if err != nil {
			return nil, err
		}
		return tp.Shutdown, nil
	case "jaeger":
		return dt.InitProviderWithJaegerExporter(ctx)
	default:
		return nil, fmt.Errorf("tracing: unknown exporter %q", cfg.Exporter)
	}
}

// InitProviderWithOpenTelemetryCollectorGrpcEndpoint exports spans to an OpenTelemetry
// Collector over gRPC. The endpoint comes from OTEL_EXPORTER_OTLP_ENDPOINT.
func (t *DistributedTracing) InitProviderWithOpenTelemetryCollectorGrpcEndpoint(ctx context.Context) (*trace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create OTLP gRPC exporter: %w", err)
	}
	return t.install(ctx, "otlp", trace.WithSpanProcessor(trace.NewBatchSpanProcessor(exporter,
		trace.WithBatchTimeout(5*time.Second),
		trace.WithMaxExportBatchSize(512),
	))), nil
}

// install builds a provider around the exporter option and makes it the global
// provider, together with the W3C trace-context and baggage propagators.
func (t *DistributedTracing) install(ctx context.Context, exporter string, export trace.TracerProviderOption) *trace.TracerProvider {
	res, err := t.newResource(ctx)
	if err != nil {
		t.logger.Warn("tracing resource is incomplete", zap.Error(err))
	}
	tp := trace.NewTracerProvider(
		trace.WithSampler(t.getSampler()),
		trace.WithResource(res),
		export,
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.logger.Info("tracer provider installed",
		zap.String("exporter", exporter),
		zap.String("service", t.serviceName),
		zap.String("environment", t.environment),
	)
	return tp
}

// newResource describes this process. On a partial failure it still returns a
// usable resource together with the error.
func (t *DistributedTracing) newResource(ctx context.Context) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(t.serviceName),
		semconv.DeploymentEnvironment(t.environment),
	}
	if t.version != "" {
		attrs = append(attrs, semconv.ServiceVersion(t.version))
	}

	detected, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return resource.Default(), fmt.Errorf("detect resource: %w", err)
	}
	merged, err := resource.Merge(resource.Default(), detected)
	if err != nil {
		return detected, fmt.Errorf("merge resources: %w", err)
	}
	return merged, nil
}

// getSampler samples everything outside staging and production. Staging keeps half
// of the root traces and production a tenth; child spans follow their parent.
func (t *DistributedTracing) getSampler() trace.Sampler {
	switch t.environment {
	case "staging":
		return trace.ParentBased(trace.TraceIDRatioBased(0.5))
	case "prod", "production":
		return trace.ParentBased(trace.TraceIDRatioBased(0.1))
	default:
		return trace.AlwaysSample()
	}
}
