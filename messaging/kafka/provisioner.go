package kafka

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/harphies/go.eventstream.io/observability/prommetrics"
)

// TopicProvisioner issues idempotent "create topic if absent" requests.
// Failures are returned to the caller as-is; retrying is the caller's decision.
type TopicProvisioner struct {
	admin   AdminClient
	logger  *zap.Logger
	metrics *prommetrics.OperationMetrics
}

// ProvisionerOption applies optional configuration to a TopicProvisioner.
type ProvisionerOption func(*TopicProvisioner)

// WithProvisionerMetrics records every Ensure under the "provision" operation.
func WithProvisionerMetrics(m *prommetrics.OperationMetrics) ProvisionerOption {
	return func(p *TopicProvisioner) {
		p.metrics = m
	}
}

func NewTopicProvisioner(logger *zap.Logger, admin AdminClient, opts ...ProvisionerOption) *TopicProvisioner {
	p := &TopicProvisioner{
		admin:  admin,
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ensure creates spec's topic with its retention policy. Unset retention fields
// take the default policy. A topic that already exists on the cluster counts as success.
func (p *TopicProvisioner) Ensure(ctx context.Context, spec TopicSpec) error {
	spec.Retention.applyDefaults()

	ctx, span := newOTELSpan(ctx, "TopicProvisioner.Ensure")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination.name", spec.Name),
		attribute.Int("kafka.partitions", spec.NumPartitions),
		attribute.Int("kafka.replicas", spec.NumReplicas),
	)

	timer := p.metrics.Start("provision")

	if err := spec.Validate(); err != nil {
		timer.Failure("invalid_spec")
		span.SetStatus(codes.Error, err.Error())
		return &ProvisionError{Topic: spec.Name, Err: err}
	}

	err := p.admin.CreateTopic(ctx, spec.Name, spec.NumPartitions, spec.NumReplicas, spec.Retention.Configs())
	switch {
	case err == nil:
		p.logger.Info("topic creation kafka integration complete",
			zap.String("topic", spec.Name),
			zap.Int("partitions", spec.NumPartitions),
			zap.Int("replicas", spec.NumReplicas),
		)
	case errors.Is(err, ErrTopicAlreadyExists):
		p.logger.Info("topic already exists, nothing to create", zap.String("topic", spec.Name))
	default:
		timer.Failure("create_topic")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error("topic creation failed", zap.String("topic", spec.Name), zap.Error(err))
		return &ProvisionError{Topic: spec.Name, Err: err}
	}

	timer.Success()
	return nil
}

// Close releases the admin client.
func (p *TopicProvisioner) Close() error {
	return p.admin.Close()
}
