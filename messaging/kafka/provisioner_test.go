package kafka_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/harphies/go.eventstream.io/messaging/kafka"
	"github.com/harphies/go.eventstream.io/messaging/kafka/kafkatest"
	"github.com/harphies/go.eventstream.io/observability/prommetrics"
)

func TestProvisionerEnsureSendsRetentionPolicy(t *testing.T) {
	admin := kafkatest.NewAdmin()
	p := kafka.NewTopicProvisioner(zaptest.NewLogger(t), admin)

	spec := kafka.NewTopicSpec("orders")
	spec.NumPartitions = 3
	require.NoError(t, p.Ensure(context.Background(), spec))

	calls := admin.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, kafkatest.CreateTopicCall{
		Name:       "orders",
		Partitions: 3,
		Replicas:   1,
		Configs: map[string]string{
			"cleanup.policy":       "compact",
			"compression.type":     "lz4",
			"delete.retention.ms":  "100",
			"file.delete.delay.ms": "100",
		},
	}, calls[0])
}

func TestProvisionerEnsureFillsMissingRetention(t *testing.T) {
	admin := kafkatest.NewAdmin()
	p := kafka.NewTopicProvisioner(zaptest.NewLogger(t), admin)

	spec := kafka.TopicSpec{Name: "orders", NumPartitions: 1, NumReplicas: 1}
	require.NoError(t, p.Ensure(context.Background(), spec))

	calls := admin.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, kafka.DefaultRetentionPolicy().Configs(), calls[0].Configs)
	assert.Empty(t, spec.Retention.CleanupPolicy)
}

func TestProvisionerEnsureTreatsExistingTopicAsSuccess(t *testing.T) {
	admin := kafkatest.NewAdmin().WithExisting("orders")
	metrics := prommetrics.NewOperationMetrics("test", "kafka", "provisioner")
	p := kafka.NewTopicProvisioner(zaptest.NewLogger(t), admin, kafka.WithProvisionerMetrics(metrics))

	require.NoError(t, p.Ensure(context.Background(), kafka.NewTopicSpec("orders")))
	require.NoError(t, p.Ensure(context.Background(), kafka.NewTopicSpec("orders")))

	assert.Len(t, admin.Calls(), 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Requests("provision")))
	assert.Zero(t, testutil.ToFloat64(metrics.Failures("provision", "create_topic")))
}

func TestProvisionerEnsureReportsOtherFailures(t *testing.T) {
	admin := kafkatest.NewAdmin()
	admin.Err = errors.New("not authorized to create topics")
	metrics := prommetrics.NewOperationMetrics("test", "kafka", "provisioner")
	p := kafka.NewTopicProvisioner(zaptest.NewLogger(t), admin, kafka.WithProvisionerMetrics(metrics))

	err := p.Ensure(context.Background(), kafka.NewTopicSpec("orders"))

	var pe *kafka.ProvisionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "orders", pe.Topic)
	assert.ErrorIs(t, err, admin.Err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Failures("provision", "create_topic")))
}

func TestProvisionerEnsureRejectsInvalidSpec(t *testing.T) {
	admin := kafkatest.NewAdmin()
	p := kafka.NewTopicProvisioner(zaptest.NewLogger(t), admin)

	err := p.Ensure(context.Background(), kafka.TopicSpec{Name: "orders"})

	assert.ErrorIs(t, err, kafka.ErrInvalidTopicSpec)
	var pe *kafka.ProvisionError
	assert.ErrorAs(t, err, &pe)
	assert.Empty(t, admin.Calls())
}

func TestProvisionerCloseReleasesAdmin(t *testing.T) {
	admin := kafkatest.NewAdmin()
	p := kafka.NewTopicProvisioner(zaptest.NewLogger(t), admin)
	require.NoError(t, p.Close())
	assert.True(t, admin.Closed())
}
