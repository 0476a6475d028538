package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harphies/go.eventstream.io/messaging/kafka"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "eventstream", cfg.ServiceName)
	assert.Equal(t, kafka.DefaultBrokers, cfg.Kafka.Brokers)
	assert.Equal(t, kafka.DriverConfluent, cfg.Kafka.Driver)
	assert.Equal(t, kafka.SerdeJSON, cfg.Kafka.Serde)
	assert.Equal(t, 10*time.Second, cfg.Kafka.FlushTimeout)
	require.Len(t, cfg.Topics, 1)
	assert.Equal(t, "org.eventstream.heartbeat", cfg.Topics[0].Name)
	assert.Equal(t, kafka.DefaultRetentionPolicy(), cfg.Topics[0].Retention)
	assert.Equal(t, 5*time.Second, cfg.Publisher.Interval)
	assert.Equal(t, 9464, cfg.Server.Port)
	assert.Equal(t, "eventstream", cfg.Tracing.ServiceName)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventstream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service_name: billing
kafka:
  brokers: ["PLAINTEXT://kafka0:29092"]
  driver: sarama
  flush_timeout: 3s
topics:
  - name: orders
    partitions: 3
  - name: payments
    replicas: 2
    retention:
      cleanup_policy: delete
publisher:
  interval: 250ms
`), 0o600))

	t.Setenv("EVENTSTREAM_KAFKA_DRIVER", "franz")
	t.Setenv("EVENTSTREAM_SERVER_PORT", "9999")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "billing", cfg.ServiceName)
	assert.Equal(t, []string{"PLAINTEXT://kafka0:29092"}, cfg.Kafka.Brokers)
	assert.Equal(t, kafka.DriverFranz, cfg.Kafka.Driver)
	assert.Equal(t, 3*time.Second, cfg.Kafka.FlushTimeout)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Publisher.Interval)

	require.Len(t, cfg.Topics, 2)
	assert.Equal(t, kafka.TopicSpec{Name: "orders", NumPartitions: 3, NumReplicas: 1, Retention: kafka.DefaultRetentionPolicy()}, cfg.Topics[0])
	assert.Equal(t, 1, cfg.Topics[1].NumPartitions)
	assert.Equal(t, 2, cfg.Topics[1].NumReplicas)
	assert.Equal(t, "delete", cfg.Topics[1].Retention.CleanupPolicy)
	assert.Equal(t, "lz4", cfg.Topics[1].Retention.CompressionType)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := map[string]string{
		"duplicate topic": "topics:\n  - name: orders\n  - name: orders\n",
		"unknown driver":  "kafka:\n  driver: kafkajs\n",
		"bad partitions":  "topics:\n  - name: orders\n    partitions: -1\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "eventstream.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
