package kafka

import (
	"testing"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBrokerConfigDefaults(t *testing.T) {
	cfg := NewBrokerConfig()

	assert.Equal(t, []string{"kafka0:9092", "kafka0:9093", "kafka0:9094"}, cfg.Brokers)
	assert.Equal(t, "http://schema-registry:8081/", cfg.SchemaRegistryURL)
	assert.Equal(t, DriverConfluent, cfg.Driver)
	assert.Equal(t, SerdeJSON, cfg.Serde)
	assert.Equal(t, "lz4", cfg.Compression)
	assert.Equal(t, DefaultFlushTimeout, cfg.FlushTimeout)
	assert.Equal(t, DefaultAdminTimeout, cfg.AdminTimeout)
	require.NoError(t, cfg.Validate())

	// defaults must not alias the package-level slice
	cfg.Brokers[0] = "elsewhere:9092"
	assert.Equal(t, "kafka0:9092", DefaultBrokers[0])
}

func TestBrokerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BrokerConfig)
		wantErr string
	}{
		{"empty broker", func(c *BrokerConfig) { c.Brokers = []string{"kafka0:9092", " "} }, "empty broker address"},
		{"unknown driver", func(c *BrokerConfig) { c.Driver = "kafkajs" }, "unknown driver"},
		{"unknown serde", func(c *BrokerConfig) { c.Serde = "protobuf" }, "unknown serde"},
		{"avro without registry", func(c *BrokerConfig) { c.Serde = SerdeAvro; c.SchemaRegistryURL = "" }, "schema registry"},
		{"sasl without user", func(c *BrokerConfig) { c.SASLMechanism = SASLMechanismPlain }, "requires a username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewBrokerConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("msk iam needs no username", func(t *testing.T) {
		cfg := NewBrokerConfig()
		cfg.SASLMechanism = SASLMechanismAWSMSKIAM
		assert.NoError(t, cfg.Validate())
	})
}

func TestBootstrapServersStripsListenerPrefix(t *testing.T) {
	cfg := BrokerConfig{Brokers: []string{"PLAINTEXT://kafka0:29092", " kafka1:9092", "SASL_SSL://kafka2:9093"}}
	assert.Equal(t, "kafka0:29092,kafka1:9092,kafka2:9093", cfg.BootstrapServers())
}

func TestUseTLS(t *testing.T) {
	for protocol, want := range map[string]bool{
		"":               false,
		"PLAINTEXT":      false,
		"SASL_PLAINTEXT": false,
		"SSL":            true,
		"sasl_ssl":       true,
	} {
		cfg := BrokerConfig{SecurityProtocol: protocol}
		assert.Equal(t, want, cfg.useTLS(), protocol)
	}
}

func TestNewDriver(t *testing.T) {
	logger := zaptest.NewLogger(t)
	for _, name := range []string{DriverConfluent, DriverSarama, DriverFranz} {
		cfg := NewBrokerConfig()
		cfg.Driver = name
		d, err := NewDriver(&cfg, logger)
		require.NoError(t, err)
		assert.Equal(t, name, d.Name())
	}

	cfg := NewBrokerConfig()
	cfg.Driver = "kafkajs"
	_, err := NewDriver(&cfg, logger)
	assert.Error(t, err)
}

func TestConfluentConfigMap(t *testing.T) {
	cfg := NewBrokerConfig()
	cfg.SecurityProtocol = "SASL_SSL"
	cfg.SASLMechanism = SASLMechanismSHA512
	cfg.SASLUsername = "svc"
	cfg.SASLPassword = "secret"

	cm, err := confluentConfigMap(&cfg, "eventstream-orders")
	require.NoError(t, err)
	assert.Equal(t, kafka.ConfigValue("kafka0:9092,kafka0:9093,kafka0:9094"), (*cm)["bootstrap.servers"])
	assert.Equal(t, kafka.ConfigValue("eventstream-orders"), (*cm)["client.id"])
	assert.Equal(t, kafka.ConfigValue("SASL_SSL"), (*cm)["security.protocol"])
	assert.Equal(t, kafka.ConfigValue(SASLMechanismSHA512), (*cm)["sasl.mechanisms"])
	assert.Equal(t, kafka.ConfigValue("svc"), (*cm)["sasl.username"])

	cfg.SASLMechanism = SASLMechanismAWSMSKIAM
	_, err = confluentConfigMap(&cfg, "x")
	assert.Error(t, err)
}
