package kafka

import (
	"fmt"
	"strings"
	"time"
)

const (
	DriverConfluent = "confluent"
	DriverSarama    = "sarama"
	DriverFranz     = "franz"

	SerdeJSON = "json"
	SerdeAvro = "avro"

	SASLMechanismPlain     = "PLAIN"
	SASLMechanismSHA256    = "SCRAM-SHA-256"
	SASLMechanismSHA512    = "SCRAM-SHA-512"
	SASLMechanismAWSMSKIAM = "AWS_MSK_IAM"
)

// DefaultBrokers is the local development cluster.
var DefaultBrokers = []string{"kafka0:9092", "kafka0:9093", "kafka0:9094"}

const (
	DefaultSchemaRegistryURL = "http://schema-registry:8081/"
	DefaultClientID          = "eventstream"
	DefaultAdminTimeout      = 10 * time.Second
	DefaultFlushTimeout      = 10 * time.Second
)

// BrokerConfig holds the connection parameters shared by every publisher in the process.
// It is loaded once and must be treated as read-only afterwards.
type BrokerConfig struct {
	Brokers           []string      `mapstructure:"brokers"`
	SchemaRegistryURL string        `mapstructure:"schema_registry_url"`
	Driver            string        `mapstructure:"driver"`
	ClientID          string        `mapstructure:"client_id"`
	SecurityProtocol  string        `mapstructure:"security_protocol"`
	SASLMechanism     string        `mapstructure:"sasl_mechanism"`
	SASLUsername      string        `mapstructure:"sasl_username"`
	SASLPassword      string        `mapstructure:"sasl_password"`
	Compression       string        `mapstructure:"compression"`
	Serde             string        `mapstructure:"serde"`
	AdminTimeout      time.Duration `mapstructure:"admin_timeout"`
	FlushTimeout      time.Duration `mapstructure:"flush_timeout"`
}

// NewBrokerConfig returns the development defaults.
func NewBrokerConfig() BrokerConfig {
	c := BrokerConfig{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero values in place.
func (c *BrokerConfig) ApplyDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = append([]string(nil), DefaultBrokers...)
	}
	if c.SchemaRegistryURL == "" {
		c.SchemaRegistryURL = DefaultSchemaRegistryURL
	}
	if c.Driver == "" {
		c.Driver = DriverConfluent
	}
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}
	if c.Compression == "" {
		c.Compression = "lz4"
	}
	if c.Serde == "" {
		c.Serde = SerdeJSON
	}
	if c.AdminTimeout <= 0 {
		c.AdminTimeout = DefaultAdminTimeout
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = DefaultFlushTimeout
	}
}

// Validate performs cheap sanity checks.
func (c BrokerConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka: at least one broker address is required")
	}
	for _, b := range c.Brokers {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("kafka: empty broker address in %v", c.Brokers)
		}
	}
	switch c.Driver {
	case DriverConfluent, DriverSarama, DriverFranz:
	default:
		return fmt.Errorf("kafka: unknown driver %q", c.Driver)
	}
	switch c.Serde {
	case SerdeJSON:
	case SerdeAvro:
		if c.SchemaRegistryURL == "" {
			return fmt.Errorf("kafka: avro serde requires a schema registry url")
		}
	default:
		return fmt.Errorf("kafka: unknown serde %q", c.Serde)
	}
	if c.SASLMechanism != "" && c.SASLMechanism != SASLMechanismAWSMSKIAM && c.SASLUsername == "" {
		return fmt.Errorf("kafka: sasl mechanism %s requires a username", c.SASLMechanism)
	}
	return nil
}

// BootstrapServers returns the broker list in librdkafka form, without scheme prefixes.
func (c BrokerConfig) BootstrapServers() string {
	return strings.Join(c.hosts(), ",")
}

// hosts strips listener prefixes such as PLAINTEXT:// which only librdkafka understands.
func (c BrokerConfig) hosts() []string {
	out := make([]string, 0, len(c.Brokers))
	for _, b := range c.Brokers {
		b = strings.TrimSpace(b)
		if i := strings.Index(b, "://"); i >= 0 {
			b = b[i+3:]
		}
		out = append(out, b)
	}
	return out
}

func (c BrokerConfig) useTLS() bool {
	return strings.HasSuffix(strings.ToUpper(c.SecurityProtocol), "SSL")
}
