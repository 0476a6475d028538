// Package config loads the service configuration from defaults, an optional
// YAML file and EVENTSTREAM_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/harphies/go.eventstream.io/messaging/kafka"
	"github.com/harphies/go.eventstream.io/observability/logging"
	"github.com/harphies/go.eventstream.io/observability/tracing"
)

const EnvPrefix = "EVENTSTREAM"

// ServerConfig configures the ops HTTP server (metrics, health, pprof).
type ServerConfig struct {
	Port          int     `mapstructure:"port"`
	RateLimit     float64 `mapstructure:"rate_limit"`
	MaxConcurrent int     `mapstructure:"max_concurrent"`
}

// PublisherConfig drives the heartbeat publishers of the eventstream command.
type PublisherConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type Config struct {
	ServiceName string             `mapstructure:"service_name"`
	Kafka       kafka.BrokerConfig `mapstructure:"kafka"`
	Topics      []kafka.TopicSpec  `mapstructure:"topics"`
	Publisher   PublisherConfig    `mapstructure:"publisher"`
	Server      ServerConfig       `mapstructure:"server"`
	Logging     logging.Config     `mapstructure:"logging"`
	Tracing     tracing.Config     `mapstructure:"tracing"`
}

func defaults() map[string]interface{} {
	retention := kafka.DefaultRetentionPolicy()
	return map[string]interface{}{
		"service_name": "eventstream",

		"kafka.brokers":             kafka.DefaultBrokers,
		"kafka.schema_registry_url": kafka.DefaultSchemaRegistryURL,
		"kafka.driver":              kafka.DriverConfluent,
		"kafka.client_id":           kafka.DefaultClientID,
		"kafka.security_protocol":   "",
		"kafka.sasl_mechanism":      "",
		"kafka.sasl_username":       "",
		"kafka.sasl_password":       "",
		"kafka.compression":         "lz4",
		"kafka.serde":               kafka.SerdeJSON,
		"kafka.admin_timeout":       kafka.DefaultAdminTimeout,
		"kafka.flush_timeout":       kafka.DefaultFlushTimeout,

		"topics": []map[string]interface{}{{
			"name":       "org.eventstream.heartbeat",
			"partitions": 1,
			"replicas":   1,
			"retention": map[string]interface{}{
				"cleanup_policy":       retention.CleanupPolicy,
				"compression_type":     retention.CompressionType,
				"delete_retention_ms":  retention.DeleteRetentionMs,
				"file_delete_delay_ms": retention.FileDeleteDelayMs,
			},
		}},

		"publisher.interval":         5 * time.Second,
		"publisher.shutdown_timeout": 15 * time.Second,

		"server.port":           9464,
		"server.rate_limit":     10.0,
		"server.max_concurrent": 16,

		"logging.level": "info",
		"logging.json":  false,

		"tracing.enabled":     false,
		"tracing.exporter":    "otlp",
		"tracing.environment": "development",
	}
}

// Load reads the configuration. path may be empty, in which case only defaults
// and the environment are used.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, val := range defaults() {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %q: %w", path, err)
		}
	}

	var cfg Config
	if err := decode(v.AllSettings(), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func decode(input map[string]interface{}, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  target,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func (c *Config) applyDefaults() {
	c.Kafka.ApplyDefaults()
	for i := range c.Topics {
		c.Topics[i].ApplyDefaults()
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = c.ServiceName
	}
}

// Validate checks the broker settings and every topic spec.
func (c Config) Validate() error {
	if err := c.Kafka.Validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Topics))
	for _, t := range c.Topics {
		if err := t.Validate(); err != nil {
			return err
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("duplicate topic %q", t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	if c.Publisher.Interval <= 0 {
		return fmt.Errorf("publisher interval must be positive")
	}
	return nil
}
