package kafka

import (
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// confluentConfigMap builds the librdkafka connection settings shared by admin and producer handles.
func confluentConfigMap(cfg *BrokerConfig, clientID string) (*kafka.ConfigMap, error) {
	cm := kafka.ConfigMap{
		"bootstrap.servers": cfg.BootstrapServers(),
		"client.id":         clientID,
	}
	if cfg.SecurityProtocol != "" {
		cm["security.protocol"] = cfg.SecurityProtocol
	}

	switch cfg.SASLMechanism {
	case "":
	case SASLMechanismPlain, SASLMechanismSHA256, SASLMechanismSHA512:
		cm["sasl.mechanisms"] = cfg.SASLMechanism
		cm["sasl.username"] = cfg.SASLUsername
		cm["sasl.password"] = cfg.SASLPassword
	default:
		return nil, fmt.Errorf("kafka: sasl mechanism %s is not supported by the %s driver", cfg.SASLMechanism, DriverConfluent)
	}
	return &cm, nil
}
