package kafka

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// AdminClient is the broker-admin collaborator used to create topics.
// Implementations must return an error wrapping ErrTopicAlreadyExists when
// the topic is already present on the cluster.
type AdminClient interface {
	CreateTopic(ctx context.Context, name string, partitions, replicas int, configs map[string]string) error
	Close() error
}

// AdminFactory opens admin clients.
type AdminFactory interface {
	NewAdmin(cfg *BrokerConfig) (AdminClient, error)
}

// Driver opens both halves of a client library.
type Driver interface {
	AdminFactory
	ProducerFactory
	Name() string
}

// NewDriver returns the driver selected by cfg.Driver.
func NewDriver(cfg *BrokerConfig, logger *zap.Logger) (Driver, error) {
	switch cfg.Driver {
	case DriverConfluent, "":
		return &confluentDriver{logger: logger}, nil
	case DriverSarama:
		return &saramaDriver{logger: logger}, nil
	case DriverFranz:
		return &franzDriver{logger: logger}, nil
	default:
		return nil, fmt.Errorf("kafka: unknown driver %q", cfg.Driver)
	}
}
