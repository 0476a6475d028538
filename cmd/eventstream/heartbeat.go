package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/harphies/go.eventstream.io/config"
	"github.com/harphies/go.eventstream.io/messaging/kafka"
)

// Heartbeat is the event emitted on every tick.
type Heartbeat struct {
	Service   string `json:"service"`
	Topic     string `json:"topic"`
	Sequence  int64  `json:"sequence"`
	EmittedAt int64  `json:"emitted_at"`
}

type heartbeat struct {
	spec        kafka.TopicSpec
	cfg         *kafka.BrokerConfig
	settings    config.PublisherConfig
	serviceName string
	registry    *kafka.TopicRegistry
	provisioner *kafka.TopicProvisioner
	factory     kafka.ProducerFactory
	logger      *zap.Logger
	opts        []kafka.PublisherOption
}

// run publishes one Heartbeat per interval until ctx is done, then shuts the
// publisher down within the configured shutdown timeout. A publish failure is
// logged and the loop keeps going. A drain timeout is logged, not returned.
func (h *heartbeat) run(ctx context.Context) error {
	publisher, err := kafka.NewEventPublisher(ctx, h.spec, h.cfg, h.registry, h.provisioner, h.factory, h.opts...)
	if err != nil {
		return err
	}
	logger := h.logger.With(zap.String("topic", publisher.Topic()))

	ticker := time.NewTicker(h.settings.Interval)
	defer ticker.Stop()

	var seq int64
	for {
		select {
		case <-ctx.Done():
			return h.shutdown(publisher, logger)
		case <-ticker.C:
			seq++
			key := publisher.NextKey()
			event := Heartbeat{
				Service:   h.serviceName,
				Topic:     publisher.Topic(),
				Sequence:  seq,
				EmittedAt: key,
			}
			if err := publisher.Publish(ctx, key, event); err != nil {
				logger.Warn("heartbeat not published", zap.Int64("sequence", seq), zap.Error(err))
			}
		}
	}
}

func (h *heartbeat) shutdown(publisher *kafka.EventPublisher, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.settings.ShutdownTimeout)
	defer cancel()

	err := publisher.Shutdown(ctx)
	var drain *kafka.DrainTimeoutError
	if errors.As(err, &drain) {
		logger.Warn("heartbeats lost on shutdown", zap.Int("remaining", drain.Remaining))
		return nil
	}
	return err
}
