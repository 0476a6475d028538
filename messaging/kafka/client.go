package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// confluentDriver opens librdkafka-backed admin and producer handles.
type confluentDriver struct {
	logger *zap.Logger
}

func (d *confluentDriver) Name() string { return DriverConfluent }

func (d *confluentDriver) NewAdmin(cfg *BrokerConfig) (AdminClient, error) {
	cm, err := confluentConfigMap(cfg, cfg.ClientID+"-admin")
	if err != nil {
		return nil, err
	}
	client, err := kafka.NewAdminClient(cm)
	if err != nil {
		d.logger.Error("failed to create kafka admin client", zap.Error(err))
		return nil, fmt.Errorf("kafka: new admin client: %w", err)
	}
	return &confluentAdmin{client: client, timeout: cfg.AdminTimeout}, nil
}

func (d *confluentDriver) NewProducer(cfg *BrokerConfig, opts ProducerOptions) (Producer, error) {
	cm, err := confluentConfigMap(cfg, opts.ClientID)
	if err != nil {
		return nil, err
	}
	if err := cm.SetKey("compression.type", cfg.Compression); err != nil {
		return nil, err
	}
	if err := cm.SetKey("acks", "all"); err != nil {
		return nil, err
	}

	client, err := kafka.NewProducer(cm)
	if err != nil {
		d.logger.Error("failed to establish connection with kafka", zap.Error(err))
		return nil, fmt.Errorf("kafka: new producer: %w", err)
	}

	p := &confluentProducer{
		client: client,
		logger: d.logger,
		opts:   opts,
	}
	go p.deliveries()

	d.logger.Info("successfully established connection with kafka",
		zap.String("client_id", opts.ClientID),
		zap.String("bootstrap_servers", cfg.BootstrapServers()),
	)
	return p, nil
}

type confluentAdmin struct {
	client  *kafka.AdminClient
	timeout time.Duration
}

func (a *confluentAdmin) CreateTopic(ctx context.Context, name string, partitions, replicas int, configs map[string]string) error {
	results, err := a.client.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             name,
		NumPartitions:     partitions,
		ReplicationFactor: replicas,
		Config:            configs,
	}}, kafka.SetAdminOperationTimeout(a.timeout))
	if err != nil {
		return err
	}
	for _, r := range results {
		switch r.Error.Code() {
		case kafka.ErrNoError:
		case kafka.ErrTopicAlreadyExists:
			return fmt.Errorf("%w: %s", ErrTopicAlreadyExists, r.Topic)
		default:
			return r.Error
		}
	}
	return nil
}

func (a *confluentAdmin) Close() error {
	a.client.Close()
	return nil
}

type confluentProducer struct {
	client *kafka.Producer
	logger *zap.Logger
	opts   ProducerOptions
}

func (p *confluentProducer) Produce(_ context.Context, msg *Message) error {
	topic := msg.Topic
	km := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:       msg.Key,
		Value:     msg.Value,
		Timestamp: msg.Timestamp,
	}
	for _, h := range msg.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: h.Key, Value: h.Value})
	}
	// a nil delivery channel routes the report to Events(), drained by deliveries()
	return p.client.Produce(km, nil)
}

func (p *confluentProducer) Flush(timeout time.Duration) (int, error) {
	return p.client.Flush(int(timeout / time.Millisecond)), nil
}

func (p *confluentProducer) Close() error {
	p.client.Close()
	return nil
}

func (p *confluentProducer) deliveries() {
	for e := range p.client.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			p.opts.deliver(fromConfluentMessage(ev), ev.TopicPartition.Error)
		case kafka.Error:
			p.logger.Warn("kafka client error", zap.String("client_id", p.opts.ClientID), zap.Error(ev))
		}
	}
}

func fromConfluentMessage(km *kafka.Message) *Message {
	msg := &Message{
		Key:       km.Key,
		Value:     km.Value,
		Timestamp: km.Timestamp,
	}
	if km.TopicPartition.Topic != nil {
		msg.Topic = *km.TopicPartition.Topic
	}
	for _, h := range km.Headers {
		msg.Headers = append(msg.Headers, Header{Key: h.Key, Value: h.Value})
	}
	return msg
}
