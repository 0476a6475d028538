package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
	"go.uber.org/zap"

	"github.com/harphies/go.eventstream.io/messaging/kafka/msk"
)

// franzDriver opens franz-go clients; it is the only driver that speaks AWS MSK IAM.
type franzDriver struct {
	logger *zap.Logger
}

func (d *franzDriver) Name() string { return DriverFranz }

func (d *franzDriver) NewAdmin(cfg *BrokerConfig) (AdminClient, error) {
	opts, err := franzOptions(cfg, cfg.ClientID+"-admin", d.logger)
	if err != nil {
		return nil, err
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		d.logger.Error("failed to create franz admin client", zap.Error(err))
		return nil, fmt.Errorf("kafka: new admin client: %w", err)
	}
	return &franzAdmin{admin: kadm.NewClient(client), timeout: cfg.AdminTimeout}, nil
}

func (d *franzDriver) NewProducer(cfg *BrokerConfig, opts ProducerOptions) (Producer, error) {
	kopts, err := franzOptions(cfg, opts.ClientID, d.logger)
	if err != nil {
		return nil, err
	}
	codec, err := franzCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	kopts = append(kopts, kgo.ProducerBatchCompression(codec))

	client, err := kgo.NewClient(kopts...)
	if err != nil {
		d.logger.Error("failed to establish connection with kafka", zap.Error(err))
		return nil, fmt.Errorf("kafka: new franz client: %w", err)
	}
	d.logger.Info("franz producer ready", zap.String("client_id", opts.ClientID), zap.Strings("brokers", cfg.hosts()))
	return &franzProducer{client: client, opts: opts}, nil
}

func franzOptions(cfg *BrokerConfig, clientID string, logger *zap.Logger) ([]kgo.Opt, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.hosts()...),
		kgo.ClientID(clientID),
	}

	switch cfg.SASLMechanism {
	case "":
	case SASLMechanismPlain:
		opts = append(opts, kgo.SASL(plain.Auth{User: cfg.SASLUsername, Pass: cfg.SASLPassword}.AsMechanism()))
	case SASLMechanismSHA256:
		opts = append(opts, kgo.SASL(scram.Auth{User: cfg.SASLUsername, Pass: cfg.SASLPassword}.AsSha256Mechanism()))
	case SASLMechanismSHA512:
		opts = append(opts, kgo.SASL(scram.Auth{User: cfg.SASLUsername, Pass: cfg.SASLPassword}.AsSha512Mechanism()))
	case SASLMechanismAWSMSKIAM:
		mechanism, err := msk.IAMMechanism(logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kgo.SASL(mechanism))
	default:
		return nil, fmt.Errorf("kafka: sasl mechanism %s is not supported by the %s driver", cfg.SASLMechanism, DriverFranz)
	}

	if cfg.useTLS() || cfg.SASLMechanism == SASLMechanismAWSMSKIAM {
		opts = append(opts, kgo.Dialer((&tls.Dialer{NetDialer: &net.Dialer{Timeout: 10 * time.Second}}).DialContext))
	}
	return opts, nil
}

func franzCompression(name string) (kgo.CompressionCodec, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return kgo.NoCompression(), nil
	case "gzip":
		return kgo.GzipCompression(), nil
	case "snappy":
		return kgo.SnappyCompression(), nil
	case "lz4":
		return kgo.Lz4Compression(), nil
	case "zstd":
		return kgo.ZstdCompression(), nil
	default:
		return kgo.NoCompression(), fmt.Errorf("kafka: invalid compression %q", name)
	}
}

type franzAdmin struct {
	admin   *kadm.Client
	timeout time.Duration
}

func (a *franzAdmin) CreateTopic(ctx context.Context, name string, partitions, replicas int, configs map[string]string) error {
	if _, ok := ctx.Deadline(); !ok && a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	entries := make(map[string]*string, len(configs))
	for k, v := range configs {
		v := v
		entries[k] = &v
	}
	resps, err := a.admin.CreateTopics(ctx, int32(partitions), int16(replicas), entries, name)
	if err != nil {
		return err
	}
	resp, ok := resps[name]
	if !ok {
		return fmt.Errorf("kafka: no create response for topic %s", name)
	}
	if errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("%w: %s", ErrTopicAlreadyExists, name)
	}
	return resp.Err
}

func (a *franzAdmin) Close() error {
	a.admin.Close()
	return nil
}

type franzProducer struct {
	client *kgo.Client
	opts   ProducerOptions
}

func (p *franzProducer) Produce(ctx context.Context, msg *Message) error {
	rec := &kgo.Record{
		Topic:     msg.Topic,
		Key:       msg.Key,
		Value:     msg.Value,
		Timestamp: msg.Timestamp,
	}
	for _, h := range msg.Headers {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: h.Key, Value: h.Value})
	}
	// the record outlives the caller's request; only its values travel with it
	p.client.Produce(context.WithoutCancel(ctx), rec, func(_ *kgo.Record, err error) {
		p.opts.deliver(msg, err)
	})
	return nil
}

func (p *franzProducer) Flush(timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return int(p.client.BufferedProduceRecords()), nil
		}
		return int(p.client.BufferedProduceRecords()), err
	}
	return 0, nil
}

func (p *franzProducer) Close() error {
	p.client.Close()
	return nil
}
