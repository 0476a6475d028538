package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

const saramaFlushPollInterval = 5 * time.Millisecond

// saramaDriver opens pure-Go admin and async producer handles.
type saramaDriver struct {
	logger *zap.Logger
}

func (d *saramaDriver) Name() string { return DriverSarama }

func (d *saramaDriver) NewAdmin(cfg *BrokerConfig) (AdminClient, error) {
	sc, err := newSaramaConfig(cfg, cfg.ClientID+"-admin")
	if err != nil {
		return nil, err
	}
	admin, err := sarama.NewClusterAdmin(cfg.hosts(), sc)
	if err != nil {
		d.logger.Error("failed to start sarama cluster admin", zap.Error(err))
		return nil, fmt.Errorf("kafka: new cluster admin: %w", err)
	}
	return &saramaAdmin{admin: admin}, nil
}

func (d *saramaDriver) NewProducer(cfg *BrokerConfig, opts ProducerOptions) (Producer, error) {
	sc, err := newSaramaConfig(cfg, opts.ClientID)
	if err != nil {
		return nil, err
	}
	prod, err := sarama.NewAsyncProducer(cfg.hosts(), sc)
	if err != nil {
		d.logger.Error("failed to start sarama producer", zap.Error(err))
		return nil, fmt.Errorf("kafka: new async producer: %w", err)
	}
	d.logger.Info("sarama producer ready", zap.String("client_id", opts.ClientID), zap.Strings("brokers", cfg.hosts()))
	return newSaramaProducer(prod, opts, cfg.FlushTimeout), nil
}

func newSaramaConfig(cfg *BrokerConfig, clientID string) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.ClientID = clientID

	// producer config for reliability
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Admin.Timeout = cfg.AdminTimeout

	codec, err := saramaCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	sc.Producer.Compression = codec

	switch cfg.SASLMechanism {
	case "":
	case SASLMechanismPlain:
		sc.Net.SASL.Enable = true
		sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	case SASLMechanismSHA256, SASLMechanismSHA512:
		mechanism := cfg.SASLMechanism
		sc.Net.SASL.Enable = true
		sc.Net.SASL.Mechanism = sarama.SASLMechanism(mechanism)
		sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return newScramClient(mechanism) }
	default:
		return nil, fmt.Errorf("kafka: sasl mechanism %s is not supported by the %s driver", cfg.SASLMechanism, DriverSarama)
	}
	if sc.Net.SASL.Enable {
		sc.Net.SASL.User = cfg.SASLUsername
		sc.Net.SASL.Password = cfg.SASLPassword
		sc.Net.SASL.Handshake = true
	}

	if cfg.useTLS() {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return sc, nil
}

func saramaCompression(name string) (sarama.CompressionCodec, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return sarama.CompressionNone, nil
	case "gzip":
		return sarama.CompressionGZIP, nil
	case "snappy":
		return sarama.CompressionSnappy, nil
	case "lz4":
		return sarama.CompressionLZ4, nil
	case "zstd":
		return sarama.CompressionZSTD, nil
	default:
		return sarama.CompressionNone, fmt.Errorf("kafka: invalid compression %q", name)
	}
}

type saramaAdmin struct {
	admin sarama.ClusterAdmin
}

func (a *saramaAdmin) CreateTopic(_ context.Context, name string, partitions, replicas int, configs map[string]string) error {
	entries := make(map[string]*string, len(configs))
	for k, v := range configs {
		v := v
		entries[k] = &v
	}
	err := a.admin.CreateTopic(name, &sarama.TopicDetail{
		NumPartitions:     int32(partitions),
		ReplicationFactor: int16(replicas),
		ConfigEntries:     entries,
	}, false)
	if isSaramaTopicExists(err) {
		return fmt.Errorf("%w: %s", ErrTopicAlreadyExists, name)
	}
	return err
}

func (a *saramaAdmin) Close() error {
	return a.admin.Close()
}

func isSaramaTopicExists(err error) bool {
	if err == nil {
		return false
	}
	var topicErr *sarama.TopicError
	if errors.As(err, &topicErr) {
		return topicErr.Err == sarama.ErrTopicAlreadyExists
	}
	return errors.Is(err, sarama.ErrTopicAlreadyExists)
}

// saramaProducer tracks in-flight messages so Flush can wait for the acks
// that sarama's async producer otherwise reports only on its channels.
//
// AsyncClose keeps retrying whatever is still in flight (up to Producer.Retry.Max, each
// attempt bounded by the Net timeouts). Close waits at most closeTimeout for that and
// then returns, leaving sarama to finish releasing the handle in the background.
type saramaProducer struct {
	prod         sarama.AsyncProducer
	opts         ProducerOptions
	closeTimeout time.Duration

	mu       sync.Mutex
	inflight int
	results  sync.WaitGroup
}

func newSaramaProducer(prod sarama.AsyncProducer, opts ProducerOptions, closeTimeout time.Duration) *saramaProducer {
	if closeTimeout <= 0 {
		closeTimeout = DefaultFlushTimeout
	}
	p := &saramaProducer{prod: prod, opts: opts, closeTimeout: closeTimeout}
	p.results.Add(2)
	go func() {
		defer p.results.Done()
		for m := range prod.Successes() {
			p.complete(m, nil)
		}
	}()
	go func() {
		defer p.results.Done()
		for e := range prod.Errors() {
			p.complete(e.Msg, e.Err)
		}
	}()
	return p
}

func (p *saramaProducer) Produce(ctx context.Context, msg *Message) error {
	pm := &sarama.ProducerMessage{
		Topic:     msg.Topic,
		Value:     sarama.ByteEncoder(msg.Value),
		Timestamp: msg.Timestamp,
		Metadata:  msg,
	}
	if len(msg.Key) > 0 {
		pm.Key = sarama.ByteEncoder(msg.Key)
	}
	for _, h := range msg.Headers {
		pm.Headers = append(pm.Headers, sarama.RecordHeader{Key: []byte(h.Key), Value: h.Value})
	}

	p.add(1)
	select {
	case p.prod.Input() <- pm:
		return nil
	case <-ctx.Done():
		p.add(-1)
		return ctx.Err()
	}
}

func (p *saramaProducer) Flush(timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	for {
		n := p.pending()
		if n == 0 || !time.Now().Before(deadline) {
			return n, nil
		}
		time.Sleep(saramaFlushPollInterval)
	}
}

func (p *saramaProducer) Close() error {
	p.prod.AsyncClose()

	done := make(chan struct{})
	go func() {
		p.results.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(p.closeTimeout):
		return fmt.Errorf("kafka: sarama producer still retrying %d message(s) after %s", p.pending(), p.closeTimeout)
	}
}

func (p *saramaProducer) complete(pm *sarama.ProducerMessage, err error) {
	p.add(-1)
	if pm == nil {
		return
	}
	msg, ok := pm.Metadata.(*Message)
	if !ok {
		msg = &Message{Topic: pm.Topic}
	}
	p.opts.deliver(msg, err)
}

func (p *saramaProducer) add(delta int) {
	p.mu.Lock()
	p.inflight += delta
	p.mu.Unlock()
}

func (p *saramaProducer) pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inflight
}
