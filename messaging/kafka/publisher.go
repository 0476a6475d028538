package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/harphies/go.eventstream.io/observability/prommetrics"
	"github.com/harphies/go.eventstream.io/utils"
)

// EventIDHeader carries a unique id for every published event.
const EventIDHeader = "event-id"

// State is the lifecycle position of an EventPublisher.
type State int32

const (
	StateUninitialized State = iota
	StateProvisioning
	StateReady
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateProvisioning:
		return "provisioning"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// PublisherStats are running totals for a single publisher.
type PublisherStats struct {
	Published      int64
	Delivered      int64
	DeliveryFailed int64
}

// EventPublisher owns one topic binding and exactly one transport handle.
//
// Publish may be called from multiple goroutines; calls from one goroutine reach
// the transport in call order. Shutdown flushes and then releases the handle; the
// publisher cannot be reused afterwards.
type EventPublisher struct {
	spec         TopicSpec
	cfg          *BrokerConfig
	producer     Producer
	clientID     string
	logger       *zap.Logger
	clock        Clock
	keySer       Serializer
	valueSer     Serializer
	metrics      *prommetrics.OperationMetrics
	headers      []Header
	flushTimeout time.Duration

	mu    sync.RWMutex
	state State

	published      atomic.Int64
	delivered      atomic.Int64
	deliveryFailed atomic.Int64
}

// PublisherOption applies optional configuration to an EventPublisher.
type PublisherOption func(*EventPublisher)

func WithLogger(logger *zap.Logger) PublisherOption {
	return func(p *EventPublisher) {
		p.logger = logger
	}
}

func WithClock(clock Clock) PublisherOption {
	return func(p *EventPublisher) {
		p.clock = clock
	}
}

func WithKeySerializer(s Serializer) PublisherOption {
	return func(p *EventPublisher) {
		p.keySer = s
	}
}

func WithValueSerializer(s Serializer) PublisherOption {
	return func(p *EventPublisher) {
		p.valueSer = s
	}
}

// WithMetrics records publish, flush and delivery operations.
func WithMetrics(m *prommetrics.OperationMetrics) PublisherOption {
	return func(p *EventPublisher) {
		p.metrics = m
	}
}

// WithFlushTimeout bounds the drain performed by Shutdown. Defaults to cfg.FlushTimeout.
func WithFlushTimeout(d time.Duration) PublisherOption {
	return func(p *EventPublisher) {
		p.flushTimeout = d
	}
}

// WithHeaders attaches static headers to every event, e.g. the producing component's name.
func WithHeaders(headers ...Header) PublisherOption {
	return func(p *EventPublisher) {
		p.headers = append(p.headers, headers...)
	}
}

// NewEventPublisher makes sure spec's topic exists, then opens a transport handle for it.
//
// The topic is provisioned through registry, so each name is created at most once per
// process. If provisioning fails the error is a *ProvisionError and no handle is opened.
func NewEventPublisher(
	ctx context.Context,
	spec TopicSpec,
	cfg *BrokerConfig,
	registry *TopicRegistry,
	provisioner *TopicProvisioner,
	factory ProducerFactory,
	opts ...PublisherOption,
) (*EventPublisher, error) {
	spec.ApplyDefaults()
	p := &EventPublisher{
		spec:         spec,
		cfg:          cfg,
		logger:       zap.NewNop(),
		clock:        SystemClock{},
		keySer:       JSONSerializer{},
		valueSer:     JSONSerializer{},
		flushTimeout: cfg.FlushTimeout,
		state:        StateUninitialized,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.flushTimeout <= 0 {
		p.flushTimeout = DefaultFlushTimeout
	}
	p.logger = p.logger.With(zap.String("topic", spec.Name))

	// a known name skips the provisioner, so the spec is checked here for every publisher
	if err := spec.Validate(); err != nil {
		p.state = StateFailed
		err = &ProvisionError{Topic: spec.Name, Err: err}
		p.logger.Error("event publisher rejected topic spec", zap.Error(err))
		return nil, err
	}

	p.state = StateProvisioning
	err := registry.Ensure(ctx, spec.Name, func(ctx context.Context) error {
		return provisioner.Ensure(ctx, spec)
	})
	if err != nil {
		p.state = StateFailed
		var pe *ProvisionError
		if !errors.As(err, &pe) {
			err = &ProvisionError{Topic: spec.Name, Err: err}
		}
		p.logger.Error("event publisher provisioning failed", zap.Error(err))
		return nil, err
	}

	id, err := utils.GenerateID()
	if err != nil {
		p.state = StateFailed
		return nil, fmt.Errorf("kafka: generate client id: %w", err)
	}
	p.clientID = fmt.Sprintf("%s-%s-%s", cfg.ClientID, spec.Name, strings.ToLower(id))

	producer, err := factory.NewProducer(cfg, ProducerOptions{
		ClientID:   p.clientID,
		OnDelivery: p.onDelivery,
	})
	if err != nil {
		p.state = StateFailed
		p.logger.Error("failed to open producer", zap.Error(err))
		return nil, fmt.Errorf("kafka: open producer for %s: %w", spec.Name, err)
	}

	p.producer = producer
	p.state = StateReady
	p.logger.Info("event publisher ready", zap.String("client_id", p.clientID))
	return p, nil
}

// Topic returns the bound topic name.
func (p *EventPublisher) Topic() string { return p.spec.Name }

// ClientID returns the client id of the owned transport handle.
func (p *EventPublisher) ClientID() string { return p.clientID }

func (p *EventPublisher) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *EventPublisher) Stats() PublisherStats {
	return PublisherStats{
		Published:      p.published.Load(),
		Delivered:      p.delivered.Load(),
		DeliveryFailed: p.deliveryFailed.Load(),
	}
}

// NextKey returns the current time in milliseconds since the epoch, for use as an event key.
// Values order events coarsely; they are not unique across rapid calls.
func (p *EventPublisher) NextKey() int64 {
	return p.clock.Now().UnixMilli()
}

// Publish serializes key and value and hands them to the transport without waiting
// for the broker. Broker-side failures are reported through delivery callbacks, not here.
func (p *EventPublisher) Publish(ctx context.Context, key, value interface{}) error {
	ctx, span := newOTELSpan(ctx, "EventPublisher.Publish")
	defer span.End()
	span.SetAttributes(attribute.String("messaging.destination.name", p.spec.Name))

	timer := p.metrics.Start("publish")
	fail := func(reason string, err error) error {
		timer.Failure(reason)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &PublishError{Topic: p.spec.Name, Err: err}
	}

	if p.State() != StateReady {
		return fail("closed", ErrPublisherClosed)
	}

	k, err := p.keySer.Serialize(p.spec.Name, key)
	if err != nil {
		return fail("serialize", fmt.Errorf("serialize key: %w", err))
	}
	v, err := p.valueSer.Serialize(p.spec.Name, value)
	if err != nil {
		return fail("serialize", fmt.Errorf("serialize value: %w", err))
	}
	eventID, err := utils.GenerateID()
	if err != nil {
		return fail("event_id", fmt.Errorf("generate event id: %w", err))
	}

	headers := make([]Header, 0, len(p.headers)+1)
	headers = append(headers, p.headers...)
	headers = append(headers, Header{Key: EventIDHeader, Value: []byte(eventID)})
	msg := &Message{
		Topic:     p.spec.Name,
		Key:       k,
		Value:     v,
		Headers:   headers,
		Timestamp: p.clock.Now(),
	}

	// the read lock keeps Shutdown from releasing the handle under an in-flight Produce
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state != StateReady {
		return fail("closed", ErrPublisherClosed)
	}
	if err := p.producer.Produce(ctx, msg); err != nil {
		p.logger.Error("failed to publish event", zap.Error(err))
		return fail("produce", err)
	}

	p.published.Add(1)
	timer.Success()
	return nil
}

// Shutdown flushes queued events and then releases the transport handle.
//
// The flush waits at most the publisher's flush timeout, shortened by ctx's deadline.
// If events are still queued when it gives up, Shutdown returns a *DrainTimeoutError;
// the handle is released on every path. Calling Shutdown again is a no-op.
func (p *EventPublisher) Shutdown(ctx context.Context) (err error) {
	p.mu.Lock()
	if p.state != StateReady {
		p.mu.Unlock()
		return nil
	}
	p.state = StateClosed
	p.mu.Unlock()

	_, span := newOTELSpan(ctx, "EventPublisher.Shutdown")
	defer span.End()

	timeout := p.flushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if timeout < 0 {
		timeout = 0
	}

	defer func() {
		if cerr := p.producer.Close(); cerr != nil {
			p.logger.Error("producer close failed", zap.Error(cerr))
			err = multierr.Append(err, fmt.Errorf("kafka: close producer for %s: %w", p.spec.Name, cerr))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		p.logger.Info("producer close complete", zap.Any("stats", p.Stats()))
	}()

	timer := p.metrics.Start("flush")
	remaining, ferr := p.producer.Flush(timeout)
	switch {
	case ferr != nil:
		timer.Failure("flush")
		p.logger.Error("producer flush failed", zap.Error(ferr))
		return fmt.Errorf("kafka: flush %s: %w", p.spec.Name, ferr)
	case remaining > 0:
		timer.Failure("drain_timeout")
		p.logger.Warn("producer queue not drained before close",
			zap.Int("remaining", remaining),
			zap.Duration("timeout", timeout),
		)
		return &DrainTimeoutError{Topic: p.spec.Name, Remaining: remaining, Timeout: timeout}
	}
	timer.Success()
	return nil
}

// Close is Shutdown with the publisher's own flush timeout.
func (p *EventPublisher) Close() error {
	return p.Shutdown(context.Background())
}

func (p *EventPublisher) onDelivery(msg *Message, err error) {
	if err != nil {
		p.deliveryFailed.Add(1)
		p.metrics.Count("delivery", err, "broker")
		p.logger.Error("failed to deliver event", zap.ByteString("key", msg.Key), zap.Error(err))
		return
	}
	p.delivered.Add(1)
	p.metrics.Count("delivery", nil, "")
}
