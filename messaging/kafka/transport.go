package kafka

import (
	"context"
	"time"
)

// Header is a single record header.
type Header struct {
	Key   string
	Value []byte
}

// Message is the driver-neutral record handed to a Producer.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   []Header
	Timestamp time.Time
}

// DeliveryFunc is called from the transport's background context once the broker
// acknowledged (err == nil) or rejected a message.
type DeliveryFunc func(msg *Message, err error)

// ProducerOptions are per-handle settings.
type ProducerOptions struct {
	ClientID   string
	OnDelivery DeliveryFunc
}

// Producer is an exclusively owned transport handle.
//
// Produce enqueues msg for asynchronous transmission and must not wait for the broker.
// Flush blocks until the outbound queue is empty or timeout elapses and returns the
// number of messages still queued. Close releases the handle; it is called exactly once.
type Producer interface {
	Produce(ctx context.Context, msg *Message) error
	Flush(timeout time.Duration) (remaining int, err error)
	Close() error
}

// ProducerFactory opens transport handles.
type ProducerFactory interface {
	NewProducer(cfg *BrokerConfig, opts ProducerOptions) (Producer, error)
}

func (o ProducerOptions) deliver(msg *Message, err error) {
	if o.OnDelivery != nil {
		o.OnDelivery(msg, err)
	}
}
