// Package kafkatest provides in-memory admin and transport fakes for exercising
// publishers without a broker.
package kafkatest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harphies/go.eventstream.io/messaging/kafka"
)

// CreateTopicCall is one recorded AdminClient.CreateTopic request.
type CreateTopicCall struct {
	Name       string
	Partitions int
	Replicas   int
	Configs    map[string]string
}

// Admin records CreateTopic calls. Topics it created once are reported as
// already existing afterwards, like a real cluster.
type Admin struct {
	// Err, when set, is returned by every CreateTopic call.
	Err error
	// Delay stalls each CreateTopic call, to widen race windows in tests.
	Delay time.Duration

	mu       sync.Mutex
	calls    []CreateTopicCall
	existing map[string]bool
	closed   bool
}

func NewAdmin() *Admin {
	return &Admin{existing: make(map[string]bool)}
}

// WithExisting marks names as already present on the cluster.
func (a *Admin) WithExisting(names ...string) *Admin {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, n := range names {
		a.existing[n] = true
	}
	return a
}

func (a *Admin) CreateTopic(ctx context.Context, name string, partitions, replicas int, configs map[string]string) error {
	if a.Delay > 0 {
		select {
		case <-time.After(a.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	cp := make(map[string]string, len(configs))
	for k, v := range configs {
		cp[k] = v
	}
	a.calls = append(a.calls, CreateTopicCall{Name: name, Partitions: partitions, Replicas: replicas, Configs: cp})

	if a.Err != nil {
		return a.Err
	}
	if a.existing[name] {
		return fmt.Errorf("%w: %s", kafka.ErrTopicAlreadyExists, name)
	}
	a.existing[name] = true
	return nil
}

func (a *Admin) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return nil
}

func (a *Admin) Calls() []CreateTopicCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]CreateTopicCall(nil), a.calls...)
}

func (a *Admin) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Event is one step in a Producer's recorded history.
type Event struct {
	Seq    int64
	Op     string // "produce", "flush" or "close"
	Msg    *kafka.Message
	At     time.Time
	Result int
}

// Producer is a fake transport handle. Produced messages stay queued until
// Ack is called or, with AutoAck, until Flush.
type Producer struct {
	ClientID   string
	ProduceErr error
	FlushErr   error
	// Stuck makes Flush report queued messages as undeliverable.
	Stuck bool
	// AutoAck acknowledges queued messages on Flush.
	AutoAck bool

	onDelivery kafka.DeliveryFunc
	seq        *atomic.Int64

	mu      sync.Mutex
	queued  []*kafka.Message
	events  []Event
	closes  int
	timeout time.Duration
}

func (p *Producer) record(op string, msg *kafka.Message, result int) {
	p.events = append(p.events, Event{Seq: p.seq.Add(1), Op: op, Msg: msg, At: time.Now(), Result: result})
}

func (p *Producer) Produce(_ context.Context, msg *kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closes > 0 {
		return fmt.Errorf("kafkatest: produce on closed producer")
	}
	if p.ProduceErr != nil {
		return p.ProduceErr
	}
	p.queued = append(p.queued, msg)
	p.record("produce", msg, 0)
	return nil
}

func (p *Producer) Flush(timeout time.Duration) (int, error) {
	p.mu.Lock()
	p.timeout = timeout
	if p.FlushErr != nil {
		p.record("flush", nil, -1)
		p.mu.Unlock()
		return 0, p.FlushErr
	}
	var acked []*kafka.Message
	if p.AutoAck && !p.Stuck {
		acked, p.queued = p.queued, nil
	}
	remaining := len(p.queued)
	p.record("flush", nil, remaining)
	p.mu.Unlock()

	for _, m := range acked {
		p.deliver(m, nil)
	}
	return remaining, nil
}

func (p *Producer) Close() error {
	p.mu.Lock()
	p.closes++
	p.record("close", nil, 0)
	p.mu.Unlock()
	return nil
}

// Ack delivers every queued message with err (nil for success).
func (p *Producer) Ack(err error) {
	p.mu.Lock()
	acked := p.queued
	p.queued = nil
	p.mu.Unlock()
	for _, m := range acked {
		p.deliver(m, err)
	}
}

func (p *Producer) deliver(m *kafka.Message, err error) {
	if p.onDelivery != nil {
		p.onDelivery(m, err)
	}
}

func (p *Producer) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Sent returns every message handed to Produce.
func (p *Producer) Sent() []*kafka.Message {
	var out []*kafka.Message
	for _, e := range p.Events() {
		if e.Op == "produce" {
			out = append(out, e.Msg)
		}
	}
	return out
}

func (p *Producer) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

// FlushTimeout returns the timeout passed to the last Flush.
func (p *Producer) FlushTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timeout
}

// Factory opens fake Producers and counts opens. Configure is applied to
// every new Producer before it is returned.
type Factory struct {
	Err       error
	Configure func(*Producer)

	seq       atomic.Int64
	mu        sync.Mutex
	producers []*Producer
}

func (f *Factory) NewProducer(_ *kafka.BrokerConfig, opts kafka.ProducerOptions) (kafka.Producer, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	p := &Producer{ClientID: opts.ClientID, onDelivery: opts.OnDelivery, seq: &f.seq}
	if f.Configure != nil {
		f.Configure(p)
	}
	f.mu.Lock()
	f.producers = append(f.producers, p)
	f.mu.Unlock()
	return p, nil
}

func (f *Factory) Producers() []*Producer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Producer(nil), f.producers...)
}

// Opens is the number of handles opened so far.
func (f *Factory) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.producers)
}

// Closes is the number of Close calls across all handles.
func (f *Factory) Closes() int {
	n := 0
	for _, p := range f.Producers() {
		n += p.Closes()
	}
	return n
}

// Driver pairs a fake Admin with a fake Factory.
type Driver struct {
	*Factory
	Admin *Admin
}

func NewDriver() *Driver {
	return &Driver{Factory: &Factory{}, Admin: NewAdmin()}
}

func (d *Driver) Name() string { return "fake" }

func (d *Driver) NewAdmin(*kafka.BrokerConfig) (kafka.AdminClient, error) {
	return d.Admin, nil
}

// Clock is a manually advanced clock. It never goes backwards.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
