package kafkatest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harphies/go.eventstream.io/messaging/kafka"
)

func TestAdminReportsExistingTopics(t *testing.T) {
	admin := NewAdmin()
	require.NoError(t, admin.CreateTopic(context.Background(), "orders", 1, 1, nil))

	err := admin.CreateTopic(context.Background(), "orders", 1, 1, nil)
	assert.ErrorIs(t, err, kafka.ErrTopicAlreadyExists)
	assert.Len(t, admin.Calls(), 2)
}

func TestProducerAutoAckAndStuck(t *testing.T) {
	var delivered int
	f := &Factory{Configure: func(p *Producer) { p.AutoAck = true }}
	h, err := f.NewProducer(nil, kafka.ProducerOptions{OnDelivery: func(*kafka.Message, error) { delivered++ }})
	require.NoError(t, err)

	require.NoError(t, h.Produce(context.Background(), &kafka.Message{Topic: "orders"}))
	remaining, err := h.Flush(time.Second)
	require.NoError(t, err)
	assert.Zero(t, remaining)
	assert.Equal(t, 1, delivered)

	p := f.Producers()[0]
	p.Stuck = true
	require.NoError(t, h.Produce(context.Background(), &kafka.Message{Topic: "orders"}))
	remaining, err = h.Flush(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	require.NoError(t, h.Close())
	assert.Error(t, h.Produce(context.Background(), &kafka.Message{Topic: "orders"}))
	assert.Equal(t, 1, f.Closes())
}

func TestClockAdvance(t *testing.T) {
	start := time.UnixMilli(1000)
	c := NewClock(start)
	c.Advance(time.Second)
	assert.Equal(t, int64(2000), c.Now().UnixMilli())
}
