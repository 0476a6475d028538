package kafka_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harphies/go.eventstream.io/messaging/kafka"
)

func TestRegistryEnsureProvisionsOnce(t *testing.T) {
	registry := kafka.NewTopicRegistry()
	var calls atomic.Int32
	provision := func(context.Context) error {
		calls.Add(1)
		return nil
	}

	require.NoError(t, registry.Ensure(context.Background(), "orders", provision))
	require.NoError(t, registry.Ensure(context.Background(), "orders", provision))

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, registry.IsKnown("orders"))
	assert.False(t, registry.IsKnown("payments"))
}

func TestRegistryEnsureConcurrentCallersShareOneFlight(t *testing.T) {
	registry := kafka.NewTopicRegistry()
	var calls atomic.Int32
	release := make(chan struct{})
	provision := func(context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- registry.Ensure(context.Background(), "orders", provision)
		}()
	}

	// let every caller reach the flight before the creation completes
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegistryEnsureFailureIsNotRecorded(t *testing.T) {
	registry := kafka.NewTopicRegistry()
	boom := errors.New("broker unavailable")

	err := registry.Ensure(context.Background(), "orders", func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, registry.IsKnown("orders"))

	// the next attempt runs provisioning again
	require.NoError(t, registry.Ensure(context.Background(), "orders", func(context.Context) error { return nil }))
	assert.True(t, registry.IsKnown("orders"))
}

func TestRegistryKnownIsSortedSnapshot(t *testing.T) {
	registry := kafka.NewTopicRegistry()
	registry.MarkKnown("payments")
	registry.MarkKnown("orders")
	registry.MarkKnown("orders")

	known := registry.Known()
	assert.Equal(t, []string{"orders", "payments"}, known)

	known[0] = "mutated"
	assert.True(t, registry.IsKnown("orders"))
}

func TestRegistryEnsureCallerStopsWaitingOnOwnContext(t *testing.T) {
	registry := kafka.NewTopicRegistry()
	release := make(chan struct{})
	var calls atomic.Int32
	provision := func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() { firstErr <- registry.Ensure(ctx, "orders", provision) }()
	time.Sleep(10 * time.Millisecond)

	joinerErr := make(chan error, 1)
	go func() { joinerErr <- registry.Ensure(context.Background(), "orders", provision) }()
	time.Sleep(10 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	// the flight outlives the caller that started it
	close(release)
	assert.NoError(t, <-joinerErr)
	assert.True(t, registry.IsKnown("orders"))
	assert.Equal(t, int32(1), calls.Load())
}
