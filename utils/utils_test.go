package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("EVENTSTREAM_TEST_VALUE", "set")
	assert.Equal(t, "set", GetEnv("EVENTSTREAM_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", GetEnv("EVENTSTREAM_TEST_UNSET", "fallback"))

	t.Setenv("EVENTSTREAM_TEST_BOOL", "true")
	assert.True(t, GetEnvBool("EVENTSTREAM_TEST_BOOL", false))
	t.Setenv("EVENTSTREAM_TEST_BOOL", "maybe")
	assert.True(t, GetEnvBool("EVENTSTREAM_TEST_BOOL", true))
	assert.False(t, GetEnvBool("EVENTSTREAM_TEST_UNSET", false))
}

func TestGenerateIDIsSortableAndUnique(t *testing.T) {
	seen := make(map[string]struct{})
	prev := ""
	for i := 0; i < 1000; i++ {
		id, err := GenerateID()
		require.NoError(t, err)
		assert.Len(t, id, 26)
		assert.Greater(t, id, prev)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
		prev = id
	}
}

func TestRecoverable(t *testing.T) {
	logger := zaptest.NewLogger(t)
	boom := errors.New("boom")

	assert.NoError(t, Recoverable(logger, "ok", func() error { return nil })())
	assert.ErrorIs(t, Recoverable(logger, "err", func() error { return boom })(), boom)

	err := Recoverable(logger, "heartbeat", func() error { panic("nil map") })()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heartbeat: panic: nil map")
}
