package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestFranzOptions(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := NewBrokerConfig()

	opts, err := franzOptions(&cfg, "eventstream-orders", logger)
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	cfg.SASLMechanism = SASLMechanismSHA256
	cfg.SASLUsername = "svc"
	cfg.SecurityProtocol = "SASL_SSL"
	opts, err = franzOptions(&cfg, "eventstream-orders", logger)
	require.NoError(t, err)
	assert.Len(t, opts, 4)

	cfg.SASLMechanism = "GSSAPI"
	_, err = franzOptions(&cfg, "eventstream-orders", logger)
	assert.Error(t, err)
}
