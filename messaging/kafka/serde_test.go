package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSerializer(t *testing.T) {
	s := JSONSerializer{}

	b, err := s.Serialize("orders", nil)
	require.NoError(t, err)
	assert.Nil(t, b)

	raw := []byte("already-encoded")
	b, err = s.Serialize("orders", raw)
	require.NoError(t, err)
	assert.Equal(t, raw, b)

	b, err = s.Serialize("orders", int64(1700000000000))
	require.NoError(t, err)
	assert.Equal(t, "1700000000000", string(b))

	b, err = s.Serialize("orders", struct {
		ID int `json:"id"`
	}{ID: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7}`, string(b))

	_, err = s.Serialize("orders", make(chan int))
	assert.Error(t, err)
}

func TestNewSerializers(t *testing.T) {
	cfg := NewBrokerConfig()
	key, value, err := NewSerializers(&cfg)
	require.NoError(t, err)
	assert.IsType(t, JSONSerializer{}, key)
	assert.IsType(t, JSONSerializer{}, value)

	cfg.Serde = SerdeAvro
	cfg.SchemaRegistryURL = "http://localhost:8081"
	key, value, err = NewSerializers(&cfg)
	require.NoError(t, err)
	assert.NotNil(t, key)
	assert.NotNil(t, value)
	assert.NotEqual(t, JSONSerializer{}, key)

	cfg.Serde = "protobuf"
	_, _, err = NewSerializers(&cfg)
	assert.Error(t, err)
}
