package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducer_RequiresBrokersAndTopic(t *testing.T) {
	_, err := NewProducer(WithTopic("factors"))
	assert.Error(t, err)

	_, err = NewProducer(WithBrokers([]string{"localhost:9092"}))
	assert.Error(t, err)

	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithTopic("factors"))
	require.NoError(t, err)
	assert.Equal(t, "factors", p.Topic())
	assert.NoError(t, p.Close())
}

func TestEncode(t *testing.T) {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	msgs, err := Encode([]Message{
		{Key: []byte("EURUSD"), Value: map[string]float64{"factor": 42.5}},
		{Key: []byte("GBPUSD"), Value: []byte("raw")},
	}, ts)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.JSONEq(t, `{"factor":42.5}`, string(msgs[0].Value))
	assert.Equal(t, "raw", string(msgs[1].Value))
	assert.Equal(t, ts, msgs[1].Time)
	assert.Equal(t, "EURUSD", string(msgs[0].Key))
}
