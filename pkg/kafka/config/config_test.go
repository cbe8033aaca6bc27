package kafka_config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "broker-1:9092, broker-2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Brokers)
	assert.Equal(t, DefaultProducerCompression, cfg.ProducerCompression)
	assert.Equal(t, DefaultProducerBatchTimeout, cfg.ProducerBatchTimeout)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := &Config{
		Brokers:              []string{""},
		ProducerMaxAttempts:  0,
		ProducerBatchTimeout: time.Millisecond,
		ProducerRequireAcks:  2,
		ProducerCompression:  "brotli",
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Broker 0 cannot be empty")
	assert.Contains(t, err.Error(), "ProducerMaxAttempts")
	assert.Contains(t, err.Error(), "ProducerRequireAcks")
	assert.Contains(t, err.Error(), "ProducerCompression")
}
