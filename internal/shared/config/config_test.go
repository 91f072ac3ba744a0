package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "platform-service")

	cfg := Load()
	assert.Equal(t, "market_updates_broadcast", cfg.RedisPubSubChannel)
	assert.Equal(t, int64(100), cfg.MinStakeCents)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "9095", cfg.MetricsPort)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "settlement-worker")
	t.Setenv("REDIS_PUBSUB_CHANNEL", "custom_channel")
	t.Setenv("MIN_STAKE_CENTS", "250")

	cfg := Load()
	assert.Equal(t, "custom_channel", cfg.RedisPubSubChannel)
	assert.Equal(t, int64(250), cfg.MinStakeCents)
	assert.Equal(t, "9096", cfg.MetricsPort)
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	t.Setenv("MIN_STAKE_CENTS", "not-a-number")

	cfg := Load()
	assert.Equal(t, int64(100), cfg.MinStakeCents)
}
