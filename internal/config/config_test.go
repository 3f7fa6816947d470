package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Links.CacheTTL)
	assert.Equal(t, time.Minute, cfg.Links.NegativeTTL)
	assert.Equal(t, "/not-found", cfg.Links.NotFoundURL)
	assert.Equal(t, 100, cfg.RateLimit.Limit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "link-clicks", cfg.Clicks.Topic)
	assert.Equal(t, time.Hour, cfg.Clicks.DedupTTL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RATE_LIMIT", "7")
	t.Setenv("LINK_CACHE_TTL", "30s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.RateLimit.Limit)
	assert.Equal(t, 30*time.Second, cfg.Links.CacheTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Clicks.Brokers)
}

func TestValidate(t *testing.T) {
	t.Setenv("RATE_LIMIT", "0")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("RATE_LIMIT", "100")
	t.Setenv("LOG_LEVEL", "loud")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GEOIP_STALE_THRESHOLD", "200h")
	t.Setenv("GEOIP_CACHE_TTL", "100h")
	_, err = Load()
	assert.Error(t, err)
}
