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

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.False(t, cfg.AutoMigrate)
	assert.Equal(t, 48*time.Hour, cfg.BidTTL)
	assert.Equal(t, 10, cfg.OutboxBatchSize)
	assert.Equal(t, time.Second, cfg.OutboxInterval)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 100, cfg.SweepBatchSize)
	assert.Empty(t, cfg.TranslateURL)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":9090")
	t.Setenv("BID_TTL", "24h")
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("TRANSLATE_URL", "http://translate.internal:8000")
	t.Setenv("OUTBOX_BATCH_SIZE", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddress)
	assert.Equal(t, 24*time.Hour, cfg.BidTTL)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, "http://translate.internal:8000", cfg.TranslateURL)
	assert.Equal(t, 50, cfg.OutboxBatchSize)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("BID_TTL", "two days")

	_, err := Load()
	assert.Error(t, err)
}
