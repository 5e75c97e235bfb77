package internal

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, uint16(3000), cfg.Port)
	assert.False(t, cfg.PriceIncludesTax)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "http://localhost:8080", cfg.POS.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.POS.Timeout)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, "tabletill", cfg.NATS.SubjectPrefix)
	assert.Equal(t, 5, cfg.Worker.Concurrency)
	assert.Equal(t, 5, cfg.Worker.MaxRetries)
	assert.Equal(t, time.Second, cfg.Worker.RetryBackoff)
	assert.Equal(t, float64(10), cfg.RateLimit.RequestsPerSecond)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PORT", "8081")
	t.Setenv("PRICE_INCLUDES_TAX", "true")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("POS_API_URL", "https://pos.example.com")
	t.Setenv("POS_API_TIMEOUT", "3s")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("NATS_SUBJECT_PREFIX", "store-7")
	t.Setenv("WORKER_CONCURRENCY", "2")
	t.Setenv("WORKER_MAX_RETRIES", "0")

	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, uint16(8081), cfg.Port)
	assert.True(t, cfg.PriceIncludesTax)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "https://pos.example.com", cfg.POS.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.POS.Timeout)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "store-7", cfg.NATS.SubjectPrefix)
	assert.Equal(t, 2, cfg.Worker.Concurrency)
	assert.Equal(t, 0, cfg.Worker.MaxRetries)
}

func TestLoadConfig_FallsBackOnInvalidValues(t *testing.T) {
	t.Setenv("ENV", "staging")
	t.Setenv("LOG_LEVEL", "verbose")

	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"relative pos url", "POS_API_URL", "/api"},
		{"unsupported scheme", "POS_API_URL", "ftp://pos.example.com"},
		{"zero timeout", "POS_API_TIMEOUT", "0s"},
		{"zero session ttl", "SESSION_TTL", "0s"},
		{"no workers", "WORKER_CONCURRENCY", "0"},
		{"negative retries", "WORKER_MAX_RETRIES", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig(viper.New())
			assert.ErrorContains(t, err, tt.key)
		})
	}
}
