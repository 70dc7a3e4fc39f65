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
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "http://localhost:5000", cfg.BackendURL)
	assert.Equal(t, 10*time.Second, cfg.BackendTimeout)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 720*time.Hour, cfg.SessionTTLDuration())
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers())
	assert.True(t, cfg.ReceiptsEnabled)
	assert.True(t, cfg.StatusRelayEnabled)
	assert.Empty(t, cfg.AdminWhatsApp)
}

func TestLoad_InvalidHTTPPort(t *testing.T) {
	t.Setenv("STOREFRONT_HTTP_PORT", "0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
}

func TestLoad_InvalidBackendURL(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "no scheme", value: "backend.local"},
		{name: "no host", value: "http://"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BACKEND_URL", tt.value)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "BACKEND_URL")
		})
	}
}

func TestLoad_InvalidSessionTTL(t *testing.T) {
	t.Setenv("SESSION_TTL_HOURS", "0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_TTL_HOURS")
}

func TestLoad_BlankBrokersWithRelay(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " , ")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS is required")
}

func TestLoad_BlankBrokersWithoutRelay(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " , ")
	t.Setenv("STATUS_RELAY_ENABLED", "false")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Empty(t, cfg.Brokers())
}

func TestLoad_NegativeRateLimit(t *testing.T) {
	t.Setenv("BOOKING_RATE_LIMIT_RPS", "-1")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOOKING_RATE_LIMIT_RPS")
}

func TestLoad_InvalidOTELSampleRate(t *testing.T) {
	t.Setenv("OTEL_SAMPLE_RATE", "2.0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTEL_SAMPLE_RATE must be between 0.0 and 1.0")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://api.quickclean.ng")
	t.Setenv("BACKEND_TIMEOUT", "3s")
	t.Setenv("ADMIN_WHATSAPP", "+234 800 000 0001")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://quickclean.ng,https://www.quickclean.ng")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "https://api.quickclean.ng", cfg.BackendURL)
	assert.Equal(t, 3*time.Second, cfg.BackendTimeout)
	assert.Equal(t, "+234 800 000 0001", cfg.AdminWhatsApp)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())
	assert.Equal(t, []string{"https://quickclean.ng", "https://www.quickclean.ng"}, cfg.CORSAllowedOrigins)
}
