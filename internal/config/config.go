package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgconfig "github.com/Swiftdaops/QuickClean/pkg/config"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int           `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	CookieSecure       bool          `env:"COOKIE_SECURE" envDefault:"false"`

	// Booking backend
	BackendURL     string        `env:"BACKEND_URL" envDefault:"http://localhost:5000"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"10s"`
	AdminWhatsApp  string        `env:"ADMIN_WHATSAPP" envDefault:""`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Session TTL in hours (default: 30 days)
	SessionTTL int `env:"SESSION_TTL_HOURS" envDefault:"720"`

	// PostgreSQL receipt ledger
	ReceiptsEnabled bool   `env:"RECEIPTS_ENABLED" envDefault:"true"`
	PostgresHost    string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort    int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser    string `env:"POSTGRES_USER" envDefault:"quickclean"`
	PostgresPass    string `env:"POSTGRES_PASSWORD" envDefault:"quickclean_secret"`
	PostgresDB      string `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSL     string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`

	// Kafka
	KafkaBrokers       []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaStatusTopic   string   `env:"KAFKA_STATUS_TOPIC" envDefault:""`
	StatusRelayEnabled bool     `env:"STATUS_RELAY_ENABLED" envDefault:"true"`

	// Booking throttle per session
	BookingRateLimitRPS   float64 `env:"BOOKING_RATE_LIMIT_RPS" envDefault:"0.2"`
	BookingRateLimitBurst int     `env:"BOOKING_RATE_LIMIT_BURST" envDefault:"3"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from .env (when present) and environment variables.
func Load() (*Config, error) {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SessionTTLDuration returns the session lifetime.
func (c *Config) SessionTTLDuration() time.Duration {
	return time.Duration(c.SessionTTL) * time.Hour
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute URL, got %q", c.BackendURL)
	}
	if c.BackendTimeout <= 0 {
		return errors.New("BACKEND_TIMEOUT must be positive")
	}
	if c.SessionTTL < 1 {
		return fmt.Errorf("SESSION_TTL_HOURS must be at least 1, got %d", c.SessionTTL)
	}
	if c.ReceiptsEnabled {
		if c.PostgresHost == "" {
			return errors.New("POSTGRES_HOST is required when receipts are enabled")
		}
		if c.PostgresUser == "" {
			return errors.New("POSTGRES_USER is required when receipts are enabled")
		}
	}
	if c.StatusRelayEnabled && len(c.Brokers()) == 0 {
		return errors.New("KAFKA_BROKERS is required when the status relay is enabled")
	}
	if c.BookingRateLimitRPS < 0 {
		return fmt.Errorf("BOOKING_RATE_LIMIT_RPS must not be negative, got %f", c.BookingRateLimitRPS)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// Brokers returns the configured Kafka brokers without blank entries.
func (c *Config) Brokers() []string {
	out := make([]string, 0, len(c.KafkaBrokers))
	for _, b := range c.KafkaBrokers {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
