package config

import (
	"fmt"
	"slices"
	"time"

	pkgconfig "github.com/utafrali/locagame/pkg/config"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all configuration for the rental stock service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8010"`

	// Storage backend: postgres or memory
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DemoSeed      bool   `env:"DEMO_SEED" envDefault:"false"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"locagame"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"locagame_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"rental_stock"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis product cache; an empty host disables the cache
	RedisHost          string `env:"REDIS_HOST" envDefault:""`
	RedisPort          int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword      string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB            int    `env:"REDIS_DB" envDefault:"0"`
	ProductCacheTTLSec int    `env:"PRODUCT_CACHE_TTL_SECONDS" envDefault:"30"`

	// Kafka
	EventsEnabled bool     `env:"EVENTS_ENABLED" envDefault:"false"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID  string   `env:"KAFKA_GROUP_ID" envDefault:"rental-stock-service"`

	// Storage circuit breaker
	BreakerEnabled      bool    `env:"BREAKER_ENABLED" envDefault:"true"`
	BreakerTimeoutSec   int     `env:"BREAKER_TIMEOUT_SECONDS" envDefault:"15"`
	BreakerFailureRatio float64 `env:"BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerMinRequests  uint32  `env:"BREAKER_MIN_REQUESTS" envDefault:"10"`

	// Availability engine
	MaxRangeDays      int `env:"AVAILABILITY_MAX_RANGE_DAYS" envDefault:"366"`
	FilterConcurrency int `env:"AVAILABILITY_FILTER_CONCURRENCY" envDefault:"8"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS for the storefront calendar widget
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load rental stock config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !slices.Contains([]string{DriverPostgres, DriverMemory}, c.StorageDriver) {
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StorageDriver)
	}
	if c.StorageDriver == DriverPostgres {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
	}
	if c.EventsEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when EVENTS_ENABLED is set")
	}
	if c.ProductCacheTTLSec <= 0 {
		return fmt.Errorf("PRODUCT_CACHE_TTL_SECONDS must be > 0, got %d", c.ProductCacheTTLSec)
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1.0 {
		return fmt.Errorf("BREAKER_FAILURE_RATIO must be in (0.0, 1.0], got %f", c.BreakerFailureRatio)
	}
	if c.BreakerTimeoutSec <= 0 {
		return fmt.Errorf("BREAKER_TIMEOUT_SECONDS must be > 0, got %d", c.BreakerTimeoutSec)
	}
	if c.MaxRangeDays < 1 {
		return fmt.Errorf("AVAILABILITY_MAX_RANGE_DAYS must be >= 1, got %d", c.MaxRangeDays)
	}
	if c.FilterConcurrency < 1 {
		return fmt.Errorf("AVAILABILITY_FILTER_CONCURRENCY must be >= 1, got %d", c.FilterConcurrency)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// CacheEnabled reports whether a Redis host is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisHost != ""
}

// ProductCacheTTL returns the product cache TTL.
func (c *Config) ProductCacheTTL() time.Duration {
	return time.Duration(c.ProductCacheTTLSec) * time.Second
}
