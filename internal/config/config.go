// Package config defines service configuration structures and loading hooks.
package config

import (
	"context"
	"runtime"
	"time"
)

// DevJWTSecret is the default signing secret. It is fine for local runs
// and must be replaced anywhere else.
const DevJWTSecret = "gigbook-dev-secret"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the booking store: memory or postgres.
	StoreDriver string `koanf:"store_driver"`

	// PostgresDSN is required when StoreDriver is postgres.
	PostgresDSN string `koanf:"postgres_dsn"`

	// RedisAddr enables cross-instance invalidation when set.
	RedisAddr string `koanf:"redis_addr"`

	// AMQPURL enables publishing booking transitions when set.
	AMQPURL string `koanf:"amqp_url"`

	// JWTSecret verifies HS256 bearer tokens.
	JWTSecret string `koanf:"jwt_secret"`

	// RefetchDelayMS is the wait between a committed write and the venue
	// refetch that follows it.
	RefetchDelayMS int `koanf:"refetch_delay_ms"`

	// RefetchQueueSize bounds the pending refetch jobs.
	RefetchQueueSize int `koanf:"refetch_queue_size"`

	// RefetchWorkers sets the number of refetch workers.
	RefetchWorkers int `koanf:"refetch_workers"`

	// WriteTimeoutMS bounds each store write.
	WriteTimeoutMS int `koanf:"write_timeout_ms"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		StoreDriver:      "memory",
		JWTSecret:        DevJWTSecret,
		RefetchDelayMS:   500,
		RefetchQueueSize: 1024,
		RefetchWorkers:   runtime.NumCPU(),
		WriteTimeoutMS:   5000,
	}
}

// RefetchDelay returns RefetchDelayMS as a duration.
func (c *Config) RefetchDelay() time.Duration {
	return time.Duration(c.RefetchDelayMS) * time.Millisecond
}

// WriteTimeout returns WriteTimeoutMS as a duration.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMS) * time.Millisecond
}
