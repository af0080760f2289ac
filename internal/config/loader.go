package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "GIGBOOK_"
	envConfig     = envPrefix + "CONFIG"
	envDotenv     = envPrefix + "ENV_FILE"
	defaultDotenv = ".env"
)

// Load builds a Config by layering defaults, optional files, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if GIGBOOK_CONFIG is set
//  3. dotenv file (GIGBOOK_ENV_FILE, default .env) if it exists
//  4. env (prefix GIGBOOK_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	if err := loadDotenv(k); err != nil {
		return nil, err
	}

	// GIGBOOK_REFETCH_DELAY_MS -> refetch_delay_ms. Underscores are kept
	// to match the flat koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotenv reads GIGBOOK_ keys from the dotenv file without touching the
// process environment. A missing file is not an error.
func loadDotenv(k *koanf.Koanf) error {
	path := os.Getenv(envDotenv)
	if path == "" {
		path = defaultDotenv
	}
	vals, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}
	for key, val := range vals {
		if !strings.HasPrefix(key, envPrefix) || key == envConfig || key == envDotenv {
			continue
		}
		name := strings.TrimPrefix(strings.ToLower(key), strings.ToLower(envPrefix))
		if err := k.Set(name, val); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrLoadConfig, key, err)
		}
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreDriver != "memory" && c.StoreDriver != "postgres":
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	case c.StoreDriver == "postgres" && c.PostgresDSN == "":
		return fmt.Errorf("%w: postgres_dsn is required for the postgres driver", ErrInvalidConfig)
	case strings.TrimSpace(c.JWTSecret) == "":
		return fmt.Errorf("%w: jwt_secret must not be empty", ErrInvalidConfig)
	case c.RefetchDelayMS < 0:
		return fmt.Errorf("%w: refetch_delay_ms must not be negative", ErrInvalidConfig)
	case c.RefetchQueueSize < 0:
		return fmt.Errorf("%w: refetch_queue_size must not be negative", ErrInvalidConfig)
	case c.RefetchWorkers < 0:
		return fmt.Errorf("%w: refetch_workers must not be negative", ErrInvalidConfig)
	case c.WriteTimeoutMS < 0:
		return fmt.Errorf("%w: write_timeout_ms must not be negative", ErrInvalidConfig)
	}
	return nil
}
