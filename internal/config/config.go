package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Server
	Port           int      `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// Storage
	LocalDBPath string `env:"LOCAL_DB_PATH" envDefault:"./data/elderquery.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Session verification
	SessionSecret string `env:"SESSION_SECRET" envDefault:"elderquery-dev-secret"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// RemoteEnabled reports whether a remote store is configured. Without it the
// app runs local-only and sign-in is rejected.
func (c *Config) RemoteEnabled() bool {
	return c.DatabaseURL != ""
}
