// Package config loads the companion's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// State backends.
const (
	BackendFile    = "file"
	BackendKeyring = "keyring"
)

// Config holds the settings of a run.
type Config struct {
	// NodeURL is the DeSo node API submitted transactions go to.
	NodeURL string `env:"PLUS_NODE_URL" envDefault:"https://bitclout.com"`
	// AppURL is the web app outcome paths are resolved against.
	AppURL string `env:"PLUS_APP_URL" envDefault:"https://bitclout.com"`
	// IdentityURL overrides the identity provider stored with the accounts.
	IdentityURL  string        `env:"PLUS_IDENTITY_URL"`
	StateDir     string        `env:"PLUS_STATE_DIR"`
	StateBackend string        `env:"PLUS_STATE_BACKEND" envDefault:"file"`
	BridgeAddr   string        `env:"PLUS_BRIDGE_ADDR" envDefault:"127.0.0.1:0"`
	HTTPTimeout  time.Duration `env:"PLUS_HTTP_TIMEOUT" envDefault:"30s"`
}

// Load reads an optional .env file from dotenvPath, then the environment.
// Variables already set in the environment win over the file.
func Load(dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", dotenvPath, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.StateDir == "" {
		dir, err := DefaultStateDir()
		if err != nil {
			return nil, err
		}
		cfg.StateDir = dir
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.NodeURL = strings.TrimSuffix(strings.TrimSpace(c.NodeURL), "/")
	c.AppURL = strings.TrimSuffix(strings.TrimSpace(c.AppURL), "/")
	c.IdentityURL = strings.TrimSuffix(strings.TrimSpace(c.IdentityURL), "/")

	if c.NodeURL == "" {
		return fmt.Errorf("PLUS_NODE_URL must not be empty")
	}
	switch c.StateBackend {
	case BackendFile, BackendKeyring:
	default:
		return fmt.Errorf("unsupported state backend %q (want %s or %s)", c.StateBackend, BackendFile, BackendKeyring)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("PLUS_HTTP_TIMEOUT must be positive")
	}
	return nil
}
