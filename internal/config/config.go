// Package config reads server and CLI settings from STARBOARD_* environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port          string        `env:"STARBOARD_PORT" envDefault:"8080"`
	DBPath        string        `env:"STARBOARD_DB_PATH" envDefault:"starboard.db"`
	LogLevel      string        `env:"STARBOARD_LOG_LEVEL" envDefault:"info"`
	LogFormat     string        `env:"STARBOARD_LOG_FORMAT" envDefault:"text"`
	Timezone      string        `env:"STARBOARD_TIMEZONE" envDefault:"Local"`
	SweepMode     string        `env:"STARBOARD_SWEEP_MODE" envDefault:"reactive"`
	SweepInterval time.Duration `env:"STARBOARD_SWEEP_INTERVAL" envDefault:"1m"`
	AtomicWrites  bool          `env:"STARBOARD_ATOMIC_WRITES" envDefault:"true"`
	MissedLimit   int           `env:"STARBOARD_MISSED_LIMIT" envDefault:"5"`

	// RedeemRate is the number of redemption requests allowed per client
	// per RedeemWindow.
	RedeemRate   int           `env:"STARBOARD_REDEEM_RATE" envDefault:"10"`
	RedeemWindow time.Duration `env:"STARBOARD_REDEEM_WINDOW" envDefault:"1m"`

	// WSOrigins lists the origin patterns allowed to open the change feed.
	// Empty accepts any origin.
	WSOrigins []string `env:"STARBOARD_WS_ORIGINS" envSeparator:","`
}

// Load reads files (default ".env") into the environment without
// overriding variables that are already set, then parses the environment.
// Missing files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return Parse()
}

// Parse reads the configuration from the environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.SweepMode {
	case "reactive", "poll":
	default:
		return fmt.Errorf("invalid STARBOARD_SWEEP_MODE %q: want reactive or poll", c.SweepMode)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("invalid STARBOARD_SWEEP_INTERVAL %s: must be positive", c.SweepInterval)
	}
	if c.MissedLimit < 1 {
		return fmt.Errorf("invalid STARBOARD_MISSED_LIMIT %d: must be positive", c.MissedLimit)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone. Calendar dates and HH:MM checks are computed
// in this location.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid STARBOARD_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
