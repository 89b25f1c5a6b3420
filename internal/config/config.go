// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the environment configuration of the giveaway service. The
// phase durations are service defaults for requests that do not set them.
type Config struct {
	Addr               string        `env:"GIVEAWAY_ADDR" envDefault:":8080"`
	NodeID             string        `env:"GIVEAWAY_NODE_ID"`
	TopicPrefix        string        `env:"GIVEAWAY_TOPIC_PREFIX" envDefault:"giveaway/v1"`
	CommitPhase        time.Duration `env:"GIVEAWAY_COMMIT_PHASE" envDefault:"30s"`
	RevealPhase        time.Duration `env:"GIVEAWAY_REVEAL_PHASE" envDefault:"30s"`
	SessionTTL         time.Duration `env:"GIVEAWAY_SESSION_TTL" envDefault:"1h"`
	JanitorInterval    time.Duration `env:"GIVEAWAY_JANITOR_INTERVAL" envDefault:"10m"`
	SubscriptionBuffer int           `env:"GIVEAWAY_SUBSCRIPTION_BUFFER" envDefault:"256"`
	// LogFile receives a copy of every log line when set.
	LogFile            string        `env:"GIVEAWAY_LOG_FILE"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses Config from the environment and checks it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	if c.CommitPhase <= 0 || c.RevealPhase <= 0 {
		return fmt.Errorf("phase durations must be positive (commit %s, reveal %s)", c.CommitPhase, c.RevealPhase)
	}
	if c.JanitorInterval <= 0 {
		return fmt.Errorf("janitor interval must be positive, got %s", c.JanitorInterval)
	}
	if c.TopicPrefix == "" {
		return fmt.Errorf("topic prefix must not be empty")
	}
	return nil
}
