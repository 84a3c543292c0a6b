package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds environment overrides for delivery settings. Values
// here win over the config file but lose to explicit flags.
type EnvConfig struct {
	ParentOrigin string `env:"BEACON_PARENT_ORIGIN"`
	BridgeURL    string `env:"BEACON_BRIDGE_URL"`
	QueuePath    string `env:"BEACON_QUEUE_PATH"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("failed to parse env: %w", err)
	}
	return cfg, nil
}
