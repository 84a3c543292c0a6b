// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Report ReportConfig `toml:"report"`
}

// ReportConfig maps report delivery settings.
type ReportConfig struct {
	GameID        *string `toml:"game-id"`
	SessionName   *string `toml:"session-name"`
	ParentOrigin  *string `toml:"parent-origin"`
	BridgeURL     *string `toml:"bridge-url"`
	QueuePath     *string `toml:"queue-path"`
	SendTimeoutMs *int    `toml:"send-timeout-ms"`
	FlushDelayMs  *int    `toml:"flush-delay-ms"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
