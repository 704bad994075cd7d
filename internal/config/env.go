package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Overrides are environment variables that take precedence over the file.
type Overrides struct {
	GameRoot    string `env:"SKINJECTOR_GAME_ROOT"`
	StorageRoot string `env:"SKINJECTOR_STORAGE_ROOT"`
	ToolPath    string `env:"SKINJECTOR_TOOL_PATH"`
	SourceRoot  string `env:"SKINJECTOR_SOURCE_ROOT"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ApplyEnv overlays any set SKINJECTOR_* variables onto cfg.
func ApplyEnv(cfg Config) (Config, error) {
	var o Overrides
	if err := ParseEnv(&o); err != nil {
		return cfg, err
	}
	if o.GameRoot != "" {
		cfg.Game.Root = o.GameRoot
	}
	if o.StorageRoot != "" {
		cfg.Storage.Root = o.StorageRoot
	}
	if o.ToolPath != "" {
		cfg.Overlay.ToolPath = o.ToolPath
	}
	if o.SourceRoot != "" {
		cfg.Archives.SourceRoot = o.SourceRoot
	}
	return cfg, nil
}
