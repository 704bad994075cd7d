package config

import (
	"fmt"
	"strings"
	"time"
)

var allowedIDModes = map[string]struct{}{
	"skin":     {},
	"champion": {},
	"off":      {},
}

func Validate(cfg Config) error {
	if cfg.Version != SchemaVersion {
		return fmt.Errorf("DOC_CONFIG_VERSION: unsupported version %d", cfg.Version)
	}
	if cfg.Storage.Root == "" {
		return fmt.Errorf("DOC_CONFIG_STORAGE: missing storage root")
	}
	if cfg.Logging.Level == "" || cfg.Logging.Format == "" {
		return fmt.Errorf("DOC_CONFIG_LOGGING: missing logging level/format")
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("DOC_CONFIG_LOGGING: format must be text or json, got %q", cfg.Logging.Format)
	}
	if strings.ContainsAny(cfg.Game.ModsDir, `/\`) {
		return fmt.Errorf("DOC_CONFIG_GAME: mods_dir %q must be a single directory name", cfg.Game.ModsDir)
	}

	if len(cfg.Archives.Extensions) == 0 {
		return fmt.Errorf("DOC_CONFIG_ARCHIVES: at least one archive extension is required")
	}
	if _, ok := allowedIDModes[cfg.Archives.IDMode]; !ok {
		return fmt.Errorf("DOC_CONFIG_ARCHIVES: invalid id_mode %q", cfg.Archives.IDMode)
	}
	if cfg.Archives.MmapThreshold < 0 {
		return fmt.Errorf("DOC_CONFIG_ARCHIVES: mmap_threshold must not be negative")
	}
	for _, p := range cfg.Archives.PayloadPatterns {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("DOC_CONFIG_ARCHIVES: empty payload pattern")
		}
	}

	if strings.TrimSpace(cfg.Overlay.ToolName) == "" {
		return fmt.Errorf("DOC_CONFIG_OVERLAY: tool_name is required")
	}
	if cfg.Overlay.BuildAttempts < 1 || cfg.Overlay.RunAttempts < 1 {
		return fmt.Errorf("DOC_CONFIG_OVERLAY: attempts must be at least 1")
	}
	if _, err := RetryDelay(cfg); err != nil {
		return err
	}
	return nil
}

// RetryDelay parses the configured overlay retry delay.
func RetryDelay(cfg Config) (time.Duration, error) {
	d, err := time.ParseDuration(cfg.Overlay.RetryDelay)
	if err != nil {
		return 0, fmt.Errorf("DOC_CONFIG_OVERLAY: invalid retry_delay %q: %w", cfg.Overlay.RetryDelay, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("DOC_CONFIG_OVERLAY: retry_delay must not be negative")
	}
	return d, nil
}
