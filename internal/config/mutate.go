package config

import (
	"fmt"
	"strings"
)

// SetGameRoot records the game installation root.
func SetGameRoot(cfg *Config, root string) error {
	if cfg == nil {
		return fmt.Errorf("DOC_CONFIG_GAME: nil config")
	}
	root = strings.TrimSpace(root)
	if root == "" {
		return fmt.Errorf("DOC_CONFIG_GAME: empty game root")
	}
	cfg.Game.Root = root
	*cfg = Normalize(*cfg)
	return Validate(*cfg)
}

// AddSearchDir appends an extra overlay tool search directory.
// Returns true when the config was changed.
func AddSearchDir(cfg *Config, dir string) (bool, error) {
	if cfg == nil {
		return false, fmt.Errorf("DOC_CONFIG_OVERLAY: nil config")
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return false, fmt.Errorf("DOC_CONFIG_OVERLAY: empty search dir")
	}
	for _, existing := range cfg.Overlay.SearchDirs {
		if existing == dir {
			return false, nil
		}
	}
	cfg.Overlay.SearchDirs = append(cfg.Overlay.SearchDirs, dir)
	*cfg = Normalize(*cfg)
	return true, Validate(*cfg)
}
