package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".skinjector/config.toml"
	}
	return filepath.Join(home, ".skinjector", "config.toml")
}

func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty path")
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return home, nil
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

func ResolveStorageRoot(cfg Config) (string, error) {
	expanded, err := ExpandPath(cfg.Storage.Root)
	if err != nil {
		return "", err
	}
	return filepath.Clean(expanded), nil
}

// ResolveSourceRoot returns the archive source root, defaulting to the
// champions directory under the storage root.
func ResolveSourceRoot(cfg Config) (string, error) {
	if strings.TrimSpace(cfg.Archives.SourceRoot) != "" {
		expanded, err := ExpandPath(cfg.Archives.SourceRoot)
		if err != nil {
			return "", err
		}
		return filepath.Clean(expanded), nil
	}
	root, err := ResolveStorageRoot(cfg)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "champions"), nil
}

// ResolveGameRoot returns the expanded game installation root, or "" when unset.
func ResolveGameRoot(cfg Config) (string, error) {
	if strings.TrimSpace(cfg.Game.Root) == "" {
		return "", nil
	}
	expanded, err := ExpandPath(cfg.Game.Root)
	if err != nil {
		return "", err
	}
	return filepath.Clean(expanded), nil
}
