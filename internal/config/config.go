package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"skinjector/internal/failure"
	"skinjector/internal/fsutil"
)

// Ensure loads the file at path, writing the defaults first when it does
// not exist yet.
func Ensure(path string) (Config, error) {
	path = orDefault(path)
	cfg, err := Load(path)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}
	cfg = DefaultConfig()
	if err := Save(path, cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the file as written. Environment overrides are applied by
// Effective, never here, so a loaded Config is safe to Save back.
func Load(path string) (Config, error) {
	path = orDefault(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, failure.Wrap(failure.ErrConfig, "DOC_CONFIG_READ", err, "read %s", path)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, failure.Wrap(failure.ErrConfig, "DOC_CONFIG_PARSE", err, "%s", path)
	}
	cfg = Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Effective returns cfg with SKINJECTOR_* overrides applied, normalized and
// validated again.
func Effective(cfg Config) (Config, error) {
	withEnv, err := ApplyEnv(cfg)
	if err != nil {
		return Config{}, failure.Wrap(failure.ErrConfig, "DOC_CONFIG_ENV", err, "apply environment overrides")
	}
	withEnv = Normalize(withEnv)
	if err := Validate(withEnv); err != nil {
		return Config{}, err
	}
	return withEnv, nil
}

func Save(path string, cfg Config) error {
	path = orDefault(path)
	cfg = Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return err
	}
	blob, err := toml.Marshal(cfg)
	if err != nil {
		return failure.Wrap(failure.ErrConfig, "DOC_CONFIG_ENCODE", err, "encode config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return failure.Wrap(failure.ErrIO, "DOC_CONFIG_WRITE", err, "create %s", filepath.Dir(path))
	}
	if err := fsutil.AtomicWrite(path, blob, 0o644); err != nil {
		return failure.Wrap(failure.ErrIO, "DOC_CONFIG_WRITE", err, "write %s", path)
	}
	return nil
}

func orDefault(path string) string {
	if path == "" {
		return DefaultConfigPath()
	}
	return path
}
