package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"skinjector/internal/failure"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Archives.MmapThreshold != 1048576 {
		t.Fatalf("expected 1 MiB mmap threshold, got %d", cfg.Archives.MmapThreshold)
	}
	if cfg.Overlay.BuildAttempts != 5 || cfg.Overlay.RunAttempts != 3 {
		t.Fatalf("unexpected attempts: %+v", cfg.Overlay)
	}
}

func TestEnsureCreatesAndLoadsConfig(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.toml")
	cfg, err := Ensure(path)
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if cfg.Version != SchemaVersion {
		t.Fatalf("expected schema version %d, got %d", SchemaVersion, cfg.Version)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file should exist: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded.Archives.Extensions) != 1 || loaded.Archives.Extensions[0] != ".fantome" {
		t.Fatalf("expected default extensions, got %v", loaded.Archives.Extensions)
	}
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	doc := "version = 1\n[game]\nroot = \"C:/Riot Games/League of Legends\"\n[archives]\nextensions = [\"FANTOME\", \"zip\", \".zip\"]\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := strings.Join(cfg.Archives.Extensions, ","); got != ".fantome,.zip" {
		t.Fatalf("unexpected extensions %q", got)
	}
	if cfg.Game.Executable != DefaultExecutable || cfg.Archives.IDMode != "skin" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   string
	}{
		{"version", func(c *Config) { c.Version = 2 }, "DOC_CONFIG_VERSION"},
		{"id mode", func(c *Config) { c.Archives.IDMode = "guess" }, "DOC_CONFIG_ARCHIVES"},
		{"attempts", func(c *Config) { c.Overlay.RunAttempts = -1 }, "DOC_CONFIG_OVERLAY"},
		{"delay", func(c *Config) { c.Overlay.RetryDelay = "soon" }, "DOC_CONFIG_OVERLAY"},
		{"mods dir", func(c *Config) { c.Game.ModsDir = "a/b" }, "DOC_CONFIG_GAME"},
		{"format", func(c *Config) { c.Logging.Format = "yaml" }, "DOC_CONFIG_LOGGING"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if err == nil || !strings.HasPrefix(err.Error(), tt.code) {
				t.Fatalf("expected %s error, got %v", tt.code, err)
			}
		})
	}
}

func TestRetryDelay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Overlay.RetryDelay = "250ms"
	d, err := RetryDelay(cfg)
	if err != nil || d != 250*time.Millisecond {
		t.Fatalf("RetryDelay = %v, %v", d, err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SKINJECTOR_GAME_ROOT", "/games/lol")
	t.Setenv("SKINJECTOR_TOOL_PATH", "/opt/mod-tools")
	cfg, err := ApplyEnv(DefaultConfig())
	if err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Game.Root != "/games/lol" || cfg.Overlay.ToolPath != "/opt/mod-tools" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Storage.Root != DefaultStorageRoot {
		t.Fatalf("unset override should keep default, got %q", cfg.Storage.Root)
	}
}

func TestResolveSourceRootDefaultsUnderStorage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Root = filepath.Join(t.TempDir(), "state")
	got, err := ResolveSourceRoot(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(cfg.Storage.Root, "champions") {
		t.Fatalf("unexpected source root %q", got)
	}
	cfg.Archives.SourceRoot = "/srv/skins"
	got, _ = ResolveSourceRoot(cfg)
	if got != filepath.Clean("/srv/skins") {
		t.Fatalf("explicit source root ignored: %q", got)
	}
}

func TestAddSearchDirDeduplicates(t *testing.T) {
	cfg := DefaultConfig()
	changed, err := AddSearchDir(&cfg, "/opt/tools")
	if err != nil || !changed {
		t.Fatalf("first add: %v %v", changed, err)
	}
	changed, err = AddSearchDir(&cfg, "/opt/tools")
	if err != nil || changed {
		t.Fatalf("duplicate add should be a no-op: %v %v", changed, err)
	}
	if err := SetGameRoot(&cfg, "  "); err == nil {
		t.Fatalf("expected empty game root error")
	}
}

func TestLoadErrorsAreClassified(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "absent.toml"))
	if !errors.Is(err, failure.ErrConfig) || !errors.Is(err, fs.ErrNotExist) || !strings.HasPrefix(err.Error(), "DOC_CONFIG_READ") {
		t.Fatalf("expected classified read error, got %v", err)
	}
	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("version = ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); !errors.Is(err, failure.ErrConfig) || !strings.HasPrefix(err.Error(), "DOC_CONFIG_PARSE") {
		t.Fatalf("expected DOC_CONFIG_PARSE, got %v", err)
	}
}

func TestEffectiveLeavesLoadedFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if _, err := Ensure(path); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SKINJECTOR_GAME_ROOT", "/games/lol")
	file, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if file.Game.Root != "" {
		t.Fatalf("Load must not apply overrides, got %q", file.Game.Root)
	}
	eff, err := Effective(file)
	if err != nil || eff.Game.Root != "/games/lol" {
		t.Fatalf("Effective = %q, %v", eff.Game.Root, err)
	}
}
