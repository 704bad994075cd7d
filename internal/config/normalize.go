package config

import "strings"

func Normalize(cfg Config) Config {
	if cfg.Version == 0 {
		cfg.Version = SchemaVersion
	}
	if cfg.Game.Executable == "" {
		cfg.Game.Executable = DefaultExecutable
	}
	if cfg.Game.ConfigFile == "" {
		cfg.Game.ConfigFile = DefaultGameConfig
	}
	if cfg.Game.ModsDir == "" {
		cfg.Game.ModsDir = DefaultModsDir
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = DefaultStorageRoot
	}
	cfg.Archives.Extensions = normalizeExtensions(cfg.Archives.Extensions)
	if len(cfg.Archives.Extensions) == 0 {
		cfg.Archives.Extensions = []string{".fantome"}
	}
	if len(cfg.Archives.PayloadPatterns) == 0 {
		cfg.Archives.PayloadPatterns = []string{"*.wad", "*.wad.client"}
	}
	cfg.Archives.IDMode = strings.ToLower(strings.TrimSpace(cfg.Archives.IDMode))
	if cfg.Archives.IDMode == "" {
		cfg.Archives.IDMode = DefaultIDMode
	}
	if cfg.Archives.MmapThreshold == 0 {
		cfg.Archives.MmapThreshold = DefaultMmapThreshold
	}
	if cfg.Overlay.ToolName == "" {
		cfg.Overlay.ToolName = DefaultToolName()
	}
	if cfg.Overlay.BuildAttempts == 0 {
		cfg.Overlay.BuildAttempts = DefaultBuildAttempts
	}
	if cfg.Overlay.RunAttempts == 0 {
		cfg.Overlay.RunAttempts = DefaultRunAttempts
	}
	if cfg.Overlay.RetryDelay == "" {
		cfg.Overlay.RetryDelay = DefaultRetryDelay
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	return cfg
}

// normalizeExtensions lower-cases, dot-prefixes and de-duplicates extensions.
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	seen := map[string]struct{}{}
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
