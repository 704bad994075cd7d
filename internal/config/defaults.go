package config

import "runtime"

const (
	SchemaVersion = 1

	DefaultExecutable    = "League of Legends.exe"
	DefaultGameConfig    = "Game.cfg"
	DefaultModsDir       = "mods"
	DefaultStorageRoot   = "~/.skinjector"
	DefaultIDMode        = "skin"
	DefaultMmapThreshold = 1 << 20
	DefaultBuildAttempts = 5
	DefaultRunAttempts   = 3
	DefaultRetryDelay    = "1s"
)

// Build metadata, overridden with -ldflags at release time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// DefaultToolName is the external overlay compiler's image name on this OS.
func DefaultToolName() string {
	if runtime.GOOS == "windows" {
		return "mod-tools.exe"
	}
	return "mod-tools"
}

// DefaultConfig returns a fully-populated v1 config document.
func DefaultConfig() Config {
	return Config{
		Version: SchemaVersion,
		Game: GameConfig{
			Executable: DefaultExecutable,
			ConfigFile: DefaultGameConfig,
			ModsDir:    DefaultModsDir,
		},
		Storage: StorageConfig{
			Root: DefaultStorageRoot,
		},
		Archives: ArchivesConfig{
			Extensions:      []string{".fantome"},
			PayloadPatterns: []string{"*.wad", "*.wad.client"},
			IDMode:          DefaultIDMode,
			MmapThreshold:   DefaultMmapThreshold,
		},
		Overlay: OverlayConfig{
			ToolName:      DefaultToolName(),
			BuildAttempts: DefaultBuildAttempts,
			RunAttempts:   DefaultRunAttempts,
			RetryDelay:    DefaultRetryDelay,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
