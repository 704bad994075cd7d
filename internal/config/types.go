package config

// Config is the frozen v1 global schema.
type Config struct {
	Version  int            `toml:"version"`
	Game     GameConfig     `toml:"game"`
	Storage  StorageConfig  `toml:"storage"`
	Archives ArchivesConfig `toml:"archives"`
	Overlay  OverlayConfig  `toml:"overlay"`
	Logging  LoggingConfig  `toml:"logging"`
}

// GameConfig points at the game installation. Root is the installation root;
// the executable, config file and mods directory live under Root/Game.
type GameConfig struct {
	Root       string `toml:"root" json:"root"`
	Executable string `toml:"executable" json:"executable"`
	ConfigFile string `toml:"config_file" json:"configFile"`
	ModsDir    string `toml:"mods_dir" json:"modsDir"`
}

type StorageConfig struct {
	Root string `toml:"root"`
}

type ArchivesConfig struct {
	SourceRoot      string   `toml:"source_root,omitempty" json:"sourceRoot,omitempty"`
	Extensions      []string `toml:"extensions" json:"extensions"`
	PayloadPatterns []string `toml:"payload_patterns" json:"payloadPatterns"`
	IDMode          string   `toml:"id_mode" json:"idMode"`
	MmapThreshold   int64    `toml:"mmap_threshold" json:"mmapThreshold"`
}

type OverlayConfig struct {
	ToolPath      string   `toml:"tool_path,omitempty" json:"toolPath,omitempty"`
	ToolName      string   `toml:"tool_name" json:"toolName"`
	SearchDirs    []string `toml:"search_dirs,omitempty" json:"searchDirs,omitempty"`
	BuildAttempts int      `toml:"build_attempts" json:"buildAttempts"`
	RunAttempts   int      `toml:"run_attempts" json:"runAttempts"`
	RetryDelay    string   `toml:"retry_delay" json:"retryDelay"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
	// Format is the default command output, "text" or "json".
	Format string `toml:"format"`
}
