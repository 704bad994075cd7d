package doctor

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"skinjector/internal/config"
	"skinjector/internal/fsutil"
	"skinjector/internal/gamecfg"
	"skinjector/internal/gamedir"
	"skinjector/internal/overlay"
	"skinjector/internal/store"
)

type Finding struct {
	Code    string `json:"code"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type Report struct {
	Healthy      bool      `json:"healthy"`
	Findings     []Finding `json:"findings"`
	GameDir      string    `json:"gameDir,omitempty"`
	DetectedGame string    `json:"detectedGame,omitempty"`
	ToolPath     string    `json:"toolPath,omitempty"`
	SourceRoot   string    `json:"sourceRoot,omitempty"`
}

type Service struct {
	ConfigPath string
	StateRoot  string
	// Detect looks for an installation when the configured one is invalid.
	Detect func() (gamedir.Detection, error)
}

func (s *Service) Run() Report {
	findings := []Finding{}
	report := Report{}
	add := func(code, level, msg string) {
		findings = append(findings, Finding{Code: code, Level: level, Message: msg})
	}

	cfg := config.DefaultConfig()
	if _, err := os.Stat(s.ConfigPath); err != nil {
		add("DOC_CONFIG_MISSING", "error", err.Error())
	} else if loaded, err := config.Load(s.ConfigPath); err != nil {
		add("DOC_CONFIG_INVALID", "error", err.Error())
	} else {
		cfg = loaded
	}
	if withEnv, err := config.Effective(cfg); err != nil {
		add("DOC_CONFIG_INVALID", "error", err.Error())
	} else {
		cfg = withEnv
	}

	if _, err := store.LoadState(s.StateRoot); err != nil {
		add("DOC_STATE_INVALID", "error", err.Error())
	}

	gameRoot, err := config.ResolveGameRoot(cfg)
	if err == nil {
		err = gamedir.Validate(gameRoot, cfg.Game.Executable)
	}
	if err != nil {
		msg := err.Error()
		if s.Detect != nil {
			if found, derr := s.Detect(); derr == nil {
				report.DetectedGame = found.Root
				msg += "; found an installation at " + found.Root + " (run: skinjector config detect-game)"
			}
		}
		add("GAME_PATH_INVALID", "error", msg)
	} else {
		gameDir := filepath.Join(gameRoot, gamedir.GameSubdir)
		report.GameDir = gameDir
		if enabled, err := gamecfg.ModsEnabled(filepath.Join(gameDir, cfg.Game.ConfigFile)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				add("GAME_CFG_MODS_DISABLED", "warn", cfg.Game.ConfigFile+" missing; it will be created on the next injection")
			} else {
				add("GAME_CFG_MODS_DISABLED", "warn", err.Error())
			}
		} else if !enabled {
			add("GAME_CFG_MODS_DISABLED", "warn", "EnableMods is not set; it will be set on the next injection")
		}
	}

	if tool, err := overlay.Locate(overlay.DefaultCandidates(cfg, s.StateRoot)); err != nil {
		add("TOOL_NOT_FOUND", "error", err.Error())
	} else {
		report.ToolPath = tool
	}

	if src, err := config.ResolveSourceRoot(cfg); err != nil {
		add("SOURCE_ROOT_MISSING", "error", err.Error())
	} else {
		report.SourceRoot = src
		if !fsutil.IsDir(src) {
			add("SOURCE_ROOT_MISSING", "warn", src+" does not exist")
		}
	}

	healthy := true
	for _, f := range findings {
		if f.Level == "error" {
			healthy = false
			break
		}
	}
	report.Healthy = healthy
	report.Findings = findings
	return report
}
