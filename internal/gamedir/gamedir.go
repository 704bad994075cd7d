// Package gamedir validates game installation roots and finds them on disk.
package gamedir

import (
	"path/filepath"
	"strings"

	"skinjector/internal/failure"
	"skinjector/internal/fsutil"
)

// GameSubdir holds the executable, Game.cfg and the mods directory.
const GameSubdir = "Game"

// Candidates are the stock install locations, tried before the registry.
var Candidates = []string{
	`C:\Riot Games\League of Legends`,
	`C:\Program Files\Riot Games\League of Legends`,
	`C:\Program Files (x86)\Riot Games\League of Legends`,
}

// Executable returns <root>/Game/<exe>.
func Executable(root, exe string) string {
	return filepath.Join(root, GameSubdir, exe)
}

// Validate fails with ErrInvalidGamePath unless <root>/Game/<exe> is a
// regular file.
func Validate(root, exe string) error {
	if strings.TrimSpace(root) == "" {
		return failure.New(failure.ErrInvalidGamePath, "GAME_PATH_INVALID", "game root is not configured")
	}
	if p := Executable(root, exe); !fsutil.IsFile(p) {
		return failure.New(failure.ErrInvalidGamePath, "GAME_PATH_INVALID", "%s not found", p)
	}
	return nil
}

const (
	SourceCandidate = "candidate"
	SourceRegistry  = "registry"
)

type Detection struct {
	Root   string `json:"root"`
	Source string `json:"source"`
}

type Detector struct {
	Candidates []string
	Executable string
	// Registry returns the install location recorded by the game installer.
	// Nil skips the registry.
	Registry func() (string, bool)
}

// NewDetector checks the stock locations, then the registry on Windows.
func NewDetector(exe string) Detector {
	return Detector{Candidates: Candidates, Executable: exe, Registry: RegistryLocation}
}

// Detect returns the first candidate that validates, falling back to the
// registry location.
func (d Detector) Detect() (Detection, error) {
	for _, c := range d.Candidates {
		if Validate(c, d.Executable) == nil {
			return Detection{Root: c, Source: SourceCandidate}, nil
		}
	}
	if d.Registry != nil {
		if root, ok := d.Registry(); ok && Validate(root, d.Executable) == nil {
			return Detection{Root: root, Source: SourceRegistry}, nil
		}
	}
	return Detection{}, failure.New(failure.ErrInvalidGamePath, "GAME_NOT_FOUND", "no installation found in %d location(s) or the registry", len(d.Candidates))
}
