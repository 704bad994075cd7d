package overlay

import (
	"os"
	"path/filepath"
	"strings"

	"skinjector/internal/config"
	"skinjector/internal/failure"
)

// Locate returns the first candidate that is an existing regular file.
func Locate(candidates []string) (string, error) {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		info, err := os.Stat(c)
		if err == nil && info.Mode().IsRegular() {
			return c, nil
		}
	}
	return "", failure.New(failure.ErrOverlay, "OVL_TOOL_MISSING", "overlay tool not found in %d candidate location(s)", len(candidates))
}

// DefaultCandidates builds the ordered search list for the overlay tool.
func DefaultCandidates(cfg config.Config, storageRoot string) []string {
	tool := cfg.Overlay.ToolName
	var out []string
	if p := strings.TrimSpace(cfg.Overlay.ToolPath); p != "" {
		if expanded, err := config.ExpandPath(p); err == nil {
			out = append(out, expanded)
		}
	}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		out = append(out,
			filepath.Join(dir, "cslol-tools", tool),
			filepath.Join(dir, "resources", "cslol-tools", tool),
			filepath.Join(dir, tool),
		)
	}
	if storageRoot != "" {
		out = append(out,
			filepath.Join(storageRoot, "cslol-tools", tool),
			filepath.Join(storageRoot, tool),
		)
	}
	for _, d := range cfg.Overlay.SearchDirs {
		if expanded, err := config.ExpandPath(d); err == nil {
			out = append(out, filepath.Join(expanded, tool))
		}
	}
	return out
}
