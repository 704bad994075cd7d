// Package gamecfg patches the game's configuration file so it loads mods.
package gamecfg

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"skinjector/internal/failure"
	"skinjector/internal/fsutil"
)

const (
	section = "[General]"
	flagKey = "EnableMods"
)

// Change describes what EnableMods did to the file.
type Change string

const (
	ChangeNone     Change = "unchanged"
	ChangeCreated  Change = "created"
	ChangeFlipped  Change = "flipped"
	ChangeInserted Change = "inserted"
	ChangeAppended Change = "appended"
)

// EnableMods ensures path contains EnableMods=1 under [General]. It is
// idempotent and never writes a second flag line.
func EnableMods(path string) (Change, error) {
	blob, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := write(path, section+"\n"+flagKey+"=1\n"); err != nil {
			return "", err
		}
		return ChangeCreated, nil
	}
	if err != nil {
		return "", failure.Wrap(failure.ErrConfig, "CFG_READ", err, "read %s", path)
	}

	content := string(blob)
	next, change := patch(content)
	if change == ChangeNone {
		return ChangeNone, nil
	}
	if err := write(path, next); err != nil {
		return "", err
	}
	return change, nil
}

// ModsEnabled reports whether the file at path already enables mods.
func ModsEnabled(path string) (bool, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return false, failure.Wrap(failure.ErrConfig, "CFG_READ", err, "read %s", path)
	}
	_, change := patch(string(blob))
	return change == ChangeNone, nil
}

func patch(content string) (string, Change) {
	newline := "\n"
	if strings.Contains(content, "\r\n") {
		newline = "\r\n"
	}
	lines := strings.Split(content, newline)

	header := -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.EqualFold(trimmed, section) && header < 0 {
			header = i
		}
		k, v, ok := strings.Cut(trimmed, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), flagKey) {
			continue
		}
		if strings.TrimSpace(v) == "1" {
			return content, ChangeNone
		}
		lines[i] = flagKey + "=1"
		return strings.Join(lines, newline), ChangeFlipped
	}

	if header >= 0 {
		out := make([]string, 0, len(lines)+1)
		out = append(out, lines[:header+1]...)
		out = append(out, flagKey+"=1")
		out = append(out, lines[header+1:]...)
		return strings.Join(out, newline), ChangeInserted
	}

	prefix := content
	if prefix != "" && !strings.HasSuffix(prefix, newline) {
		prefix += newline
	}
	return prefix + section + newline + flagKey + "=1" + newline, ChangeAppended
}

func write(path, content string) error {
	if err := fsutil.AtomicWrite(path, []byte(content), 0o644); err != nil {
		return failure.Wrap(failure.ErrConfig, "CFG_WRITE", err, "write %s", path)
	}
	return nil
}
