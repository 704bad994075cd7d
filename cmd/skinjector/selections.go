package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"skinjector/internal/injector"
)

// fileSelection accepts both the "fantome" and "archive" hint keys.
type fileSelection struct {
	ChampionID uint32  `json:"championId" toml:"championId"`
	SkinID     uint32  `json:"skinId" toml:"skinId"`
	ChromaID   *uint32 `json:"chromaId,omitempty" toml:"chromaId,omitempty"`
	Fantome    string  `json:"fantome,omitempty" toml:"fantome,omitempty"`
	Archive    string  `json:"archive,omitempty" toml:"archive,omitempty"`
}

type selectionFile struct {
	Selections []fileSelection `json:"selections" toml:"selections"`
}

// parseSelections reads "champion:skin[:chroma][=archive]" arguments.
func parseSelections(args []string) ([]injector.Selection, error) {
	out := make([]injector.Selection, 0, len(args))
	for _, arg := range args {
		ids, hint, _ := strings.Cut(arg, "=")
		parts := strings.Split(ids, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("SEL_PARSE: %q: expected champion:skin[:chroma][=archive]", arg)
		}
		var sel injector.Selection
		var err error
		if sel.ChampionID, err = parseID(parts[0]); err != nil {
			return nil, fmt.Errorf("SEL_PARSE: %q: champion: %w", arg, err)
		}
		if sel.SkinID, err = parseID(parts[1]); err != nil {
			return nil, fmt.Errorf("SEL_PARSE: %q: skin: %w", arg, err)
		}
		if len(parts) == 3 {
			chroma, err := parseID(parts[2])
			if err != nil {
				return nil, fmt.Errorf("SEL_PARSE: %q: chroma: %w", arg, err)
			}
			sel.ChromaID = &chroma
		}
		sel.ArchiveHint = strings.TrimSpace(hint)
		out = append(out, sel)
	}
	return out, nil
}

// loadSelectionFile reads selections from JSON (an array, or an object with a
// "selections" array) or TOML ([[selections]] tables).
func loadSelectionFile(path string) ([]injector.Selection, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("SEL_FILE: %w", err)
	}
	var file selectionFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(blob, &file); err != nil {
			return nil, fmt.Errorf("SEL_FILE: %w", err)
		}
	case ".json", "":
		trimmed := bytes.TrimSpace(blob)
		if bytes.HasPrefix(trimmed, []byte("[")) {
			err = json.Unmarshal(trimmed, &file.Selections)
		} else {
			err = json.Unmarshal(trimmed, &file)
		}
		if err != nil {
			return nil, fmt.Errorf("SEL_FILE: %w", err)
		}
	default:
		return nil, fmt.Errorf("SEL_FILE: unsupported selections file %q", path)
	}

	out := make([]injector.Selection, 0, len(file.Selections))
	for i, s := range file.Selections {
		if s.ChampionID == 0 {
			return nil, fmt.Errorf("SEL_FILE: selection %d: missing championId", i+1)
		}
		hint := s.Fantome
		if hint == "" {
			hint = s.Archive
		}
		out = append(out, injector.Selection{
			ChampionID:  s.ChampionID,
			SkinID:      s.SkinID,
			ChromaID:    s.ChromaID,
			ArchiveHint: hint,
		})
	}
	return out, nil
}
