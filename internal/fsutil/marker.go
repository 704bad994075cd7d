package fsutil

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ChampionMarker is the per-directory file holding a champion's numeric id.
const ChampionMarker = "champion_id.txt"

// ReadIDMarker reads a decimal id from dir/name. It reports false when the
// marker is missing, unreadable, or not a positive 32-bit integer.
func ReadIDMarker(dir, name string) (uint32, bool) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint32(id), true
}

// WriteIDMarker writes id as the marker dir/name.
func WriteIDMarker(dir, name string, id uint32) error {
	return AtomicWrite(filepath.Join(dir, name), []byte(strconv.FormatUint(uint64(id), 10)+"\n"), 0o644)
}
