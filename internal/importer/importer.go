// Package importer copies user-supplied skin archives into the custom skins
// library and keeps their metadata in the state file.
package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"skinjector/internal/audit"
	"skinjector/internal/fsutil"
	"skinjector/internal/store"
)

// DefaultExtensions are the file types accepted for custom skins.
var DefaultExtensions = []string{".fantome", ".wad", ".client", ".zip"}

type Service struct {
	StorageRoot string
	Extensions  []string
	// Champion maps a champion id to its directory name.
	Champion func(uint32) (string, bool)
	Now      func() time.Time
	Audit    *audit.Logger
}

// sidecar mirrors the archive sidecar read by the file index, so imported
// skins are attributed to their champion without a marker directory.
type sidecar struct {
	ChampionID uint32 `toml:"champion_id"`
	SkinID     uint32 `toml:"skin_id"`
}

// ValidateArchive checks that path is a regular file with an accepted extension.
func ValidateArchive(path string, exts []string) (string, error) {
	clean := filepath.Clean(path)
	info, err := os.Stat(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("IMP_SOURCE: %q does not exist", clean)
		}
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("IMP_SOURCE: %q is not a regular file", clean)
	}
	ext := strings.ToLower(filepath.Ext(clean))
	for _, allowed := range exts {
		if ext == allowed {
			return ext, nil
		}
	}
	return "", fmt.Errorf("IMP_EXTENSION: unsupported file type %q", ext)
}

// NormalizeName trims the display name, defaulting to the source file stem.
func NormalizeName(name, src string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		base := filepath.Base(src)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return name
}

func (s *Service) Import(championID uint32, src, name string) (store.CustomSkin, error) {
	if championID == 0 {
		return store.CustomSkin{}, fmt.Errorf("IMP_CHAMPION: champion id is required")
	}
	exts := s.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	ext, err := ValidateArchive(src, exts)
	if err != nil {
		return store.CustomSkin{}, err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ts := now().UTC()

	champ := "champion_" + strconv.FormatUint(uint64(championID), 10)
	if s.Champion != nil {
		if n, ok := s.Champion(championID); ok {
			champ = n
		}
	}
	st, err := store.LoadState(s.StorageRoot)
	if err != nil {
		return store.CustomSkin{}, err
	}
	id := fmt.Sprintf("custom_%d_%d", championID, ts.Unix())
	for n := 2; hasSkin(st, id); n++ {
		id = fmt.Sprintf("custom_%d_%d_%d", championID, ts.Unix(), n)
	}

	dir := filepath.Join(store.CustomSkinsRoot(s.StorageRoot), champ)
	dest := filepath.Join(dir, champ+"_"+id+ext)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return store.CustomSkin{}, fmt.Errorf("IMP_WRITE: %w", err)
	}
	if err := fsutil.CopyFile(filepath.Clean(src), dest); err != nil {
		return store.CustomSkin{}, fmt.Errorf("IMP_WRITE: %w", err)
	}
	blob, err := toml.Marshal(sidecar{ChampionID: championID})
	if err == nil {
		err = fsutil.AtomicWrite(dest+".toml", blob, 0o644)
	}
	if err != nil {
		_ = os.Remove(dest)
		return store.CustomSkin{}, fmt.Errorf("IMP_WRITE: %w", err)
	}

	rec := store.CustomSkin{
		ID:           id,
		Name:         NormalizeName(name, src),
		ChampionID:   championID,
		ChampionName: champ,
		Path:         dest,
		ImportedAt:   ts,
	}
	store.UpsertCustomSkin(&st, rec)
	if err := store.SaveState(s.StorageRoot, st); err != nil {
		_ = os.Remove(dest)
		_ = os.Remove(dest + ".toml")
		return store.CustomSkin{}, err
	}
	_ = s.Audit.Log(audit.Event{Operation: "import", Phase: "copy", Status: "ok", Message: id,
		Fields: map[string]string{"path": dest, "champion": champ}})
	return rec, nil
}

// List returns the imported skins, newest first. A non-zero championID filters.
func (s *Service) List(championID uint32) ([]store.CustomSkin, error) {
	st, err := store.LoadState(s.StorageRoot)
	if err != nil {
		return nil, err
	}
	out := make([]store.CustomSkin, 0, len(st.CustomSkins))
	for _, c := range st.CustomSkins {
		if championID == 0 || c.ChampionID == championID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ImportedAt.Equal(out[j].ImportedAt) {
			return out[i].ImportedAt.After(out[j].ImportedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Delete removes the skin file, its sidecar and its metadata.
func (s *Service) Delete(id string) (store.CustomSkin, error) {
	st, err := store.LoadState(s.StorageRoot)
	if err != nil {
		return store.CustomSkin{}, err
	}
	rec, ok := store.RemoveCustomSkin(&st, id)
	if !ok {
		return store.CustomSkin{}, fmt.Errorf("IMP_NOT_FOUND: custom skin %q not found", id)
	}
	for _, p := range []string{rec.Path, rec.Path + ".toml"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return store.CustomSkin{}, fmt.Errorf("IMP_DELETE: %w", err)
		}
	}
	if err := store.SaveState(s.StorageRoot, st); err != nil {
		return store.CustomSkin{}, err
	}
	_ = s.Audit.Log(audit.Event{Operation: "import", Phase: "delete", Status: "ok", Message: id})
	return rec, nil
}

func hasSkin(st store.State, id string) bool {
	for _, c := range st.CustomSkins {
		if c.ID == id {
			return true
		}
	}
	return false
}
