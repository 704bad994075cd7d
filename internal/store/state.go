package store

import (
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"skinjector/internal/fsutil"
)

func EnsureLayout(root string) error {
	dirs := []string{root, ModsRoot(root), TempRoot(root), ChampionsRoot(root), CustomSkinsRoot(root)}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func LoadState(root string) (State, error) {
	if err := EnsureLayout(root); err != nil {
		return State{}, err
	}
	path := StatePath(root)
	blob, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{Version: StateVersion}, nil
		}
		return State{}, err
	}
	var st State
	if err := toml.Unmarshal(blob, &st); err != nil {
		return State{}, fmt.Errorf("DOC_STATE_PARSE: %w", err)
	}
	if st.Version == 0 {
		st.Version = StateVersion
	}
	if st.Version != StateVersion {
		return State{}, fmt.Errorf("DOC_STATE_VERSION: unsupported state version %d", st.Version)
	}
	seen := map[string]struct{}{}
	for _, c := range st.CustomSkins {
		if c.ID == "" || c.Path == "" {
			return State{}, fmt.Errorf("DOC_STATE_SCHEMA: custom skin entry missing id or path")
		}
		if _, ok := seen[c.ID]; ok {
			return State{}, fmt.Errorf("DOC_STATE_SCHEMA: duplicate custom skin %q", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return st, nil
}

func SaveState(root string, st State) error {
	if err := EnsureLayout(root); err != nil {
		return err
	}
	st.Version = StateVersion
	sort.Slice(st.CustomSkins, func(i, j int) bool {
		return st.CustomSkins[i].ID < st.CustomSkins[j].ID
	})
	blob, err := toml.Marshal(st)
	if err != nil {
		return fmt.Errorf("DOC_STATE_ENCODE: %w", err)
	}
	return fsutil.AtomicWrite(StatePath(root), blob, 0o644)
}

// UpdateSession loads the state, applies fn to its session and saves it back.
func UpdateSession(root string, fn func(*Session)) error {
	st, err := LoadState(root)
	if err != nil {
		return err
	}
	fn(&st.Session)
	return SaveState(root, st)
}

func UpsertCustomSkin(st *State, rec CustomSkin) {
	for i := range st.CustomSkins {
		if st.CustomSkins[i].ID == rec.ID {
			st.CustomSkins[i] = rec
			return
		}
	}
	st.CustomSkins = append(st.CustomSkins, rec)
}

func RemoveCustomSkin(st *State, id string) (CustomSkin, bool) {
	for i := range st.CustomSkins {
		if st.CustomSkins[i].ID == id {
			rec := st.CustomSkins[i]
			st.CustomSkins = append(st.CustomSkins[:i], st.CustomSkins[i+1:]...)
			return rec, true
		}
	}
	return CustomSkin{}, false
}
