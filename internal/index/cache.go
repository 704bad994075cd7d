// Package index keeps an in-memory index of champion directories and skin
// archives on disk. A Cache is safe for concurrent use; every read and every
// rebuild takes the same mutex, and a rebuild swaps all maps at once.
package index

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/cases"
	"skinjector/internal/failure"
	"skinjector/internal/fsutil"
)

// DefaultStaleAfter is how long a built index stays fresh.
const DefaultStaleAfter = 5 * time.Minute

// IDMode selects how ids are guessed from archive file names.
type IDMode string

const (
	// IDModeSkin: first number is the skin id, champion comes from the
	// enclosing champion directory.
	IDModeSkin IDMode = "skin"
	// IDModeChampion: first number is the champion id, skin is unknown.
	IDModeChampion IDMode = "champion"
	// IDModeOff disables guessing; only file names are indexed.
	IDModeOff IDMode = "off"
)

func ParseIDMode(s string) (IDMode, error) {
	switch m := IDMode(strings.ToLower(strings.TrimSpace(s))); m {
	case IDModeSkin, IDModeChampion, IDModeOff:
		return m, nil
	case "":
		return IDModeSkin, nil
	default:
		return "", errors.New("unknown id mode " + s)
	}
}

// Selection identifies one requested skin.
type Selection struct {
	ChampionID  uint32  `json:"championId" toml:"championId"`
	SkinID      uint32  `json:"skinId" toml:"skinId"`
	ChromaID    *uint32 `json:"chromaId,omitempty" toml:"chromaId,omitempty"`
	ArchiveHint string  `json:"fantome,omitempty" toml:"fantome,omitempty"`
}

// Chroma returns the chroma id or zero.
func (s Selection) Chroma() uint32 {
	if s.ChromaID == nil {
		return 0
	}
	return *s.ChromaID
}

// Entry is one indexed archive. Zero ids are unknown.
type Entry struct {
	Path         string    `json:"path"`
	ChampionID   uint32    `json:"championId,omitempty"`
	SkinID       uint32    `json:"skinId,omitempty"`
	ChromaID     uint32    `json:"chromaId,omitempty"`
	FromSidecar  bool      `json:"fromSidecar,omitempty"`
	DiscoveredAt time.Time `json:"discoveredAt"`
}

type Stats struct {
	Champions int       `json:"champions"`
	Archives  int       `json:"archives"`
	Keys      int       `json:"keys"`
	BuiltAt   time.Time `json:"builtAt"`
	Stale     bool      `json:"stale"`
}

type Options struct {
	Extensions []string
	IDMode     IDMode
	Now        func() time.Time
	StaleAfter time.Duration
}

type key struct {
	champion uint32
	chroma   uint32
}

type Cache struct {
	mu   sync.Mutex
	opts Options

	championNames map[uint32]string
	championIDs   map[string]uint32
	byChampion    map[key][]Entry
	byFilename    map[string]string
	archives      []Entry
	builtAt       time.Time
}

func New(opts Options) *Cache {
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".fantome"}
	}
	if opts.IDMode == "" {
		opts.IDMode = IDModeSkin
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	return &Cache{
		opts:          opts,
		championNames: map[uint32]string{},
		championIDs:   map[string]uint32{},
		byChampion:    map[key][]Entry{},
		byFilename:    map[string]string{},
	}
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// BuildChampionIndex scans the direct subdirectories of root for champion
// id markers. Directories without a valid marker are skipped.
func (c *Cache) BuildChampionIndex(root string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	names, ids, err := scanChampions(root)
	if err != nil {
		return err
	}
	c.championNames, c.championIDs = names, ids
	return nil
}

func scanChampions(root string) (map[uint32]string, map[string]uint32, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, failure.Wrap(failure.ErrIO, "IDX_CHAMPIONS", err, "read %s", root)
	}
	names := map[uint32]string{}
	ids := map[string]uint32{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, ok := fsutil.ReadIDMarker(filepath.Join(root, e.Name()), fsutil.ChampionMarker)
		if !ok {
			continue
		}
		names[id] = e.Name()
		ids[fold(e.Name())] = id
	}
	return names, ids, nil
}

// BuildArchiveIndex walks root for archives with a configured extension.
func (c *Cache) BuildArchiveIndex(root string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buildArchivesLocked(root)
}

func (c *Cache) buildArchivesLocked(root string) error {
	now := c.opts.Now()
	byChampion := map[key][]Entry{}
	byFilename := map[string]string{}
	var archives []Entry

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasExtension(d.Name(), c.opts.Extensions) {
			return nil
		}
		entry := Entry{Path: p, DiscoveredAt: now}
		if sc, ok := readSidecar(p); ok {
			entry.ChampionID, entry.SkinID, entry.ChromaID = sc.ChampionID, sc.SkinID, sc.ChromaID
			entry.FromSidecar = true
		} else {
			entry.ChampionID, entry.SkinID, entry.ChromaID = guess(d.Name(), c.opts.IDMode)
			if c.opts.IDMode == IDModeSkin {
				entry.ChampionID = c.enclosingChampionLocked(root, p)
			}
		}
		archives = append(archives, entry)
		lower := strings.ToLower(d.Name())
		if _, ok := byFilename[lower]; !ok {
			byFilename[lower] = p
		}
		if entry.ChampionID != 0 {
			k := key{entry.ChampionID, entry.ChromaID}
			byChampion[k] = append(byChampion[k], entry)
		}
		return nil
	})
	if err != nil {
		return failure.Wrap(failure.ErrWalk, "IDX_WALK", err, "walk %s", root)
	}

	c.byChampion, c.byFilename, c.archives = byChampion, byFilename, archives
	c.builtAt = now
	return nil
}

// enclosingChampionLocked returns the id of the nearest ancestor directory of
// p (below root) that names a known champion.
func (c *Cache) enclosingChampionLocked(root, p string) uint32 {
	dir := filepath.Dir(p)
	for {
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			break
		}
		if id, ok := c.championIDs[fold(filepath.Base(dir))]; ok {
			return id
		}
		if id, ok := fsutil.ReadIDMarker(dir, fsutil.ChampionMarker); ok {
			return id
		}
		dir = filepath.Dir(dir)
	}
	return 0
}

type sidecar struct {
	ChampionID uint32 `toml:"champion_id"`
	SkinID     uint32 `toml:"skin_id"`
	ChromaID   uint32 `toml:"chroma_id"`
}

// readSidecar loads "<archive>.toml" next to the archive when present.
func readSidecar(archivePath string) (sidecar, bool) {
	blob, err := os.ReadFile(archivePath + ".toml")
	if err != nil {
		return sidecar{}, false
	}
	var sc sidecar
	if err := toml.Unmarshal(blob, &sc); err != nil {
		return sidecar{}, false
	}
	return sc, true
}

func hasExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// Rebuild rebuilds both indexes under a single lock hold.
func (c *Cache) Rebuild(championsRoot, archiveRoot string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	names, ids, err := scanChampions(championsRoot)
	if err != nil {
		return err
	}
	prevNames, prevIDs := c.championNames, c.championIDs
	c.championNames, c.championIDs = names, ids
	if err := c.buildArchivesLocked(archiveRoot); err != nil {
		c.championNames, c.championIDs = prevNames, prevIDs
		return err
	}
	return nil
}

// EnsureFresh rebuilds when the index is stale. It reports whether a
// rebuild happened.
func (c *Cache) EnsureFresh(championsRoot, archiveRoot string) (bool, error) {
	if !c.IsStale() {
		return false, nil
	}
	if err := c.Rebuild(championsRoot, archiveRoot); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) IsStale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.staleLocked()
}

func (c *Cache) staleLocked() bool {
	return c.builtAt.IsZero() || c.opts.Now().Sub(c.builtAt) > c.opts.StaleAfter
}

// Lookup resolves sel to an archive path. Candidates are tried in order:
// the (champion, chroma) index, the hint against fallbackRoot, then the
// hint's base name in the file name index.
func (c *Cache) Lookup(sel Selection, fallbackRoot string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.byIDLocked(sel); ok {
		return p, true
	}
	hint := strings.TrimSpace(sel.ArchiveHint)
	if hint == "" {
		return "", false
	}
	if filepath.IsAbs(hint) {
		if fsutil.IsFile(hint) {
			return hint, true
		}
	} else if fallbackRoot != "" {
		if p := filepath.Join(fallbackRoot, hint); fsutil.IsFile(p) {
			return p, true
		}
	}
	if p, ok := c.byFilename[strings.ToLower(baseName(hint))]; ok {
		return p, true
	}
	return "", false
}

// byIDLocked prefers an entry with the selected skin id. Failing that it
// returns the first entry of the same champion and chroma whose skin id is
// unknown, so archives named by champion id alone still resolve.
func (c *Cache) byIDLocked(sel Selection) (string, bool) {
	entries := c.byChampion[key{sel.ChampionID, sel.Chroma()}]
	var unknown string
	for _, e := range entries {
		switch {
		case e.SkinID == sel.SkinID:
			return e.Path, true
		case e.SkinID == 0 && unknown == "":
			unknown = e.Path
		}
	}
	return unknown, unknown != ""
}

// baseName handles both separators regardless of host OS.
func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

func (c *Cache) ChampionName(id uint32) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.championNames[id]
	return name, ok
}

func (c *Cache) ChampionID(name string) (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.championIDs[fold(name)]
	return id, ok
}

// Archives returns a copy of the indexed archives sorted by path.
func (c *Cache) Archives() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]Entry(nil), c.archives...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Champions: len(c.championNames),
		Archives:  len(c.archives),
		Keys:      len(c.byChampion),
		BuiltAt:   c.builtAt,
		Stale:     c.staleLocked(),
	}
}
