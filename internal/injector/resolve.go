package injector

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"skinjector/internal/extract"
	"skinjector/internal/failure"
	"skinjector/internal/fsutil"
	"skinjector/internal/index"
)

var errFound = errors.New("found")

// resolver is the slow path used when the index has no answer.
type resolver struct {
	root       string
	extensions []string
	champion   func(uint32) (string, bool)
}

// resolve walks the fallback chain: hint under root, hint under the champion
// directory, hint base name anywhere under root, then skin id tokens.
func (r resolver) resolve(sel Selection) (string, error) {
	hint := strings.TrimSpace(sel.ArchiveHint)
	base := lastElem(hint)
	champDir := ""
	if name, ok := r.champion(sel.ChampionID); ok {
		champDir = filepath.Join(r.root, name)
	}

	if hint != "" {
		direct := hint
		if !filepath.IsAbs(hint) {
			direct = filepath.Join(r.root, filepath.FromSlash(strings.ReplaceAll(hint, `\`, "/")))
		}
		if fsutil.IsFile(direct) {
			return direct, nil
		}
		if champDir != "" && base != "" {
			if p := filepath.Join(champDir, base); fsutil.IsFile(p) {
				return p, nil
			}
		}
		if base != "" {
			p, err := r.walk(r.root, func(name string) bool { return name == base })
			if err != nil || p != "" {
				return p, err
			}
		}
	}

	match := func(name string) bool {
		return extract.IsArchive(name, r.extensions) && matchesSkin(name, sel)
	}
	if champDir != "" && fsutil.IsDir(champDir) {
		entries, err := os.ReadDir(champDir)
		if err != nil {
			return "", failure.Wrap(failure.ErrIO, "INJ_RESOLVE", err, "read %s", champDir)
		}
		for _, e := range entries {
			if e.Type().IsRegular() && match(e.Name()) {
				return filepath.Join(champDir, e.Name()), nil
			}
		}
	}
	p, err := r.walk(r.root, match)
	if err != nil || p != "" {
		return p, err
	}
	return "", failure.New(failure.ErrMissingArchive, "INJ_MISSING_ARCHIVE",
		"no archive found for champion %d skin %d%s", sel.ChampionID, sel.SkinID, chromaSuffix(sel))
}

func (r resolver) walk(root string, match func(string) bool) (string, error) {
	if !fsutil.IsDir(root) {
		return "", nil
	}
	var found string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && match(d.Name()) {
			found = p
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", failure.Wrap(failure.ErrWalk, "INJ_RESOLVE", err, "walk %s", root)
	}
	return found, nil
}

// matchesSkin checks whole-token skin id agreement. A chroma selection needs a
// "chroma" token and its chroma id; a base selection must not be a chroma.
func matchesSkin(name string, sel Selection) bool {
	nums := index.NumericTokens(name)
	if !containsID(nums, sel.SkinID) {
		return false
	}
	isChroma := index.HasChromaToken(name)
	if sel.ChromaID == nil {
		return !isChroma
	}
	return isChroma && containsID(nums, *sel.ChromaID)
}

func containsID(ids []uint32, id uint32) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func lastElem(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}
