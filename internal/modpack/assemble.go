// Package modpack turns an extracted archive into a mod directory the
// overlay tool accepts: a META/info.json descriptor plus a WAD/ payload.
package modpack

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/woozymasta/pathrules"
	"skinjector/internal/failure"
	"skinjector/internal/fsutil"
)

// Shape tags how a mod directory was produced.
type Shape string

const (
	// ShapeCanonical: the archive already carried META/info.json and WAD/.
	ShapeCanonical Shape = "canonical"
	// ShapeSynthesized: descriptor and/or payload layout were produced here.
	ShapeSynthesized Shape = "synthesized"
)

const synthesizedAuthor = "skinjector"

var DefaultPayloadPatterns = []string{"*.wad", "*.wad.client"}

type Options struct {
	// Name is the descriptor name used when one has to be generated.
	Name            string
	Now             func() time.Time
	PayloadPatterns []string
}

type Assembled struct {
	Dir                 string     `json:"dir"`
	Shape               Shape      `json:"shape"`
	Descriptor          Descriptor `json:"descriptor"`
	DescriptorGenerated bool       `json:"descriptorGenerated"`
	PayloadFiles        int        `json:"payloadFiles"`
}

// Assemble builds modDir from extractedDir. modDir is replaced if it exists.
// An archive that does not follow the canonical layout is never an error.
func Assemble(extractedDir, modDir string, opts Options) (Assembled, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Name == "" {
		opts.Name = filepath.Base(modDir)
	}
	if len(opts.PayloadPatterns) == 0 {
		opts.PayloadPatterns = DefaultPayloadPatterns
	}
	if err := os.RemoveAll(modDir); err != nil {
		return Assembled{}, failure.Wrap(failure.ErrIO, "MOD_RESET", err, "clear %s", modDir)
	}
	if err := os.MkdirAll(filepath.Join(modDir, MetaDir), 0o755); err != nil {
		return Assembled{}, failure.Wrap(failure.ErrIO, "MOD_RESET", err, "create %s", modDir)
	}

	hasDescriptor := IsValid(extractedDir)
	hasPayload := fsutil.IsDir(filepath.Join(extractedDir, PayloadDir))
	out := Assembled{Dir: modDir, Shape: ShapeSynthesized}
	if hasDescriptor && hasPayload {
		out.Shape = ShapeCanonical
	}

	if hasDescriptor {
		if err := fsutil.CopyFile(DescriptorPath(extractedDir), DescriptorPath(modDir)); err != nil {
			return Assembled{}, failure.Wrap(failure.ErrIO, "MOD_COPY", err, "copy descriptor")
		}
		d, err := ReadDescriptor(modDir)
		if err != nil {
			// copied verbatim even when it does not parse
			d = Descriptor{Name: opts.Name}
		}
		out.Descriptor = d
	} else {
		out.Descriptor = Descriptor{
			Name:        opts.Name,
			Version:     "1.0.0",
			Author:      synthesizedAuthor,
			Description: fmt.Sprintf("Extracted from archive at %s", opts.Now().UTC().Format(time.RFC3339)),
		}
		out.DescriptorGenerated = true
		if err := writeDescriptor(modDir, out.Descriptor); err != nil {
			return Assembled{}, err
		}
	}

	var (
		n   int
		err error
	)
	if hasPayload {
		n, err = copyPayloadTree(filepath.Join(extractedDir, PayloadDir), filepath.Join(modDir, PayloadDir))
	} else {
		n, err = collectPayload(extractedDir, filepath.Join(modDir, PayloadDir), opts.PayloadPatterns)
	}
	if err != nil {
		return Assembled{}, err
	}
	out.PayloadFiles = n
	return out, nil
}

func copyPayloadTree(src, dst string) (int, error) {
	if err := fsutil.CopyTree(src, dst); err != nil {
		return 0, failure.Wrap(failure.ErrIO, "MOD_COPY", err, "copy payload")
	}
	n := 0
	err := filepath.WalkDir(dst, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, failure.Wrap(failure.ErrIO, "MOD_COPY", err, "count payload")
	}
	return n, nil
}

// collectPayload flattens every file outside META/ that matches patterns into
// dst. The first file wins when two share a base name.
func collectPayload(root, dst string, patterns []string) (int, error) {
	rules := make([]pathrules.Rule, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			rules = append(rules, pathrules.Rule{Action: pathrules.ActionInclude, Pattern: p})
		}
	}
	matcher, err := pathrules.NewMatcher(rules, pathrules.MatcherOptions{
		CaseInsensitive: true,
		DefaultAction:   pathrules.ActionExclude,
	})
	if err != nil {
		return 0, failure.Wrap(failure.ErrConfig, "MOD_PATTERN", err, "compile payload patterns")
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return 0, failure.Wrap(failure.ErrIO, "MOD_COPY", err, "create %s", dst)
	}

	seen := map[string]struct{}{}
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if strings.EqualFold(rel, MetaDir) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !matcher.Included(rel, false) {
			return nil
		}
		base := path.Base(rel)
		key := strings.ToLower(base)
		if _, dup := seen[key]; dup {
			return nil
		}
		seen[key] = struct{}{}
		return fsutil.CopyFile(p, filepath.Join(dst, base))
	})
	if err != nil {
		return 0, failure.Wrap(failure.ErrIO, "MOD_COPY", err, "collect payload")
	}
	return len(seen), nil
}
