// Package extract unpacks skin archives (zip containers) into a directory.
//
// Archives larger than the mmap threshold are read through a memory map,
// smaller ones through regular buffered file reads. Both strategies share
// the same entry writer, so the extracted tree is identical either way.
package extract

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/exp/mmap"
	"skinjector/internal/failure"
)

// DefaultMmapThreshold is the archive size above which mmap is used.
const DefaultMmapThreshold int64 = 1 << 20

const (
	StrategyMmap     = "mmap"
	StrategyBuffered = "buffered"
)

var errUnsafeEntry = errors.New("unsafe entry path")

// Options tune extraction. A zero MmapThreshold means DefaultMmapThreshold;
// a negative one disables memory mapping.
type Options struct {
	MmapThreshold int64
}

// Result summarizes one extraction.
type Result struct {
	Strategy string   `json:"strategy"`
	Files    int      `json:"files"`
	Dirs     int      `json:"dirs"`
	Skipped  []string `json:"skipped,omitempty"`
}

// Extract unpacks archivePath into destDir, creating destDir when needed.
// Entries that would land outside destDir are skipped and reported in
// Result.Skipped. On error destDir may be partially populated.
func Extract(archivePath, destDir string, opts Options) (Result, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		return Result{}, failure.Wrap(failure.ErrIO, "EXT_OPEN", err, "stat %s", archivePath)
	}
	if info.IsDir() {
		return Result{}, failure.New(failure.ErrIO, "EXT_OPEN", "%s is a directory", archivePath)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Result{}, failure.Wrap(failure.ErrIO, "EXT_DEST", err, "create %s", destDir)
	}

	threshold := opts.MmapThreshold
	if threshold == 0 {
		threshold = DefaultMmapThreshold
	}
	if threshold > 0 && info.Size() > threshold {
		return extractMapped(archivePath, destDir)
	}
	return extractBuffered(archivePath, destDir)
}

func extractMapped(archivePath, destDir string) (Result, error) {
	ra, err := mmap.Open(archivePath)
	if err != nil {
		return Result{}, failure.Wrap(failure.ErrIO, "EXT_OPEN", err, "map %s", archivePath)
	}
	defer ra.Close()
	zr, err := zip.NewReader(ra, int64(ra.Len()))
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return Result{}, failure.Wrap(failure.ErrArchive, "EXT_FORMAT", err, "read %s", archivePath)
	}
	res := Result{Strategy: StrategyMmap}
	return res, writeEntries(zr.File, destDir, &res)
}

func extractBuffered(archivePath, destDir string) (Result, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return Result{}, failure.Wrap(failure.ErrArchive, "EXT_FORMAT", err, "read %s", archivePath)
	}
	defer zr.Close()
	res := Result{Strategy: StrategyBuffered}
	return res, writeEntries(zr.File, destDir, &res)
}

func writeEntries(files []*zip.File, destDir string, res *Result) error {
	root, err := filepath.Abs(destDir)
	if err != nil {
		return failure.Wrap(failure.ErrIO, "EXT_DEST", err, "resolve %s", destDir)
	}
	for _, f := range files {
		rel, err := entryPath(f.Name)
		if err != nil {
			res.Skipped = append(res.Skipped, f.Name)
			continue
		}
		target := filepath.Join(root, filepath.FromSlash(rel))
		if !within(root, target) {
			res.Skipped = append(res.Skipped, f.Name)
			continue
		}
		if strings.HasSuffix(f.Name, "/") || strings.HasSuffix(f.Name, `\`) || f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return failure.Wrap(failure.ErrIO, "EXT_WRITE", err, "create %s", target)
			}
			res.Dirs++
			continue
		}
		if err := writeFile(f, target); err != nil {
			return err
		}
		res.Files++
	}
	return nil
}

func writeFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return failure.Wrap(failure.ErrIO, "EXT_WRITE", err, "create parent of %s", target)
	}
	src, err := f.Open()
	if err != nil {
		return failure.Wrap(failure.ErrArchive, "EXT_FORMAT", err, "open entry %s", f.Name)
	}
	defer src.Close()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return failure.Wrap(failure.ErrIO, "EXT_WRITE", err, "create %s", target)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return failure.Wrap(failure.ErrIO, "EXT_WRITE", err, "write %s", target)
	}
	if err := out.Close(); err != nil {
		return failure.Wrap(failure.ErrIO, "EXT_WRITE", err, "close %s", target)
	}
	return nil
}

// entryPath normalizes an archive entry name to a clean relative slash path.
func entryPath(name string) (string, error) {
	raw := strings.TrimSpace(name)
	if raw == "" || strings.ContainsRune(raw, 0) {
		return "", errUnsafeEntry
	}
	raw = strings.ReplaceAll(raw, `\`, `/`)
	if strings.HasPrefix(raw, "/") || hasDrivePrefix(raw) {
		return "", errUnsafeEntry
	}
	parts := strings.Split(raw, "/")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", errUnsafeEntry
		default:
			clean = append(clean, part)
		}
	}
	if len(clean) == 0 {
		return "", errUnsafeEntry
	}
	return strings.Join(clean, "/"), nil
}

func hasDrivePrefix(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// IsArchive reports whether name carries one of the given extensions,
// compared case-insensitively.
func IsArchive(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
