package modpack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"
	"skinjector/internal/failure"
	"skinjector/internal/fsutil"
)

const (
	MetaDir        = "META"
	DescriptorFile = "info.json"
	PayloadDir     = "WAD"
)

// Descriptor is the META/info.json document of a mod directory.
type Descriptor struct {
	Name        string `json:"Name"`
	Version     string `json:"Version"`
	Author      string `json:"Author"`
	Description string `json:"Description"`
}

// CanonicalVersion returns the semver form of Version ("1.0" -> "v1.0.0"),
// or "" when Version is not a semantic version.
func (d Descriptor) CanonicalVersion() string {
	v := strings.TrimSpace(d.Version)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}

func DescriptorPath(dir string) string {
	return filepath.Join(dir, MetaDir, DescriptorFile)
}

// IsValid reports whether dir is a structurally valid mod directory.
func IsValid(dir string) bool {
	return fsutil.IsFile(DescriptorPath(dir))
}

func ReadDescriptor(dir string) (Descriptor, error) {
	blob, err := os.ReadFile(DescriptorPath(dir))
	if err != nil {
		return Descriptor{}, failure.Wrap(failure.ErrIO, "MOD_DESCRIPTOR", err, "read descriptor in %s", dir)
	}
	blob = bytes.TrimPrefix(blob, []byte("\xef\xbb\xbf"))
	var d Descriptor
	if err := json.Unmarshal(blob, &d); err != nil {
		return Descriptor{}, failure.Wrap(failure.ErrArchive, "MOD_DESCRIPTOR", err, "parse descriptor in %s", dir)
	}
	return d, nil
}

func writeDescriptor(dir string, d Descriptor) error {
	blob, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("MOD_DESCRIPTOR: %w", err)
	}
	if err := fsutil.AtomicWrite(DescriptorPath(dir), append(blob, '\n'), 0o644); err != nil {
		return failure.Wrap(failure.ErrIO, "MOD_DESCRIPTOR", err, "write descriptor in %s", dir)
	}
	return nil
}
