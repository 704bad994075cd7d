package fsutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"META/info.json":       `{"Name":"x"}`,
		"WAD/Ahri.wad.client":  "payload",
		"WAD/nested/extra.bin": "more",
		"top.txt":              "top",
	}
	for rel, content := range files {
		p := filepath.Join(src, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(src, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(t.TempDir(), "out")
	if err := CopyTree(src, dst); err != nil {
		t.Fatalf("CopyTree: %v", err)
	}
	for rel, content := range files {
		got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		if string(got) != content {
			t.Errorf("%s = %q, want %q", rel, got, content)
		}
	}
	if !IsDir(filepath.Join(dst, "empty")) {
		t.Error("expected empty directory to be recreated")
	}
}

func TestRemoveAllRetry(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "overlay")
	if err := os.MkdirAll(filepath.Join(dir, "a", "b"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := RemoveAllRetry(dir, 3, time.Millisecond); err != nil {
		t.Fatalf("RemoveAllRetry: %v", err)
	}
	if Exists(dir) {
		t.Fatal("expected directory removed")
	}
	// Missing path is success.
	if err := RemoveAllRetry(dir, 3, time.Millisecond); err != nil {
		t.Fatalf("second RemoveAllRetry: %v", err)
	}
}
