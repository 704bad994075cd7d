package installer

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func makeMod(t *testing.T, root, name, body string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	for rel, content := range map[string]string{
		"META/info.json":      `{"Name":"` + name + `"}`,
		"WAD/skin.wad.client": body,
	} {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestResetClearsDestination(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "Game", "mods")
	if err := os.MkdirAll(filepath.Join(dest, "old"), 0o755); err != nil {
		t.Fatal(err)
	}
	svc := &Service{GameModsDir: dest}
	if err := svc.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	entries, err := os.ReadDir(dest)
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty mods dir, got %v %v", entries, err)
	}
}

func TestCommitAndNames(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "mods")
	svc := &Service{GameModsDir: dest}
	if err := svc.Reset(); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"zed_1", "annie_2"} {
		if _, err := svc.Commit(makeMod(t, src, name, name)); err != nil {
			t.Fatalf("commit %s: %v", name, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dest, "not-a-mod"), 0o755); err != nil {
		t.Fatal(err)
	}
	names, err := svc.Names()
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"annie_2", "zed_1"}) {
		t.Fatalf("unexpected names %v", names)
	}
	if got := svc.Committed(); !reflect.DeepEqual(got, []string{"zed_1", "annie_2"}) {
		t.Fatalf("committed order should follow commits, got %v", got)
	}
}

func TestCommitReplacesAndRollbackRestores(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "mods")
	svc := &Service{GameModsDir: dest}
	if err := svc.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Commit(makeMod(t, src, "ahri", "v1")); err != nil {
		t.Fatal(err)
	}
	svc.Finish()

	src2 := t.TempDir()
	final, err := svc.Commit(makeMod(t, src2, "ahri", "v2"))
	if err != nil {
		t.Fatalf("replace commit: %v", err)
	}
	blob, _ := os.ReadFile(filepath.Join(final, "WAD", "skin.wad.client"))
	if string(blob) != "v2" {
		t.Fatalf("expected replaced content, got %q", blob)
	}
	if _, err := svc.Commit(makeMod(t, src2, "lux", "x")); err != nil {
		t.Fatal(err)
	}

	svc.Rollback()
	blob, _ = os.ReadFile(filepath.Join(dest, "ahri", "WAD", "skin.wad.client"))
	if string(blob) != "v1" {
		t.Fatalf("rollback should restore the replaced mod, got %q", blob)
	}
	if _, err := os.Stat(filepath.Join(dest, "lux")); !os.IsNotExist(err) {
		t.Fatalf("rollback should remove new commits")
	}
}

func TestCommitInjectedFailureLeavesNoStage(t *testing.T) {
	t.Setenv("SKINJECTOR_TEST_FAIL_COMMIT", "bad")
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "mods")
	svc := &Service{GameModsDir: dest}
	if err := svc.Reset(); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Commit(makeMod(t, src, "bad", "x"))
	if err == nil || !strings.Contains(err.Error(), "INS_TEST_FAIL_COMMIT") {
		t.Fatalf("expected injected failure, got %v", err)
	}
	entries, _ := os.ReadDir(dest)
	if len(entries) != 0 {
		t.Fatalf("failed commit should leave nothing behind, got %d entries", len(entries))
	}
}

func TestCommitWithFixedClockReplacesTwice(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "mods")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := &Service{GameModsDir: dest, Now: func() time.Time { return fixed }}
	if err := svc.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Commit(makeMod(t, src, "ahri", "v1")); err != nil {
		t.Fatal(err)
	}
	svc.Finish()

	for _, body := range []string{"v2", "v3"} {
		if _, err := svc.Commit(makeMod(t, t.TempDir(), "ahri", body)); err != nil {
			t.Fatalf("commit %s: %v", body, err)
		}
	}
	blob, _ := os.ReadFile(filepath.Join(dest, "ahri", "WAD", "skin.wad.client"))
	if string(blob) != "v3" {
		t.Fatalf("expected latest content, got %q", blob)
	}
	svc.Rollback()
	blob, _ = os.ReadFile(filepath.Join(dest, "ahri", "WAD", "skin.wad.client"))
	if string(blob) != "v1" {
		t.Fatalf("rollback should restore the first content, got %q", blob)
	}
}
