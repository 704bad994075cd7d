package injector

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"skinjector/internal/fsutil"
	"skinjector/internal/overlay"
)

type fakeProcess struct {
	pid    int
	killed bool
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Kill() error {
	p.killed = true
	return nil
}

// fakeRunner plays the overlay tool: builds succeed unless buildFail is set,
// and every call is recorded.
type fakeRunner struct {
	mu        sync.Mutex
	buildFail bool
	startErr  error
	started   []*fakeProcess
	calls     []string
	// onOutput runs before each Output call, outside the lock.
	onOutput func()
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) (overlay.Result, error) {
	if f.onOutput != nil {
		f.onOutput()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	if len(args) > 0 && args[0] == "mkoverlay" && f.buildFail {
		return overlay.Result{ExitCode: 1, Stderr: "error: wad conflict"}, nil
	}
	return overlay.Result{}, nil
}

func (f *fakeRunner) Start(name string, args ...string) (overlay.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	if f.startErr != nil {
		return nil, f.startErr
	}
	p := &fakeProcess{pid: 5000 + len(f.started)}
	f.started = append(f.started, p)
	return p, nil
}

func (f *fakeRunner) toolCalls(verb string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if strings.Contains(c, " "+verb+" ") {
			out = append(out, c)
		}
	}
	return out
}

type fixture struct {
	gameRoot string
	storage  string
	source   string
	tool     string
	runner   *fakeRunner
	events   []Event
	mu       sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	f := &fixture{
		gameRoot: filepath.Join(base, "League"),
		storage:  filepath.Join(base, "storage"),
		source:   filepath.Join(base, "champions"),
		tool:     filepath.Join(base, "tools", "mod-tools"),
		runner:   &fakeRunner{},
	}
	mustWrite(t, filepath.Join(f.gameRoot, "Game", "League of Legends.exe"), "")
	mustWrite(t, f.tool, "")
	if err := os.MkdirAll(f.source, 0o755); err != nil {
		t.Fatalf("mkdir source: %v", err)
	}
	return f
}

func (f *fixture) champion(t *testing.T, name string, id uint32) string {
	t.Helper()
	dir := filepath.Join(f.source, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir champion: %v", err)
	}
	if err := fsutil.WriteIDMarker(dir, fsutil.ChampionMarker, id); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	return dir
}

func (f *fixture) options() Options {
	return Options{
		GameRoot:       f.gameRoot,
		StorageRoot:    f.storage,
		SourceRoot:     f.source,
		ToolCandidates: []string{f.tool},
		ToolName:       "mod-tools",
		Runner:         f.runner,
		Sleep:          func(time.Duration) {},
		OnEvent: func(e Event) {
			f.mu.Lock()
			f.events = append(f.events, e)
			f.mu.Unlock()
		},
	}
}

func (f *fixture) injector(t *testing.T) *Injector {
	t.Helper()
	inj, err := New(f.options())
	if err != nil {
		t.Fatalf("new injector: %v", err)
	}
	return inj
}

func (f *fixture) statuses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		if e.Kind == EventInjectionStatus {
			out = append(out, e.Status)
		}
	}
	return out
}

func (f *fixture) gameMods(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(f.gameRoot, "Game", "mods"))
	if err != nil {
		t.Fatalf("read game mods: %v", err)
	}
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// writeArchive writes a zip with the given entries to path.
func writeArchive(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	zw := zip.NewWriter(out)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip entry: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
}

func canonicalArchive(name string) map[string]string {
	return map[string]string{
		"META/info.json":      `{"Name":"` + name + `","Version":"1.0","Author":"tester","Description":""}`,
		"WAD/Ahri.wad.client": "payload",
	}
}
