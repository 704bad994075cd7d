// Package injector orchestrates one injection cycle: resolve each selected
// skin to an archive, extract and assemble it into a mod directory, commit the
// mods into the game, build the overlay and launch the process that mounts it.
//
// The Injector is a small state machine:
//
//	Uninitialized -> Idle -> Busy -> Running -> Idle
//	                          \-> Idle (any failure, after rollback)
//
// CriticalError is entered only through Fault and is terminal.
package injector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"skinjector/internal/audit"
	"skinjector/internal/extract"
	"skinjector/internal/failure"
	"skinjector/internal/fsutil"
	"skinjector/internal/gamecfg"
	"skinjector/internal/gamedir"
	"skinjector/internal/index"
	"skinjector/internal/installer"
	"skinjector/internal/modpack"
	"skinjector/internal/overlay"
	"skinjector/internal/store"
)

// Selection identifies one requested skin.
type Selection = index.Selection

type Options struct {
	GameRoot   string
	Executable string
	ConfigFile string
	ModsDir    string

	StorageRoot string
	// SourceRoot is the archive root used when Inject is given none.
	SourceRoot string
	Cache      *index.Cache

	ToolCandidates []string
	ToolName       string
	Runner         overlay.Runner
	BuildPolicy    overlay.Policy
	RunPolicy      overlay.Policy
	Sleep          func(time.Duration)

	Extensions      []string
	MmapThreshold   int64
	PayloadPatterns []string

	Now     func() time.Time
	Logger  *audit.Logger
	OnEvent func(Event)
}

type ModReport struct {
	Selection Selection     `json:"selection"`
	Archive   string        `json:"archive"`
	Name      string        `json:"name"`
	Shape     modpack.Shape `json:"shape"`
	Version   string        `json:"version,omitempty"`
	Strategy  string        `json:"strategy"`
	Skipped   int           `json:"skippedEntries,omitempty"`
}

type Report struct {
	Mods         []ModReport `json:"mods"`
	GameConfig   string      `json:"gameConfig,omitempty"`
	OverlayDir   string      `json:"overlayDir,omitempty"`
	PID          int         `json:"pid,omitempty"`
	IndexRebuilt bool        `json:"indexRebuilt"`
	StartedAt    time.Time   `json:"startedAt"`
	FinishedAt   time.Time   `json:"finishedAt"`
}

type Status struct {
	State     string `json:"state"`
	ToolPath  string `json:"toolPath,omitempty"`
	ToolFound bool   `json:"toolFound"`
	PID       int    `json:"pid,omitempty"`
	Fault     string `json:"fault,omitempty"`
}

type Injector struct {
	mu    sync.Mutex
	state State
	fault error
	proc  overlay.Process
	// halting is set while Cleanup or TerminateExternalProcess runs.
	halting bool

	opts        Options
	gameDir     string
	gameModsDir string
	gameConfig  string
	toolPath    string
	toolErr     error
	client      *overlay.Client
	install     *installer.Service
}

// New validates the game installation and locates the overlay tool. A missing
// tool is recorded and reported by Inject, not here.
func New(opts Options) (*Injector, error) {
	if opts.Executable == "" {
		opts.Executable = "League of Legends.exe"
	}
	if opts.ConfigFile == "" {
		opts.ConfigFile = "Game.cfg"
	}
	if opts.ModsDir == "" {
		opts.ModsDir = "mods"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StorageRoot == "" {
		return nil, failure.New(failure.ErrConfig, "INJ_STORAGE", "storage root is required")
	}
	if err := gamedir.Validate(opts.GameRoot, opts.Executable); err != nil {
		return nil, err
	}
	gameDir := filepath.Join(opts.GameRoot, gamedir.GameSubdir)
	if opts.Cache == nil {
		opts.Cache = index.New(index.Options{Extensions: opts.Extensions, Now: opts.Now})
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".fantome"}
	}

	toolPath, toolErr := overlay.Locate(opts.ToolCandidates)
	tool := toolPath
	if tool == "" {
		tool = opts.ToolName
	}
	client := overlay.NewClient(tool, opts.Runner, opts.Logger)
	if opts.BuildPolicy.MaxAttempts > 0 {
		client.BuildPolicy = opts.BuildPolicy
	}
	if opts.RunPolicy.MaxAttempts > 0 {
		client.RunPolicy = opts.RunPolicy
	}
	if opts.Sleep != nil {
		client.Sleep = opts.Sleep
	}

	gameModsDir := filepath.Join(gameDir, opts.ModsDir)
	return &Injector{
		opts:        opts,
		gameDir:     gameDir,
		gameModsDir: gameModsDir,
		gameConfig:  filepath.Join(gameDir, opts.ConfigFile),
		toolPath:    toolPath,
		toolErr:     toolErr,
		client:      client,
		install:     &installer.Service{GameModsDir: gameModsDir, Audit: opts.Logger, Now: opts.Now},
	}, nil
}

func (i *Injector) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *Injector) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	st := Status{State: i.state.String(), ToolPath: i.toolPath, ToolFound: i.toolErr == nil}
	if i.proc != nil {
		st.PID = i.proc.Pid()
	}
	if i.fault != nil {
		st.Fault = i.fault.Error()
	}
	return st
}

// Initialize creates the scratch directories. It is a no-op once initialized.
func (i *Injector) Initialize() error {
	i.mu.Lock()
	from := i.state
	var err error
	switch from {
	case StateCriticalError:
		err = i.criticalLocked()
	case StateUninitialized:
		if err = i.prepareDirs(); err == nil {
			i.state = StateIdle
		}
	}
	i.mu.Unlock()
	if err == nil && from == StateUninitialized {
		i.emitState(from, StateIdle)
	}
	return err
}

func (i *Injector) prepareDirs() error {
	for _, dir := range []string{store.ModsRoot(i.opts.StorageRoot), store.TempRoot(i.opts.StorageRoot)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return failure.Wrap(failure.ErrIO, "INJ_INIT", err, "create %s", dir)
		}
	}
	return nil
}

// Fault moves the injector into the terminal CriticalError state.
func (i *Injector) Fault(err error) {
	if err == nil {
		err = errors.New("unspecified fault")
	}
	i.mu.Lock()
	from := i.state
	i.state = StateCriticalError
	i.fault = err
	i.mu.Unlock()
	_ = i.opts.Logger.Log(audit.Event{Level: audit.LevelError, Operation: "inject", Phase: "fault", Status: "critical", Code: "INJ_CRITICAL", Message: err.Error()})
	if from != StateCriticalError {
		i.emitState(from, StateCriticalError)
	}
	i.saveSession(func(s *store.Session) {
		s.State = StateCriticalError.String()
		s.LastError = err.Error()
	})
}

func (i *Injector) criticalLocked() error {
	return failure.Wrap(failure.ErrCritical, "INJ_CRITICAL", i.fault, "injector halted")
}

// begin atomically moves the injector into Busy, initializing it or leaving
// Running on the way.
func (i *Injector) begin() error {
	i.mu.Lock()
	var steps [][2]State
	switch i.state {
	case StateCriticalError:
		defer i.mu.Unlock()
		return i.criticalLocked()
	case StateBusy:
		i.mu.Unlock()
		return failure.New(failure.ErrBusy, "INJ_BUSY", "an injection is already in progress")
	}
	if i.halting {
		i.mu.Unlock()
		return failure.New(failure.ErrBusy, "INJ_BUSY", "a cleanup is in progress")
	}
	switch i.state {
	case StateUninitialized:
		if err := i.prepareDirs(); err != nil {
			i.mu.Unlock()
			return err
		}
		steps = append(steps, [2]State{StateUninitialized, StateIdle})
	case StateRunning:
		steps = append(steps, [2]State{StateRunning, StateIdle})
	}
	steps = append(steps, [2]State{StateIdle, StateBusy})
	i.state = StateBusy
	i.mu.Unlock()
	for _, s := range steps {
		i.emitState(s[0], s[1])
	}
	return nil
}

// finish leaves Busy for to, unless a Fault arrived meanwhile.
func (i *Injector) finish(to State) {
	i.mu.Lock()
	from := i.state
	if from != StateBusy || !allowed(from, to) {
		i.mu.Unlock()
		return
	}
	i.state = to
	i.mu.Unlock()
	i.emitState(from, to)
}

// Inject runs one full injection cycle for selections, in order. An empty
// list is valid and resets the overlay to no skins. On any failure before the
// overlay process is launched, committed mods are rolled back and the
// injector returns to Idle.
func (i *Injector) Inject(ctx context.Context, selections []Selection, sourceRoot string) (Report, error) {
	if sourceRoot == "" {
		sourceRoot = i.opts.SourceRoot
	}
	if err := i.begin(); err != nil {
		return Report{}, err
	}
	report := Report{StartedAt: i.opts.Now().UTC()}
	i.emit(Event{Kind: EventInjectionStatus, Status: StatusInjecting, Total: len(selections)})

	err := i.run(ctx, selections, sourceRoot, &report)
	report.FinishedAt = i.opts.Now().UTC()
	if err != nil {
		i.install.Rollback()
		i.finish(StateIdle)
		i.emit(Event{Kind: EventInjectionStatus, Status: StatusError, Message: err.Error()})
		i.saveSession(func(s *store.Session) {
			s.State = StateIdle.String()
			s.PID = 0
			s.Mods = nil
			s.Selections = records(selections)
			s.LastError = err.Error()
			s.UpdatedAt = report.FinishedAt
		})
		return report, err
	}

	i.install.Finish()
	i.finish(StateRunning)
	i.emit(Event{Kind: EventInjectionStatus, Status: StatusSuccess, Message: fmt.Sprintf("%d mod(s) applied", len(report.Mods))})
	i.saveSession(func(s *store.Session) {
		s.State = StateRunning.String()
		s.PID = report.PID
		s.ToolPath = i.toolPath
		s.Selections = records(selections)
		s.Mods = applied(report.Mods)
		s.LastError = ""
		s.StartedAt = report.StartedAt
		s.UpdatedAt = report.FinishedAt
	})
	return report, nil
}

func (i *Injector) run(ctx context.Context, selections []Selection, sourceRoot string, report *Report) error {
	if i.toolErr != nil {
		return i.toolErr
	}

	// 1. clean slate
	i.stopProcesses(ctx)
	if err := i.removeOverlay(); err != nil {
		i.log(audit.LevelWarn, "cleanup", "partial", "INJ_OVERLAY_REMOVE", err.Error(), nil)
	}

	// 2. fresh destination and scratch directories
	if err := i.install.Reset(); err != nil {
		return err
	}
	modsRoot, tempRoot := store.ModsRoot(i.opts.StorageRoot), store.TempRoot(i.opts.StorageRoot)
	for _, dir := range []string{modsRoot, tempRoot} {
		if err := os.RemoveAll(dir); err != nil {
			return failure.Wrap(failure.ErrIO, "INJ_RESET", err, "clear %s", dir)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return failure.Wrap(failure.ErrIO, "INJ_RESET", err, "create %s", dir)
		}
	}

	// 3. resolve, extract, assemble, commit
	rebuilt, err := i.opts.Cache.EnsureFresh(sourceRoot, sourceRoot)
	if err != nil {
		i.log(audit.LevelWarn, "index", "degraded", "INJ_INDEX", err.Error(), nil)
	}
	report.IndexRebuilt = rebuilt
	if len(selections) == 0 {
		i.log(audit.LevelInfo, "resolve", "empty", "", "no selections; overlay will carry no skins", nil)
	}
	slow := resolver{root: sourceRoot, extensions: i.opts.Extensions, champion: i.opts.Cache.ChampionName}
	taken := map[string]bool{}
	for n, sel := range selections {
		if err := ctx.Err(); err != nil {
			return failure.Wrap(failure.ErrAborted, "INJ_ABORTED", err, "injection cancelled")
		}
		i.emit(Event{Kind: EventProgress, Index: n + 1, Total: len(selections),
			Message: fmt.Sprintf("champion %d skin %d%s", sel.ChampionID, sel.SkinID, chromaSuffix(sel))})

		archive, ok := i.opts.Cache.Lookup(sel, sourceRoot)
		if !ok {
			if archive, err = slow.resolve(sel); err != nil {
				return err
			}
		}
		mod, err := i.prepare(sel, archive, uniqueName(archiveStem(archive), taken), modsRoot, tempRoot)
		if err != nil {
			return err
		}
		report.Mods = append(report.Mods, mod)
	}

	// 4. game config flag
	change, err := gamecfg.EnableMods(i.gameConfig)
	if err != nil {
		return err
	}
	report.GameConfig = string(change)

	// 5. build into staging, then promote
	mods, err := i.modNames()
	if err != nil {
		return err
	}
	staging, live := store.StagingOverlayRoot(i.opts.StorageRoot), store.OverlayRoot(i.opts.StorageRoot)
	err = i.client.Build(ctx, overlay.BuildRequest{
		ModsDir: i.gameModsDir,
		OutDir:  staging,
		GameDir: i.gameDir,
		Mods:    mods,
	})
	if err != nil {
		_ = os.RemoveAll(staging)
		return err
	}
	if err := promote(staging, live); err != nil {
		return err
	}
	report.OverlayDir = live

	// 6. launch
	p, err := i.client.Run(ctx, overlay.RunRequest{
		OverlayDir: live,
		ConfigPath: store.OverlayConfigPath(i.opts.StorageRoot),
		GameDir:    i.gameDir,
	})
	if err != nil {
		return err
	}
	i.mu.Lock()
	i.proc = p
	i.mu.Unlock()
	report.PID = p.Pid()
	return nil
}

// modNames lists the valid mod directories in the game, in commit order.
func (i *Injector) modNames() ([]string, error) {
	valid, err := i.install.Names()
	if err != nil {
		return nil, err
	}
	left := make(map[string]bool, len(valid))
	for _, n := range valid {
		left[n] = true
	}
	out := make([]string, 0, len(valid))
	for _, n := range i.install.Committed() {
		if left[n] {
			out = append(out, n)
			delete(left, n)
		}
	}
	return out, nil
}

// prepare turns one archive into a mod directory committed to the game.
func (i *Injector) prepare(sel Selection, archive, name, modsRoot, tempRoot string) (ModReport, error) {
	scratch := filepath.Join(tempRoot, name)
	xr, err := extract.Extract(archive, scratch, extract.Options{MmapThreshold: i.opts.MmapThreshold})
	if err != nil {
		return ModReport{}, err
	}
	if len(xr.Skipped) > 0 {
		i.log(audit.LevelWarn, "extract", "skipped", "EXT_UNSAFE_ENTRY", fmt.Sprintf("%d unsafe entries skipped", len(xr.Skipped)),
			map[string]string{"archive": archive})
	}
	asm, err := modpack.Assemble(scratch, filepath.Join(modsRoot, name), modpack.Options{
		Name:            name,
		Now:             i.opts.Now,
		PayloadPatterns: i.opts.PayloadPatterns,
	})
	_ = os.RemoveAll(scratch)
	if err != nil {
		return ModReport{}, err
	}
	if !modpack.IsValid(asm.Dir) {
		return ModReport{}, failure.New(failure.ErrArchive, "INJ_INVALID_MOD", "mod structure invalid for %s", archive)
	}
	if _, err := i.install.Commit(asm.Dir); err != nil {
		return ModReport{}, err
	}
	i.log(audit.LevelInfo, "commit", "ok", "", "mod committed", map[string]string{
		"archive":  archive,
		"mod":      name,
		"shape":    string(asm.Shape),
		"strategy": xr.Strategy,
	})
	return ModReport{
		Selection: sel,
		Archive:   archive,
		Name:      name,
		Shape:     asm.Shape,
		Version:   asm.Descriptor.CanonicalVersion(),
		Strategy:  xr.Strategy,
		Skipped:   len(xr.Skipped),
	}, nil
}

// Cleanup kills the overlay tool, removes the live overlay and leaves the
// injector Idle, initializing it if needed. It is idempotent.
func (i *Injector) Cleanup(ctx context.Context) error {
	if err := i.hold("clean up"); err != nil {
		return err
	}
	i.stopProcesses(ctx)
	err := i.removeOverlay()
	i.release(true)
	i.saveSession(func(s *store.Session) {
		s.PID = 0
		if s.State != StateCriticalError.String() {
			s.State = StateIdle.String()
		}
		s.UpdatedAt = i.opts.Now().UTC()
	})
	if err != nil {
		i.log(audit.LevelWarn, "cleanup", "partial", "INJ_OVERLAY_REMOVE", err.Error(), nil)
		return err
	}
	i.log(audit.LevelInfo, "cleanup", "ok", "", "overlay stopped and removed", nil)
	return nil
}

// TerminateExternalProcess ends the launched overlay process: the held handle
// first, then the pid recorded by a previous run, then a scan by name.
func (i *Injector) TerminateExternalProcess(ctx context.Context) error {
	if err := i.hold("terminate"); err != nil {
		return err
	}
	i.stopProcesses(ctx)
	i.release(false)
	i.saveSession(func(s *store.Session) {
		s.PID = 0
		if s.State == StateRunning.String() {
			s.State = StateIdle.String()
		}
		s.UpdatedAt = i.opts.Now().UTC()
	})
	i.log(audit.LevelInfo, "terminate", "ok", "", "overlay process terminated", nil)
	return nil
}

// hold marks a cleanup in flight; Inject reports ErrBusy until release.
func (i *Injector) hold(what string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state == StateBusy || i.halting {
		return failure.New(failure.ErrBusy, "INJ_BUSY", "cannot %s while an injection or cleanup is in progress", what)
	}
	i.halting = true
	return nil
}

// release ends a hold. Running always drops to Idle; Uninitialized does too
// when initialize is set.
func (i *Injector) release(initialize bool) {
	i.mu.Lock()
	i.halting = false
	from := i.state
	to := from
	var err error
	switch {
	case from == StateRunning:
		to = StateIdle
	case from == StateUninitialized && initialize:
		if err = i.prepareDirs(); err == nil {
			to = StateIdle
		}
	}
	i.state = to
	i.mu.Unlock()
	if err != nil {
		i.log(audit.LevelWarn, "cleanup", "init", "INJ_INIT", err.Error(), nil)
	}
	if to != from {
		i.emitState(from, to)
	}
}

func (i *Injector) stopProcesses(ctx context.Context) {
	i.mu.Lock()
	p := i.proc
	i.proc = nil
	i.mu.Unlock()
	if p != nil {
		i.client.Terminate(ctx, p)
		return
	}
	if st, err := store.LoadState(i.opts.StorageRoot); err == nil && st.Session.PID > 0 {
		i.client.TerminatePID(ctx, st.Session.PID)
		return
	}
	i.client.Terminate(ctx, nil)
}

func (i *Injector) removeOverlay() error {
	live := store.OverlayRoot(i.opts.StorageRoot)
	if err := fsutil.RemoveAllRetry(live, 3, 100*time.Millisecond); err != nil {
		return failure.Wrap(failure.ErrIO, "INJ_OVERLAY_REMOVE", err, "remove %s", live)
	}
	return nil
}

// promote replaces live with staging, copying when a rename is not possible.
func promote(staging, live string) error {
	if err := fsutil.RemoveAllRetry(live, 3, 500*time.Millisecond); err != nil {
		return failure.Wrap(failure.ErrIO, "INJ_PROMOTE", err, "remove %s", live)
	}
	if err := os.Rename(staging, live); err == nil {
		return nil
	}
	if err := fsutil.CopyTree(staging, live); err != nil {
		return failure.Wrap(failure.ErrIO, "INJ_PROMOTE", err, "copy overlay into %s", live)
	}
	_ = os.RemoveAll(staging)
	return nil
}

func (i *Injector) saveSession(fn func(*store.Session)) {
	if err := store.UpdateSession(i.opts.StorageRoot, fn); err != nil {
		i.log(audit.LevelWarn, "session", "save", "INJ_SESSION", err.Error(), nil)
	}
}

func (i *Injector) emitState(from, to State) {
	i.emit(Event{Kind: EventStateChanged, State: to.String(), Message: from.String() + " -> " + to.String()})
}

func (i *Injector) emit(e Event) {
	level, status := audit.LevelInfo, e.Status
	if e.Status == StatusError {
		level = audit.LevelError
	}
	if status == "" {
		status = "ok"
	}
	_ = i.opts.Logger.Log(audit.Event{
		Level:     level,
		Operation: "inject",
		Phase:     e.Kind,
		Status:    status,
		Message:   e.Message,
		Fields:    e.fields(),
	})
	if i.opts.OnEvent != nil {
		i.opts.OnEvent(e)
	}
}

func (i *Injector) log(level, phase, status, code, msg string, fields map[string]string) {
	_ = i.opts.Logger.Log(audit.Event{
		Level:     level,
		Operation: "inject",
		Phase:     phase,
		Status:    status,
		Code:      code,
		Message:   msg,
		Fields:    fields,
	})
}

func archiveStem(p string) string {
	base := filepath.Base(p)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	base = strings.NewReplacer("/", "_", `\`, "_").Replace(strings.TrimSpace(base))
	if base == "" {
		return "mod"
	}
	return base
}

// uniqueName returns the first of stem, stem-2, stem-3, ... not yet taken in
// this batch (case-insensitively) and marks it taken.
func uniqueName(stem string, taken map[string]bool) string {
	name := stem
	for n := 2; taken[strings.ToLower(name)]; n++ {
		name = stem + "-" + strconv.Itoa(n)
	}
	taken[strings.ToLower(name)] = true
	return name
}

func chromaSuffix(sel Selection) string {
	if sel.ChromaID == nil {
		return ""
	}
	return fmt.Sprintf(" chroma %d", *sel.ChromaID)
}

func records(selections []Selection) []store.SelectionRecord {
	out := make([]store.SelectionRecord, 0, len(selections))
	for _, s := range selections {
		out = append(out, store.SelectionRecord{ChampionID: s.ChampionID, SkinID: s.SkinID, ChromaID: s.ChromaID, Archive: s.ArchiveHint})
	}
	return out
}

func applied(mods []ModReport) []store.AppliedMod {
	out := make([]store.AppliedMod, 0, len(mods))
	for _, m := range mods {
		out = append(out, store.AppliedMod{Name: m.Name, Version: m.Version, Shape: string(m.Shape), Archive: m.Archive})
	}
	return out
}
