package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"skinjector/internal/audit"
	"skinjector/internal/config"
	"skinjector/internal/doctor"
	"skinjector/internal/failure"
	"skinjector/internal/gamedir"
	"skinjector/internal/importer"
	"skinjector/internal/index"
	"skinjector/internal/injector"
	"skinjector/internal/overlay"
	storepkg "skinjector/internal/store"
)

type Options struct {
	ConfigPath string
	// Runner replaces the os/exec process runner; tests pass a fake.
	Runner  overlay.Runner
	OnEvent func(injector.Event)
}

type Service struct {
	ConfigPath string
	Config     config.Config
	StateRoot  string
	SourceRoot string

	Cache    *index.Cache
	Importer *importer.Service
	Doctor   *doctor.Service
	Audit    *audit.Logger
	Detector gamedir.Detector

	// fileCfg is Config without environment overrides; it is what gets saved.
	fileCfg config.Config
	runner  overlay.Runner
	onEvent func(injector.Event)

	mu       sync.Mutex
	injector *injector.Injector
}

type StatusReport struct {
	State     string           `json:"state"`
	Session   storepkg.Session `json:"session"`
	ToolPath  string           `json:"toolPath,omitempty"`
	ToolFound bool             `json:"toolFound"`
	Recent    []audit.Event    `json:"recent,omitempty"`
	Custom    int              `json:"customSkins"`
}

type IndexReport struct {
	Rebuilt    bool        `json:"rebuilt"`
	SourceRoot string      `json:"sourceRoot"`
	Stats      index.Stats `json:"stats"`
}

func New(opts Options) (*Service, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	fileCfg, err := config.Ensure(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Effective(fileCfg)
	if err != nil {
		return nil, err
	}
	stateRoot, err := config.ResolveStorageRoot(cfg)
	if err != nil {
		return nil, err
	}
	sourceRoot, err := config.ResolveSourceRoot(cfg)
	if err != nil {
		return nil, err
	}
	if err := storepkg.EnsureLayout(stateRoot); err != nil {
		return nil, err
	}
	idMode, err := index.ParseIDMode(cfg.Archives.IDMode)
	if err != nil {
		return nil, err
	}

	logger := audit.New(storepkg.AuditPath(stateRoot)).WithLevel(cfg.Logging.Level)
	cache := index.New(index.Options{Extensions: cfg.Archives.Extensions, IDMode: idMode})
	svc := &Service{
		ConfigPath: configPath,
		Config:     cfg,
		fileCfg:    fileCfg,
		StateRoot:  stateRoot,
		SourceRoot: sourceRoot,
		Cache:      cache,
		Audit:      logger,
		Detector:   gamedir.NewDetector(cfg.Game.Executable),
		runner:     opts.Runner,
		onEvent:    opts.OnEvent,
	}
	svc.Doctor = &doctor.Service{
		ConfigPath: configPath,
		StateRoot:  stateRoot,
		Detect:     func() (gamedir.Detection, error) { return svc.Detector.Detect() },
	}
	svc.Importer = &importer.Service{
		StorageRoot: stateRoot,
		Champion:    svc.championName,
		Audit:       logger,
	}
	return svc, nil
}

func (s *Service) SaveConfig() error {
	return config.Save(s.ConfigPath, s.fileCfg)
}

// SetGameRoot stores the game installation root and drops the cached
// injector so the next call validates the new location.
func (s *Service) SetGameRoot(root string) error {
	if err := config.SetGameRoot(&s.fileCfg, root); err != nil {
		return err
	}
	s.Config.Game.Root = s.fileCfg.Game.Root
	if err := s.SaveConfig(); err != nil {
		return err
	}
	s.mu.Lock()
	s.injector = nil
	s.mu.Unlock()
	return nil
}

// AddSearchDir records an extra overlay tool search directory.
func (s *Service) AddSearchDir(dir string) (bool, error) {
	changed, err := config.AddSearchDir(&s.fileCfg, dir)
	if err != nil || !changed {
		return changed, err
	}
	s.Config.Overlay.SearchDirs = s.fileCfg.Overlay.SearchDirs
	return true, s.SaveConfig()
}

// OnEvent sets the injector event handler. It only takes effect before the
// injector is first used.
func (s *Service) OnEvent(fn func(injector.Event)) {
	s.mu.Lock()
	s.onEvent = fn
	s.mu.Unlock()
}

// Injector returns the process-wide injector, creating it on first use.
func (s *Service) Injector() (*injector.Injector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.injector != nil {
		return s.injector, nil
	}
	gameRoot, err := config.ResolveGameRoot(s.Config)
	if err != nil {
		return nil, err
	}
	delay, err := config.RetryDelay(s.Config)
	if err != nil {
		return nil, err
	}
	inj, err := injector.New(injector.Options{
		GameRoot:        gameRoot,
		Executable:      s.Config.Game.Executable,
		ConfigFile:      s.Config.Game.ConfigFile,
		ModsDir:         s.Config.Game.ModsDir,
		StorageRoot:     s.StateRoot,
		SourceRoot:      s.SourceRoot,
		Cache:           s.Cache,
		ToolCandidates:  overlay.DefaultCandidates(s.Config, s.StateRoot),
		ToolName:        s.Config.Overlay.ToolName,
		Runner:          s.runner,
		BuildPolicy:     overlay.Policy{MaxAttempts: s.Config.Overlay.BuildAttempts, Delay: delay},
		RunPolicy:       overlay.Policy{MaxAttempts: s.Config.Overlay.RunAttempts, Delay: delay},
		Extensions:      s.Config.Archives.Extensions,
		MmapThreshold:   s.Config.Archives.MmapThreshold,
		PayloadPatterns: s.Config.Archives.PayloadPatterns,
		Logger:          s.Audit,
		OnEvent:         s.onEvent,
	})
	if err != nil {
		return nil, err
	}
	s.injector = inj
	return inj, nil
}

func (s *Service) Inject(ctx context.Context, selections []injector.Selection, sourceRoot string) (injector.Report, error) {
	inj, err := s.Injector()
	if err != nil {
		return injector.Report{}, err
	}
	if sourceRoot != "" {
		expanded, err := config.ExpandPath(sourceRoot)
		if err != nil {
			return injector.Report{}, err
		}
		sourceRoot = filepath.Clean(expanded)
	}
	return inj.Inject(ctx, selections, sourceRoot)
}

func (s *Service) Cleanup(ctx context.Context) error {
	inj, err := s.Injector()
	if err != nil {
		return err
	}
	return inj.Cleanup(ctx)
}

func (s *Service) Stop(ctx context.Context) error {
	inj, err := s.Injector()
	if err != nil {
		return err
	}
	return inj.TerminateExternalProcess(ctx)
}

// Status reports the persisted session along with the most recent audit
// events. It works without a valid game installation.
func (s *Service) Status(recent int) (StatusReport, error) {
	st, err := storepkg.LoadState(s.StateRoot)
	if err != nil {
		return StatusReport{}, err
	}
	report := StatusReport{State: st.Session.State, Session: st.Session, Custom: len(st.CustomSkins)}
	if report.State == "" {
		report.State = injector.StateUninitialized.String()
	}
	if tool, err := overlay.Locate(overlay.DefaultCandidates(s.Config, s.StateRoot)); err == nil {
		report.ToolPath, report.ToolFound = tool, true
	}
	if recent > 0 {
		events, err := audit.Tail(s.Audit.Path(), recent)
		if err != nil {
			return StatusReport{}, err
		}
		report.Recent = events
	}
	return report, nil
}

// Index warms the file index, or rebuilds it unconditionally when rebuild is set.
func (s *Service) Index(sourceRoot string, rebuild bool) (IndexReport, error) {
	if sourceRoot == "" {
		sourceRoot = s.SourceRoot
	}
	report := IndexReport{SourceRoot: sourceRoot}
	if rebuild {
		if err := s.Cache.Rebuild(sourceRoot, sourceRoot); err != nil {
			return report, err
		}
		report.Rebuilt = true
	} else {
		rebuilt, err := s.Cache.EnsureFresh(sourceRoot, sourceRoot)
		if err != nil {
			return report, err
		}
		report.Rebuilt = rebuilt
	}
	report.Stats = s.Cache.Stats()
	_ = s.Audit.Log(audit.Event{Operation: "index", Phase: "build", Status: "ok",
		Message: fmt.Sprintf("%d archive(s), %d champion(s)", report.Stats.Archives, report.Stats.Champions)})
	return report, nil
}

// ListArchives returns every indexed archive under sourceRoot, sorted by path.
func (s *Service) ListArchives(sourceRoot string) ([]index.Entry, error) {
	if sourceRoot == "" {
		sourceRoot = s.SourceRoot
	}
	if _, err := s.Cache.EnsureFresh(sourceRoot, sourceRoot); err != nil {
		return nil, err
	}
	return s.Cache.Archives(), nil
}

// ResolveChampion accepts a numeric champion id or a champion directory name.
func (s *Service) ResolveChampion(arg string) (uint32, error) {
	arg = strings.TrimSpace(arg)
	if n, err := strconv.ParseUint(arg, 10, 32); err == nil && n > 0 {
		return uint32(n), nil
	}
	if _, err := s.Cache.EnsureFresh(s.SourceRoot, s.SourceRoot); err != nil {
		return 0, err
	}
	if id, ok := s.Cache.ChampionID(arg); ok {
		return id, nil
	}
	return 0, failure.New(failure.ErrConfig, "IMP_CHAMPION", "unknown champion %q", arg)
}

// DetectGame looks for a game installation and, when save is set, stores it
// as the configured game root.
func (s *Service) DetectGame(save bool) (gamedir.Detection, error) {
	found, err := s.Detector.Detect()
	if err != nil {
		return found, err
	}
	_ = s.Audit.Log(audit.Event{Operation: "config", Phase: "detect-game", Status: "ok", Message: found.Root,
		Fields: map[string]string{"source": found.Source}})
	if save {
		if err := s.SetGameRoot(found.Root); err != nil {
			return found, err
		}
	}
	return found, nil
}

func (s *Service) Import(championID uint32, path, name string) (storepkg.CustomSkin, error) {
	return s.Importer.Import(championID, path, name)
}

func (s *Service) CustomList(championID uint32) ([]storepkg.CustomSkin, error) {
	return s.Importer.List(championID)
}

func (s *Service) CustomDelete(id string) (storepkg.CustomSkin, error) {
	return s.Importer.Delete(id)
}

func (s *Service) DoctorRun() doctor.Report {
	return s.Doctor.Run()
}

func (s *Service) championName(id uint32) (string, bool) {
	if _, err := s.Cache.EnsureFresh(s.SourceRoot, s.SourceRoot); err != nil {
		_ = s.Audit.Log(audit.Event{Level: audit.LevelWarn, Operation: "index", Phase: "build", Status: "degraded", Message: err.Error()})
	}
	return s.Cache.ChampionName(id)
}
