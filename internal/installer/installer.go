// Package installer commits assembled mod directories into the game's mods
// directory. Each commit is staged next to the destination and renamed into
// place; Rollback undoes every commit of the current batch.
package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"skinjector/internal/audit"
	"skinjector/internal/failure"
	"skinjector/internal/fsutil"
	"skinjector/internal/modpack"
)

const stagePrefix = ".stage-"

type Service struct {
	GameModsDir string
	Audit       *audit.Logger
	Now         func() time.Time

	committed []string
	backups   map[string]string
}

// Reset clears the game mods directory and forgets the previous batch.
func (s *Service) Reset() error {
	if err := fsutil.RemoveAllRetry(s.GameModsDir, 3, 100*time.Millisecond); err != nil {
		return failure.Wrap(failure.ErrIO, "INS_RESET", err, "clear %s", s.GameModsDir)
	}
	if err := os.MkdirAll(s.GameModsDir, 0o755); err != nil {
		return failure.Wrap(failure.ErrIO, "INS_RESET", err, "create %s", s.GameModsDir)
	}
	s.committed = nil
	s.backups = map[string]string{}
	return nil
}

// Commit copies modDir into the game mods directory under its own base name,
// replacing a same-named entry. It returns the installed path.
func (s *Service) Commit(modDir string) (string, error) {
	if s.backups == nil {
		s.backups = map[string]string{}
	}
	name := filepath.Base(modDir)
	final := filepath.Join(s.GameModsDir, name)
	stamp := s.now().UnixNano()
	stage := filepath.Join(s.GameModsDir, fmt.Sprintf("%s%s-%d", stagePrefix, name, stamp))

	if err := fsutil.CopyTree(modDir, stage); err != nil {
		_ = os.RemoveAll(stage)
		return "", failure.Wrap(failure.ErrIO, "INS_STAGE_WRITE", err, "stage %s", name)
	}
	if fsutil.Exists(final) {
		backup := final + ".bak-" + fmt.Sprintf("%d-%d", stamp, len(s.committed))
		if err := os.Rename(final, backup); err != nil {
			_ = os.RemoveAll(stage)
			return "", failure.Wrap(failure.ErrIO, "INS_COMMIT_BACKUP", err, "back up %s", name)
		}
		if _, seen := s.backups[final]; !seen {
			s.backups[final] = backup
		} else {
			_ = os.RemoveAll(backup)
		}
	}
	if os.Getenv("SKINJECTOR_TEST_FAIL_COMMIT") == name {
		_ = os.RemoveAll(stage)
		return "", fmt.Errorf("INS_TEST_FAIL_COMMIT: injected commit failure")
	}
	if err := os.Rename(stage, final); err != nil {
		_ = os.RemoveAll(stage)
		return "", failure.Wrap(failure.ErrIO, "INS_COMMIT_ATOMIC", err, "commit %s", name)
	}
	s.committed = append(s.committed, final)
	_ = s.Audit.Log(audit.Event{Operation: "install", Phase: "commit", Status: "ok", Message: name})
	return final, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Rollback removes everything committed since the last Reset and restores
// replaced entries.
func (s *Service) Rollback() {
	for _, final := range s.committed {
		_ = os.RemoveAll(final)
	}
	for final, backup := range s.backups {
		_ = os.RemoveAll(final)
		_ = os.Rename(backup, final)
	}
	if n := len(s.committed); n > 0 {
		_ = s.Audit.Log(audit.Event{Level: audit.LevelWarn, Operation: "install", Phase: "rollback", Status: "ok", Message: fmt.Sprintf("removed=%d", n)})
	}
	s.committed = nil
	s.backups = map[string]string{}
}

// Finish drops the backups of a successful batch.
func (s *Service) Finish() {
	for _, backup := range s.backups {
		_ = os.RemoveAll(backup)
	}
	s.backups = map[string]string{}
}

// Committed returns the base names committed in this batch, in order.
func (s *Service) Committed() []string {
	out := make([]string, 0, len(s.committed))
	for _, p := range s.committed {
		out = append(out, filepath.Base(p))
	}
	return out
}

// Names lists the valid mod directories currently in the game mods directory.
func (s *Service) Names() ([]string, error) {
	entries, err := os.ReadDir(s.GameModsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, failure.Wrap(failure.ErrIO, "INS_LIST", err, "read %s", s.GameModsDir)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), stagePrefix) || strings.Contains(e.Name(), ".bak-") {
			continue
		}
		if modpack.IsValid(filepath.Join(s.GameModsDir, e.Name())) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
