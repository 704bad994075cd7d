// Package overlay drives the external overlay tool: it locates the
// executable, builds an overlay from mod directories (mkoverlay), launches
// the detached process that mounts it (runoverlay), and kills stray copies.
package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"skinjector/internal/audit"
	"skinjector/internal/failure"
	"skinjector/internal/fsutil"
)

const (
	DefaultBuildAttempts = 5
	DefaultRunAttempts   = 3
	DefaultDelay         = time.Second
)

type BuildRequest struct {
	ModsDir string
	OutDir  string
	GameDir string
	// Mods are directory names under ModsDir, in overlay order.
	Mods []string
}

type RunRequest struct {
	OverlayDir string
	ConfigPath string
	GameDir    string
}

type Client struct {
	Tool        string
	Runner      Runner
	Killer      *Killer
	BuildPolicy Policy
	RunPolicy   Policy
	Sleep       func(time.Duration)
	Logger      *audit.Logger
}

// NewClient returns a client for the tool at path using the default policies.
func NewClient(tool string, r Runner, logger *audit.Logger) *Client {
	if r == nil {
		r = ExecRunner{}
	}
	return &Client{
		Tool:        tool,
		Runner:      r,
		Killer:      NewKiller(r, imageName(tool)),
		BuildPolicy: Policy{MaxAttempts: DefaultBuildAttempts, Delay: DefaultDelay},
		RunPolicy:   Policy{MaxAttempts: DefaultRunAttempts, Delay: DefaultDelay},
		Sleep:       time.Sleep,
		Logger:      logger,
	}
}

func imageName(tool string) string {
	if i := strings.LastIndexAny(tool, `/\`); i >= 0 {
		return tool[i+1:]
	}
	return tool
}

// BuildArgs returns the mkoverlay argument list for req.
func BuildArgs(req BuildRequest) []string {
	return []string{
		"mkoverlay",
		req.ModsDir,
		req.OutDir,
		"--game:" + req.GameDir,
		"--mods:" + strings.Join(req.Mods, "/"),
		"--noTFT",
		"--ignoreConflict",
	}
}

// RunArgs returns the runoverlay argument list for req.
func RunArgs(req RunRequest) []string {
	return []string{
		"runoverlay",
		req.OverlayDir,
		req.ConfigPath,
		"--game:" + req.GameDir,
		"--opts:configless",
	}
}

// Build runs mkoverlay into req.OutDir, retrying per BuildPolicy. Stray tool
// processes are killed before the first attempt and between attempts, and
// OutDir is recreated empty each time.
func (c *Client) Build(ctx context.Context, req BuildRequest) error {
	policy := withDefaults(c.BuildPolicy, DefaultBuildAttempts)
	args := BuildArgs(req)
	c.Killer.Sweep(ctx)
	if err := resetDir(req.OutDir); err != nil {
		return failure.Wrap(failure.ErrIO, "OVL_BUILD_DIR", err, "prepare %s", req.OutDir)
	}

	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			c.log(audit.LevelWarn, "mkoverlay", "retry", "", fmt.Sprintf("retrying overlay build (attempt %d/%d)", attempt, policy.MaxAttempts), nil)
			c.sleep(policy.Delay)
			c.Killer.Sweep(ctx)
			if err := resetDir(req.OutDir); err != nil {
				c.log(audit.LevelWarn, "mkoverlay", "retry", "OVL_BUILD_DIR", "could not clean staging overlay: "+err.Error(), nil)
			}
		}
		if err := ctx.Err(); err != nil {
			return failure.Wrap(failure.ErrAborted, "OVL_ABORTED", err, "overlay build cancelled")
		}

		res, err := c.Runner.Output(ctx, c.Tool, args...)
		if err != nil && ctx.Err() != nil {
			return failure.Wrap(failure.ErrAborted, "OVL_ABORTED", ctx.Err(), "overlay build cancelled")
		}
		outcome := OutcomeLaunchFailure
		if err == nil {
			outcome = Classify(res)
		}
		d := policy.Decide(attempt, outcome)
		if outcome == OutcomeSuccess {
			c.log(audit.LevelInfo, "mkoverlay", "done", "", "overlay build succeeded", map[string]string{"attempts": strconv.Itoa(attempt)})
			return nil
		}
		if d.Log {
			c.log(audit.LevelError, "mkoverlay", "failed", "OVL_PROCESS", "overlay build failed", map[string]string{
				"outcome": outcome.String(),
				"output":  firstNonEmpty(res.Stderr, res.Stdout, errString(err)),
			})
		}
		if d.Stop {
			return &failure.ProcessError{
				Op:       "mkoverlay",
				Attempts: attempt,
				ExitCode: res.ExitCode,
				Stdout:   res.Stdout,
				Stderr:   res.Stderr,
				Err:      err,
			}
		}
	}
}

// Run writes the runoverlay config and launches the detached overlay
// process. Only the ability to spawn is checked.
func (c *Client) Run(ctx context.Context, req RunRequest) (Process, error) {
	policy := withDefaults(c.RunPolicy, DefaultRunAttempts)
	if err := WriteRunConfig(req.ConfigPath); err != nil {
		return nil, err
	}
	c.Killer.Sweep(ctx)
	args := RunArgs(req)

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			c.log(audit.LevelWarn, "runoverlay", "retry", "", fmt.Sprintf("retrying overlay run (attempt %d/%d)", attempt, policy.MaxAttempts), nil)
			c.sleep(policy.Delay)
			c.Killer.Sweep(ctx)
		}
		if err := ctx.Err(); err != nil {
			return nil, failure.Wrap(failure.ErrAborted, "OVL_ABORTED", err, "overlay run cancelled")
		}
		p, err := c.Runner.Start(c.Tool, args...)
		if err == nil {
			c.log(audit.LevelInfo, "runoverlay", "started", "", "overlay process started", map[string]string{"pid": strconv.Itoa(p.Pid())})
			return p, nil
		}
		lastErr = err
	}
	code, what := classifyStartError(lastErr)
	c.log(audit.LevelError, "runoverlay", "failed", code, what, map[string]string{"error": lastErr.Error()})
	return nil, failure.Wrap(failure.ErrOverlay, code, lastErr, "%s after %d attempt(s)", what, policy.MaxAttempts)
}

// Terminate kills the held process, then sweeps by name and pid.
func (c *Client) Terminate(ctx context.Context, p Process) {
	if p != nil {
		_ = p.Kill()
	}
	c.Killer.Sweep(ctx)
}

// TerminatePID kills a process recorded by an earlier invocation, then sweeps.
func (c *Client) TerminatePID(ctx context.Context, pid int) {
	c.Killer.KillPID(ctx, pid)
	c.Killer.Sweep(ctx)
}

type runConfig struct {
	EnableMods bool `json:"enableMods"`
}

// WriteRunConfig writes {"enableMods":true} to path.
func WriteRunConfig(path string) error {
	blob, err := json.Marshal(runConfig{EnableMods: true})
	if err != nil {
		return fmt.Errorf("OVL_CONFIG: %w", err)
	}
	if err := fsutil.AtomicWrite(path, blob, 0o644); err != nil {
		return failure.Wrap(failure.ErrIO, "OVL_CONFIG", err, "write %s", path)
	}
	return nil
}

func classifyStartError(err error) (code, what string) {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return "OVL_RUN_NOT_FOUND", "overlay tool not found"
	case errors.Is(err, fs.ErrPermission):
		return "OVL_RUN_PERMISSION", "permission denied launching overlay tool"
	default:
		return "OVL_RUN_FAILED", "failed to launch overlay tool"
	}
}

func withDefaults(p Policy, attempts int) Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = attempts
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

func (c *Client) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if c.Sleep != nil {
		c.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (c *Client) log(level, phase, status, code, msg string, fields map[string]string) {
	_ = c.Logger.Log(audit.Event{
		Level:     level,
		Operation: "overlay",
		Phase:     phase,
		Status:    status,
		Code:      code,
		Message:   msg,
		Fields:    fields,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
