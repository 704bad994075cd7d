package overlay

import (
	"context"
	"runtime"
	"strconv"
	"strings"
)

// Killer terminates stray copies of the overlay tool by image name and pid.
// All commands go through Runner and their failures are ignored.
type Killer struct {
	Runner Runner
	Image  string
	OS     string
}

func NewKiller(r Runner, image string) *Killer {
	return &Killer{Runner: r, Image: image, OS: runtime.GOOS}
}

// Sweep kills by image name, then enumerates and kills any surviving pids.
// It returns the pids it targeted individually.
func (k *Killer) Sweep(ctx context.Context) []int {
	if k == nil || k.Runner == nil || k.Image == "" {
		return nil
	}
	k.KillByName(ctx)
	pids := k.ListPIDs(ctx)
	for _, pid := range pids {
		k.KillPID(ctx, pid)
	}
	return pids
}

func (k *Killer) KillByName(ctx context.Context) {
	if k.OS == "windows" {
		_, _ = k.Runner.Output(ctx, "taskkill", "/F", "/IM", k.Image)
		return
	}
	_, _ = k.Runner.Output(ctx, "pkill", "-x", k.Image)
}

func (k *Killer) KillPID(ctx context.Context, pid int) {
	if pid <= 0 {
		return
	}
	if k.OS == "windows" {
		_, _ = k.Runner.Output(ctx, "taskkill", "/F", "/PID", strconv.Itoa(pid))
		return
	}
	_, _ = k.Runner.Output(ctx, "kill", "-9", strconv.Itoa(pid))
}

func (k *Killer) ListPIDs(ctx context.Context) []int {
	var res Result
	var err error
	if k.OS == "windows" {
		res, err = k.Runner.Output(ctx, "wmic", "process", "where", "name='"+k.Image+"'", "get", "processid")
	} else {
		res, err = k.Runner.Output(ctx, "pgrep", "-x", k.Image)
	}
	if err != nil {
		return nil
	}
	return parsePIDs(res.Stdout)
}

// parsePIDs reads one pid per line and ignores headers like "ProcessId".
func parsePIDs(out string) []int {
	var pids []int
	for _, line := range strings.Split(out, "\n") {
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && n > 0 {
			pids = append(pids, n)
		}
	}
	return pids
}
