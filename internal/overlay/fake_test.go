package overlay

import (
	"context"
	"strings"
	"sync"
)

type call struct {
	name string
	args []string
}

func (c call) String() string {
	return c.name + " " + strings.Join(c.args, " ")
}

type fakeProcess struct {
	pid    int
	killed bool
}

func (p *fakeProcess) Pid() int { return p.pid }
func (p *fakeProcess) Kill() error { p.killed = true; return nil }

// fakeRunner answers tool invocations from a script and records every call.
type fakeRunner struct {
	mu      sync.Mutex
	tool    string
	outputs []fakeOutput
	starts  []error
	pgrep   string
	calls   []call
}

type fakeOutput struct {
	res Result
	err error
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name, args})
	switch {
	case name == f.tool:
		if len(f.outputs) == 0 {
			return Result{}, nil
		}
		next := f.outputs[0]
		f.outputs = f.outputs[1:]
		return next.res, next.err
	case name == "pgrep" || name == "wmic":
		return Result{Stdout: f.pgrep}, nil
	default:
		return Result{}, nil
	}
}

func (f *fakeRunner) Start(name string, args ...string) (Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name, args})
	if len(f.starts) > 0 {
		err := f.starts[0]
		f.starts = f.starts[1:]
		if err != nil {
			return nil, err
		}
	}
	return &fakeProcess{pid: 4242}, nil
}

func (f *fakeRunner) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.name == name {
			n++
		}
	}
	return n
}

func (f *fakeRunner) toolCalls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.name == f.tool {
			out = append(out, c)
		}
	}
	return out
}
