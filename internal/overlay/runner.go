package overlay

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Result is the captured outcome of a process that ran to completion.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Process is a handle to a detached child process.
type Process interface {
	Pid() int
	Kill() error
}

// Runner executes external commands. Output waits for the command and reports
// a non-zero exit through Result.ExitCode; its error is reserved for commands
// that could not be started or were cancelled. Start launches without waiting.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) (Result, error)
	Start(name string, args ...string) (Process, error)
}

// ExecRunner runs commands with os/exec, without a visible console window.
type ExecRunner struct{}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = hiddenProcAttr(false)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		return res, err
	}
	return res, nil
}

func (ExecRunner) Start(name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = hiddenProcAttr(true)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &execProcess{cmd: cmd}
	// Reap the child when it exits on its own; the handle stays usable for Kill.
	go func() { _ = cmd.Wait() }()
	return p, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Kill()
}
