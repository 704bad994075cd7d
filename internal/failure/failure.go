// Package failure defines the error taxonomy shared by the injection pipeline.
//
// Every error carries a kind sentinel (use errors.Is against the Err* values)
// and a short upper-case code that is printed first, e.g.
// "INJ_MISSING_ARCHIVE: no archive for champion 1 skin 10".
package failure

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIO              = errors.New("io error")
	ErrInvalidGamePath = errors.New("invalid game path")
	ErrMissingArchive  = errors.New("missing archive")
	ErrProcess         = errors.New("process error")
	ErrConfig          = errors.New("configuration error")
	ErrOverlay         = errors.New("overlay error")
	ErrTimeout         = errors.New("timeout")
	ErrAborted         = errors.New("aborted")
	ErrWalk            = errors.New("archive walk error")
	ErrArchive         = errors.New("archive format error")

	// ErrBusy is returned when a batch is already in flight.
	ErrBusy = errors.New("injector busy")
	// ErrCritical is returned once the injector reached its terminal fault state.
	ErrCritical = errors.New("injector in critical error state")
)

// Error is a classified failure.
type Error struct {
	Kind error
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Kind != nil:
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		if e.Msg != "" || e.Kind != nil {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// New builds a classified error without an underlying cause.
func New(kind error, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind error, code string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := ""
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Code: code, Msg: msg, Err: err}
}

// KindOf returns the first taxonomy sentinel err matches, or nil.
func KindOf(err error) error {
	for _, k := range []error{
		ErrInvalidGamePath, ErrMissingArchive, ErrProcess, ErrConfig, ErrOverlay,
		ErrTimeout, ErrAborted, ErrWalk, ErrArchive, ErrBusy, ErrCritical, ErrIO,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// ProcessError is the terminal error of an external invocation after retries.
// It keeps the last captured output for diagnostics.
type ProcessError struct {
	Op       string
	Attempts int
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	detail := strings.TrimSpace(e.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(e.Stdout)
	}
	msg := fmt.Sprintf("OVL_PROCESS: %s failed after %d attempt(s)", e.Op, e.Attempts)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if detail != "" {
		msg += ": " + detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProcessError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrProcess, e.Err}
	}
	return []error{ErrProcess}
}
