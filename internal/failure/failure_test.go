package failure

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
)

func TestErrorMatchesKindAndCause(t *testing.T) {
	err := Wrap(ErrIO, "EXT_OPEN", fs.ErrNotExist, "open %s", "a.fantome")
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO kind")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected cause to be reachable")
	}
	if got := err.Error(); !strings.HasPrefix(got, "EXT_OPEN: open a.fantome: ") {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(ErrIO, "X", nil, "ignored"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"missing", New(ErrMissingArchive, "INJ_MISSING_ARCHIVE", "none"), ErrMissingArchive},
		{"process", &ProcessError{Op: "mkoverlay", Attempts: 5}, ErrProcess},
		{"plain", errors.New("x"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("KindOf = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProcessErrorPrefersStderr(t *testing.T) {
	err := &ProcessError{Op: "mkoverlay", Attempts: 5, ExitCode: 3, Stdout: "out", Stderr: "boom\n"}
	msg := err.Error()
	if !strings.Contains(msg, "boom") || strings.Contains(msg, "out") {
		t.Fatalf("unexpected message %q", msg)
	}
	if !strings.Contains(msg, "after 5 attempt(s)") {
		t.Fatalf("expected attempt count in %q", msg)
	}
}
