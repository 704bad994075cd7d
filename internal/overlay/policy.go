package overlay

import (
	"strings"
	"time"
)

// Outcome classifies one attempt of an external command.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeAccessViolation is the tool crashing on a locked or busy file.
	OutcomeAccessViolation
	OutcomeFailure
	// OutcomeLaunchFailure means the executable could not be started at all.
	OutcomeLaunchFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAccessViolation:
		return "access-violation"
	case OutcomeFailure:
		return "failure"
	case OutcomeLaunchFailure:
		return "launch-failure"
	default:
		return "unknown"
	}
}

// Policy bounds a retry loop.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Decision is what to do after an attempt.
type Decision struct {
	Retry bool
	// Log asks the caller to surface the failure output.
	Log  bool
	Stop bool
}

// Decide maps a 1-based attempt number and its outcome to the next step.
// Access violations retry without logging; other failures retry and are only
// logged on the final attempt; launch failures stop immediately.
func (p Policy) Decide(attempt int, outcome Outcome) Decision {
	final := attempt >= p.MaxAttempts
	switch outcome {
	case OutcomeSuccess:
		return Decision{Stop: true}
	case OutcomeLaunchFailure:
		return Decision{Stop: true, Log: true}
	case OutcomeAccessViolation:
		return Decision{Retry: !final, Stop: final}
	default:
		return Decision{Retry: !final, Stop: final, Log: final}
	}
}

// accessViolation is STATUS_ACCESS_VIOLATION as a Windows exit code.
const accessViolation = 0xC0000005

// Classify inspects a completed mkoverlay run.
func Classify(res Result) Outcome {
	if isAccessViolation(res) {
		return OutcomeAccessViolation
	}
	if res.ExitCode != 0 || hasErrorText(res.Stdout) || hasErrorText(res.Stderr) {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

func isAccessViolation(res Result) bool {
	if uint32(res.ExitCode) == accessViolation {
		return true
	}
	for _, s := range []string{res.Stdout, res.Stderr} {
		lower := strings.ToLower(s)
		if strings.Contains(lower, "0xc0000005") || strings.Contains(lower, "access violation") {
			return true
		}
	}
	return false
}

// hasErrorText reports lines the tool prints when it fails but still exits 0.
func hasErrorText(out string) bool {
	for _, line := range strings.Split(out, "\n") {
		l := strings.ToLower(strings.TrimSpace(line))
		if strings.HasPrefix(l, "error:") || strings.HasPrefix(l, "[error]") || strings.HasPrefix(l, "[fatal]") {
			return true
		}
	}
	return false
}
