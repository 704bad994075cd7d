package injector

import "fmt"

type State int

const (
	StateUninitialized State = iota
	StateIdle
	StateBusy
	StateRunning
	StateCriticalError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateRunning:
		return "running"
	case StateCriticalError:
		return "critical-error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var transitions = map[State]map[State]bool{
	StateUninitialized: {StateIdle: true},
	StateIdle:          {StateBusy: true},
	StateBusy:          {StateIdle: true, StateRunning: true},
	StateRunning:       {StateIdle: true},
}

// allowed reports whether from -> to is a legal transition. Any state may
// fault into StateCriticalError; nothing leaves it.
func allowed(from, to State) bool {
	if from == to {
		return true
	}
	if to == StateCriticalError {
		return from != StateCriticalError
	}
	return transitions[from][to]
}
