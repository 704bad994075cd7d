package injector

import "strconv"

const (
	EventInjectionStatus = "injection-status"
	EventStateChanged    = "state-changed"
	EventProgress        = "progress"
)

const (
	StatusInjecting = "injecting"
	StatusSuccess   = "success"
	StatusError     = "error"
)

// Event is pushed to Options.OnEvent and mirrored to the audit log.
type Event struct {
	Kind    string `json:"kind"`
	Status  string `json:"status,omitempty"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	// Index is the 1-based selection number for progress events.
	Index int `json:"index,omitempty"`
	Total int `json:"total,omitempty"`
}

func (e Event) fields() map[string]string {
	f := map[string]string{}
	if e.State != "" {
		f["state"] = e.State
	}
	if e.Total > 0 {
		f["index"] = strconv.Itoa(e.Index)
		f["total"] = strconv.Itoa(e.Total)
	}
	return f
}
