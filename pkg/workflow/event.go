package workflow

import "time"

// Event is one raw tool-usage record in the operational log. Events are
// append-only: once written they are never modified.
type Event struct {
	SessionID  string                 `json:"session_id"`
	Tool       string                 `json:"tool"`
	Operation  string                 `json:"operation"`
	Params     map[string]interface{} `json:"params,omitempty"`
	Success    *bool                  `json:"success,omitempty"`
	DurationMS *int64                 `json:"duration_ms,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Label returns the canonical "tool.operation" identity used for sequence
// matching. Params and success are deliberately excluded.
func (e Event) Label() string {
	return e.Tool + "." + e.Operation
}
