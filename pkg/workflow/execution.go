package workflow

import "time"

// ExecutionStatus tracks the lifecycle of one pattern run.
type ExecutionStatus string

const (
	StatusRunning             ExecutionStatus = "running"
	StatusCompleted           ExecutionStatus = "completed"
	StatusFailed              ExecutionStatus = "failed"
	StatusInterrupted         ExecutionStatus = "interrupted"
	StatusTimeout             ExecutionStatus = "timeout"
	StatusPendingConfirmation ExecutionStatus = "pending_confirmation"
)

// Terminal reports whether the status is a final one.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusInterrupted, StatusTimeout:
		return true
	}
	return false
}

// Execution is one run of a resolved pattern, tracked from start to a
// single terminal finalization. Context is mutated only by merging
// successful step outputs; CompletedAt is set exactly once.
type Execution struct {
	ID          string                 `json:"id"`
	PatternName string                 `json:"pattern_name"`
	Status      ExecutionStatus        `json:"status"`
	Context     map[string]interface{} `json:"context,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Result      map[string]interface{} `json:"result,omitempty"`
}
