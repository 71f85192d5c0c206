package logging

// LogEntry represents a structured log record with fields relevant to
// pattern learning and plan execution.
type LogEntry struct {
	// Standard fields
	Time     int64
	Severity Severity
	Message  string
	File     string
	Line     int
	Function string

	// Execution-specific fields
	ExecutionID string // The execution this record belongs to, if any
	PatternName string // The pattern being learned or executed
	Latency     int64  // Operation duration in milliseconds

	// General structured data
	Fields map[string]interface{}
}
