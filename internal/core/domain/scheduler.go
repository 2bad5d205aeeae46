package domain

import "time"

// ScheduledTask represents a recurring background task.
type ScheduledTask struct {
	// ID is the unique identifier for the task.
	ID string

	// Name is a human-readable name for the task.
	Name string

	// Interval defines how often the task should run.
	Interval time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	// Enabled indicates whether the task is active.
	Enabled bool
}

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	// TaskID identifies which task was run.
	TaskID string

	// StartedAt is when the task started.
	StartedAt time.Time

	// EndedAt is when the task completed.
	EndedAt time.Time

	// Success indicates whether the task completed without error.
	Success bool

	// Error contains the error message if Success is false.
	Error string

	// ItemsProcessed is a count of items handled (e.g., entries indexed).
	ItemsProcessed int
}

// Duration returns how long the run took.
func (r TaskResult) Duration() time.Duration {
	if r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Task IDs for built-in tasks.
const (
	TaskIDIndexRebuild = "index-rebuild"
	TaskIDDescribe     = "frame-describe"
)

// HistoryRetention is how many results are kept per task.
const HistoryRetention = 100

// MonitorState is the phase of the change monitor.
type MonitorState string

// Monitor states.
const (
	MonitorIdle       MonitorState = "idle"
	MonitorScanning   MonitorState = "scanning"
	MonitorRebuilding MonitorState = "rebuilding"
)

// DispatcherStatus is a snapshot of the task dispatcher.
type DispatcherStatus struct {
	Running     bool
	Workers     int
	QueueLength int
	Credentials []CredentialUsage
}
