package driving

import (
	"context"
	"time"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

// ChangeMonitor watches the media tree and rebuilds the index on change.
type ChangeMonitor interface {
	// Start runs the scan loop.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop ends the loop after the current scan.
	Stop() error

	// ScanOnce compares the tree with the last snapshot and rebuilds if it
	// changed. Reports whether a rebuild ran.
	ScanOnce(ctx context.Context) (bool, error)
}

// Dispatcher runs queued API tasks on a pool of workers.
type Dispatcher interface {
	// Start launches workers. Zero means one per configured credential.
	Start(workers int)

	// Stop signals workers to exit, waits briefly for them, and completes
	// anything still queued with an empty result.
	Stop()

	// Status returns a snapshot of the worker pool and credential usage.
	Status() domain.DispatcherStatus
}

// Describer generates descriptions for frames that lack one.
type Describer interface {
	// Pending lists frames, relative to the media root, without a description.
	Pending(ctx context.Context) ([]string, error)

	// DescribeAll describes every pending frame.
	DescribeAll(ctx context.Context) (domain.DescribeReport, error)

	// Run calls DescribeAll every interval until ctx is cancelled.
	Run(ctx context.Context, interval time.Duration) error
}

// CredentialSync keeps the dispatcher's credential set in step with the
// configuration file.
type CredentialSync interface {
	// Sync reloads the configuration and refreshes the credential set.
	Sync() error

	// Run syncs periodically and on file change until ctx is cancelled.
	Run(ctx context.Context) error
}

// TaskHistory reads recorded task runs.
type TaskHistory interface {
	// GetTaskHistory returns up to limit results, most recent first.
	GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)
}
