package driving

import (
	"context"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

// IndexService owns the in-memory index snapshot.
type IndexService interface {
	// Rebuild walks the media root, persists the new index and swaps it in.
	// Returns the number of entries.
	Rebuild(ctx context.Context) (int, error)

	// Load replaces the snapshot with the persisted index.
	Load(ctx context.Context) error

	// EnsureLoaded loads the persisted index, or rebuilds when none exists,
	// unless a snapshot is already held.
	EnsureLoaded(ctx context.Context) error

	// Snapshot returns the current index. Callers must not modify it.
	Snapshot() domain.Index

	// Chunks returns the current index split into persisted chunk order.
	Chunks(ctx context.Context) ([]domain.Index, error)

	// Stats summarises the current snapshot.
	Stats() domain.IndexStats
}
