package driven

import (
	"context"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

// IndexStore persists the frame index as fixed-size chunks.
type IndexStore interface {
	// Persist replaces the stored index with idx. Keys are written in sorted
	// order, domain.IndexChunkSize entries per chunk, each chunk atomically.
	// Chunks left over from a larger previous index are removed.
	Persist(ctx context.Context, idx domain.Index) error

	// Load merges every stored chunk into one index. Unreadable chunks are
	// skipped.
	Load(ctx context.Context) (domain.Index, error)

	// Chunks returns the stored chunks individually, in ordinal order.
	Chunks(ctx context.Context) ([]domain.Index, error)

	// HasIndex reports whether at least one chunk is stored.
	HasIndex() bool
}

// RelevanceCache memoises yes/no relevance answers keyed by query and path.
// A recorded answer is authoritative until Clear. Implementations must be
// safe for concurrent use.
type RelevanceCache interface {
	// Get returns the recorded answer for (query, path).
	Get(query, path string) (relevant bool, ok bool)

	// Put records an answer in memory.
	Put(query, path string, relevant bool)

	// Save persists recorded answers.
	Save() error

	// Clear drops every answer, in memory and in storage.
	Clear() error

	// Len returns the number of recorded answers.
	Len() int
}

// RelevanceKey returns the cache key for (query, path).
func RelevanceKey(query, path string) string {
	return query + "|" + path
}
