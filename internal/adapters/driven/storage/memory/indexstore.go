package memory

import (
	"context"
	"sync"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driven"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

// IndexStore is an in-memory implementation of driven.IndexStore.
// Chunks are copied on persist and on load, so callers never share maps.
type IndexStore struct {
	mu       sync.RWMutex
	chunks   []domain.Index
	persists int
}

// NewIndexStore creates a new in-memory index store.
func NewIndexStore() *IndexStore {
	return &IndexStore{}
}

// Persist replaces the stored chunks.
func (s *IndexStore) Persist(_ context.Context, idx domain.Index) error {
	chunks := idx.Split(domain.IndexChunkSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = chunks
	s.persists++
	return nil
}

// Load merges every stored chunk.
func (s *IndexStore) Load(_ context.Context) (domain.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := make(domain.Index)
	for _, chunk := range s.chunks {
		for k, v := range chunk {
			idx[k] = v
		}
	}
	return idx, nil
}

// Chunks returns copies of the stored chunks.
func (s *IndexStore) Chunks(_ context.Context) ([]domain.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Index, len(s.chunks))
	for i, chunk := range s.chunks {
		c := make(domain.Index, len(chunk))
		for k, v := range chunk {
			c[k] = v
		}
		out[i] = c
	}
	return out, nil
}

// HasIndex reports whether anything was persisted.
func (s *IndexStore) HasIndex() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks) > 0
}

// Persists returns how many times Persist was called.
func (s *IndexStore) Persists() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persists
}
