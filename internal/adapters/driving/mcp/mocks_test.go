package mcp

import (
	"context"
	"sync"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	mu      sync.Mutex
	results []domain.SearchResult
	err     error
	query   string
	opts    domain.SearchOptions
	calls   int
}

func (m *mockSearchService) Search(
	_ context.Context,
	query string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.query = query
	m.opts = opts
	return m.results, m.err
}

func (m *mockSearchService) ClearRelevanceCache() error {
	return m.err
}

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	index      domain.Index
	stats      domain.IndexStats
	loadErr    error
	rebuildErr error
	loads      int
	rebuilds   int
}

func (m *mockIndexService) Rebuild(_ context.Context) (int, error) {
	m.rebuilds++
	if m.rebuildErr != nil {
		return 0, m.rebuildErr
	}
	return len(m.index), nil
}

func (m *mockIndexService) Load(_ context.Context) error {
	m.loads++
	return m.loadErr
}

func (m *mockIndexService) EnsureLoaded(ctx context.Context) error {
	return m.Load(ctx)
}

func (m *mockIndexService) Snapshot() domain.Index {
	return m.index
}

func (m *mockIndexService) Chunks(_ context.Context) ([]domain.Index, error) {
	return m.index.Split(domain.IndexChunkSize), nil
}

func (m *mockIndexService) Stats() domain.IndexStats {
	return m.stats
}

func newTestServer(search *mockSearchService, index *mockIndexService) (*Server, error) {
	return NewServer(&Ports{Search: search, Index: index})
}
