package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driven"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driving"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/logger"
)

// Verify interface compliance.
var _ driving.IndexService = (*IndexService)(nil)

// IndexService owns the in-memory index snapshot. Readers get the current
// map; a rebuild builds a new one and swaps it in, so a snapshot is never
// modified after it is published.
type IndexService struct {
	builder  *IndexBuilder
	store    driven.IndexStore
	history  driven.SchedulerStore
	root     string
	cacheDir string

	rebuildMu sync.Mutex

	mu       sync.RWMutex
	snapshot domain.Index
	loadedAt time.Time
}

// NewIndexService creates an index service. history may be nil.
func NewIndexService(
	builder *IndexBuilder,
	store driven.IndexStore,
	history driven.SchedulerStore,
	root, cacheDir string,
) *IndexService {
	return &IndexService{
		builder:  builder,
		store:    store,
		history:  history,
		root:     root,
		cacheDir: cacheDir,
	}
}

// Root returns the media root.
func (s *IndexService) Root() string {
	return s.root
}

// Builder returns the index builder.
func (s *IndexService) Builder() *IndexBuilder {
	return s.builder
}

// Rebuild walks the media root, persists the new index and swaps it in.
// Concurrent rebuilds run one at a time.
func (s *IndexService) Rebuild(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, domain.ErrIndexUnavailable
	}

	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	result := &domain.TaskResult{
		TaskID:    domain.TaskIDIndexRebuild,
		StartedAt: time.Now(),
	}
	n, err := s.rebuild(ctx)
	result.EndedAt = time.Now()
	result.ItemsProcessed = n
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Success = true
	}
	recordRun(ctx, s.history, "Index Rebuild", result)

	return n, err
}

func (s *IndexService) rebuild(ctx context.Context) (int, error) {
	logger.Section("Index Rebuild")

	idx, err := s.builder.Build(ctx, s.root)
	if err != nil {
		return 0, fmt.Errorf("build index: %w", err)
	}
	if err := s.store.Persist(ctx, idx); err != nil {
		return 0, fmt.Errorf("persist index: %w", err)
	}
	s.swap(idx)
	return len(idx), nil
}

// Load replaces the snapshot with the persisted index.
func (s *IndexService) Load(ctx context.Context) error {
	if s.store == nil {
		return domain.ErrIndexUnavailable
	}
	idx, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	s.swap(idx)
	logger.Debug("index: loaded %d entries", len(idx))
	return nil
}

// EnsureLoaded loads the persisted index, or builds one when nothing is
// stored yet. Does nothing if a snapshot is already held.
func (s *IndexService) EnsureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.snapshot != nil
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	if s.store == nil {
		return domain.ErrIndexUnavailable
	}
	if s.store.HasIndex() {
		return s.Load(ctx)
	}
	_, err := s.Rebuild(ctx)
	return err
}

// Snapshot returns the current index. Never nil.
func (s *IndexService) Snapshot() domain.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return domain.Index{}
	}
	return s.snapshot
}

// Chunks returns the current snapshot in persisted chunk order. Before
// anything is loaded, chunks are read from the store.
func (s *IndexService) Chunks(ctx context.Context) ([]domain.Index, error) {
	s.mu.RLock()
	snapshot := s.snapshot
	s.mu.RUnlock()

	if snapshot != nil {
		return snapshot.Split(domain.IndexChunkSize), nil
	}
	if s.store == nil {
		return nil, domain.ErrIndexUnavailable
	}
	return s.store.Chunks(ctx)
}

// Stats summarises the current snapshot.
func (s *IndexService) Stats() domain.IndexStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.snapshot)
	return domain.IndexStats{
		Entries:  n,
		Chunks:   (n + domain.IndexChunkSize - 1) / domain.IndexChunkSize,
		Root:     s.root,
		CacheDir: s.cacheDir,
		LoadedAt: s.loadedAt,
	}
}

func (s *IndexService) swap(idx domain.Index) {
	if idx == nil {
		idx = domain.Index{}
	}
	s.mu.Lock()
	s.snapshot = idx
	s.loadedAt = time.Now()
	s.mu.Unlock()
}

// recordRun stores a task result and the task's last-run state, then prunes
// history. Failures are logged; history is best effort.
func recordRun(ctx context.Context, store driven.SchedulerStore, name string, result *domain.TaskResult) {
	if store == nil {
		return
	}

	task, err := store.GetTask(ctx, result.TaskID)
	if err != nil {
		logger.Warn("history: failed to get task %s: %v", result.TaskID, err)
	}
	if task == nil {
		task = &domain.ScheduledTask{ID: result.TaskID, Name: name, Enabled: true}
	}
	task.LastRun = result.StartedAt
	if result.Success {
		task.LastError = ""
		task.LastSuccess = result.EndedAt
	} else {
		task.LastError = result.Error
	}
	if task.Interval > 0 {
		task.NextRun = result.EndedAt.Add(task.Interval)
	}

	if err := store.SaveTask(ctx, task); err != nil {
		logger.Warn("history: failed to save task %s: %v", task.ID, err)
	}
	if err := store.RecordResult(ctx, result); err != nil {
		logger.Warn("history: failed to record result for %s: %v", result.TaskID, err)
	}
	if err := store.PruneHistory(ctx, domain.HistoryRetention); err != nil {
		logger.Warn("history: failed to prune history: %v", err)
	}
}
