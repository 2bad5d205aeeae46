package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/adapters/driven/storage/memory"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

func newTestIndexService(t *testing.T, root string) (*IndexService, *memory.IndexStore, *memory.SchedulerStore) {
	t.Helper()
	store := memory.NewIndexStore()
	history := memory.NewSchedulerStore()
	svc := NewIndexService(NewIndexBuilder(nil), store, history, root, filepath.Join(t.TempDir(), "Cache"))
	return svc, store, history
}

func TestIndexService_Rebuild(t *testing.T) {
	ctx := context.Background()
	svc, store, history := newTestIndexService(t, newMediaTree(t))

	n, err := svc.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Len(t, svc.Snapshot(), 3)
	assert.Equal(t, 1, store.Persists())

	stats := svc.Stats()
	assert.Equal(t, 3, stats.Entries)
	assert.Equal(t, 1, stats.Chunks)
	assert.False(t, stats.LoadedAt.IsZero())

	results, err := history.GetTaskHistory(ctx, domain.TaskIDIndexRebuild, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, 3, results[0].ItemsProcessed)

	task, err := history.GetTask(ctx, domain.TaskIDIndexRebuild)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "Index Rebuild", task.Name)
	assert.Empty(t, task.LastError)
}

func TestIndexService_RebuildFailureRecorded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc, _, history := newTestIndexService(t, newMediaTree(t))

	_, err := svc.Rebuild(ctx)
	require.Error(t, err)

	results, err := history.GetTaskHistory(context.Background(), domain.TaskIDIndexRebuild, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.NotEmpty(t, results[0].Error)
}

func TestIndexService_EnsureLoaded(t *testing.T) {
	ctx := context.Background()
	root := newMediaTree(t)
	svc, store, _ := newTestIndexService(t, root)

	// Nothing stored: builds.
	require.NoError(t, svc.EnsureLoaded(ctx))
	assert.Len(t, svc.Snapshot(), 3)
	assert.Equal(t, 1, store.Persists())

	// Already loaded: no work.
	require.NoError(t, svc.EnsureLoaded(ctx))
	assert.Equal(t, 1, store.Persists())

	// A fresh service over the same store loads rather than builds.
	other := NewIndexService(NewIndexBuilder(nil), store, nil, root, "")
	require.NoError(t, other.EnsureLoaded(ctx))
	assert.Equal(t, svc.Snapshot(), other.Snapshot())
	assert.Equal(t, 1, store.Persists())
}

func TestIndexService_SnapshotNeverNil(t *testing.T) {
	svc, _, _ := newTestIndexService(t, t.TempDir())

	assert.NotNil(t, svc.Snapshot())
	assert.Empty(t, svc.Snapshot())
}

func TestIndexService_ChunksFromStoreBeforeLoad(t *testing.T) {
	ctx := context.Background()
	store := memory.NewIndexStore()
	require.NoError(t, store.Persist(ctx, domain.Index{"a.webp": {Text: "a"}}))

	svc := NewIndexService(NewIndexBuilder(nil), store, nil, t.TempDir(), "")
	chunks, err := svc.Chunks(ctx)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "a.webp")
}

func TestIndexService_NoStore(t *testing.T) {
	svc := NewIndexService(NewIndexBuilder(nil), nil, nil, t.TempDir(), "")

	_, err := svc.Rebuild(context.Background())
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
	assert.ErrorIs(t, svc.Load(context.Background()), domain.ErrIndexUnavailable)
	assert.ErrorIs(t, svc.EnsureLoaded(context.Background()), domain.ErrIndexUnavailable)
}
