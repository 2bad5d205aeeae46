package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

func TestIndexStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewIndexStore()
	assert.False(t, store.HasIndex())

	idx := make(domain.Index)
	for i := 0; i < 150; i++ {
		idx[fmt.Sprintf("v/%03d.webp", i)] = domain.IndexEntry{Text: fmt.Sprint(i), Tokens: []string{fmt.Sprint(i)}}
	}
	require.NoError(t, store.Persist(ctx, idx))

	assert.True(t, store.HasIndex())
	assert.Equal(t, 1, store.Persists())

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, idx, loaded)

	chunks, err := store.Chunks(ctx)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 50)
}

func TestRelevanceCache(t *testing.T) {
	c := NewRelevanceCache()

	_, ok := c.Get("танк", "a.webp")
	assert.False(t, ok)

	c.Put("танк", "a.webp", true)
	c.Put("танк", "b.webp", false)

	v, ok := c.Get("танк", "a.webp")
	assert.True(t, ok)
	assert.True(t, v)
	v, ok = c.Get("танк", "b.webp")
	assert.True(t, ok)
	assert.False(t, v)
	assert.Equal(t, 2, c.Len())

	require.NoError(t, c.Save())
	assert.Equal(t, 1, c.Saves())

	require.NoError(t, c.Clear())
	assert.Zero(t, c.Len())
}

func TestSchedulerStore_History(t *testing.T) {
	ctx := context.Background()
	store := NewSchedulerStore()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordResult(ctx, &domain.TaskResult{
			TaskID:         domain.TaskIDIndexRebuild,
			StartedAt:      start.Add(time.Duration(i) * time.Minute),
			ItemsProcessed: i,
		}))
	}

	history, err := store.GetTaskHistory(ctx, domain.TaskIDIndexRebuild, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 4, history[0].ItemsProcessed)
	assert.Equal(t, 3, history[1].ItemsProcessed)

	require.NoError(t, store.PruneHistory(ctx, 3))
	history, err = store.GetTaskHistory(ctx, domain.TaskIDIndexRebuild, 0)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	assert.ErrorIs(t, store.RecordResult(ctx, nil), domain.ErrInvalidInput)
}

func TestSchedulerStore_Tasks(t *testing.T) {
	ctx := context.Background()
	store := NewSchedulerStore()

	task, err := store.GetTask(ctx, domain.TaskIDIndexRebuild)
	require.NoError(t, err)
	assert.Nil(t, task)

	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{ID: domain.TaskIDIndexRebuild, Name: "Index Rebuild"}))
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{ID: domain.TaskIDDescribe, Name: "Frame Describe"}))

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, domain.TaskIDDescribe, tasks[0].ID)

	require.NoError(t, store.DeleteTask(ctx, domain.TaskIDDescribe))
	tasks, err = store.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	assert.ErrorIs(t, store.SaveTask(ctx, nil), domain.ErrInvalidInput)
}
