package jsonfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

func testIndex(n int) domain.Index {
	idx := make(domain.Index, n)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("abc/frame_%04d.webp", i)
		idx[key] = domain.IndexEntry{Text: fmt.Sprintf("frame_%04d танк", i), Tokens: []string{"frame", "танк"}}
	}
	return idx
}

func TestIndexStore_PersistLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewIndexStore(filepath.Join(t.TempDir(), "Cache"))
	require.NoError(t, err)

	assert.False(t, store.HasIndex())

	idx := testIndex(250)
	require.NoError(t, store.Persist(ctx, idx))
	assert.True(t, store.HasIndex())

	for _, name := range []string{"index_000.json", "index_001.json", "index_002.json"} {
		assert.FileExists(t, filepath.Join(store.Dir(), name))
	}

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, idx, loaded)

	chunks, err := store.Chunks(ctx)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[2], 50)
	assert.Contains(t, chunks[0], "abc/frame_0000.webp")
	assert.Contains(t, chunks[2], "abc/frame_0249.webp")
}

func TestIndexStore_ChunkFormat(t *testing.T) {
	store, err := NewIndexStore(t.TempDir())
	require.NoError(t, err)

	idx := domain.Index{"abc/a.webp": {Text: "a танк", Tokens: []string{"a", "танк"}}}
	require.NoError(t, store.Persist(context.Background(), idx))

	data, err := os.ReadFile(filepath.Join(store.Dir(), "index_000.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"abc/a.webp": ["a танк", ["a", "танк"]]}`, string(data))
}

func TestIndexStore_StaleChunksRemoved(t *testing.T) {
	ctx := context.Background()
	store, err := NewIndexStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Persist(ctx, testIndex(250)))
	require.NoError(t, store.Persist(ctx, testIndex(40)))

	assert.NoFileExists(t, filepath.Join(store.Dir(), "index_001.json"))
	assert.NoFileExists(t, filepath.Join(store.Dir(), "index_002.json"))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 40)
}

func TestIndexStore_EmptyIndexClearsChunks(t *testing.T) {
	ctx := context.Background()
	store, err := NewIndexStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Persist(ctx, testIndex(5)))
	require.NoError(t, store.Persist(ctx, domain.Index{}))

	assert.False(t, store.HasIndex())
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestIndexStore_CorruptChunkSkipped(t *testing.T) {
	ctx := context.Background()
	store, err := NewIndexStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Persist(ctx, testIndex(150)))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "index_000.json"), []byte("{broken"), 0644))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 50)
	assert.Contains(t, loaded, "abc/frame_0149.webp")
}

func TestIndexStore_IgnoresOtherFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewIndexStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, RelevanceCacheFile), []byte(`{}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index_backup.json"), []byte(`{}`), 0644))
	assert.False(t, store.HasIndex())

	require.NoError(t, store.Persist(ctx, testIndex(3)))
	assert.FileExists(t, filepath.Join(dir, RelevanceCacheFile))
}

func TestIndexStore_ConcurrentPersistAndLoad(t *testing.T) {
	ctx := context.Background()
	store, err := NewIndexStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Persist(ctx, testIndex(120)))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Persist(ctx, testIndex(120)))
		}()
		go func() {
			defer wg.Done()
			loaded, err := store.Load(ctx)
			assert.NoError(t, err)
			assert.Len(t, loaded, 120)
		}()
	}
	wg.Wait()
}

func TestIndexStore_ReadLocksReleaseIndependently(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewIndexStore(dir)
	require.NoError(t, err)

	unlockFirst, err := store.readLock(ctx)
	require.NoError(t, err)
	unlockSecond, err := store.readLock(ctx)
	require.NoError(t, err)

	writer := flock.New(filepath.Join(dir, lockFile))
	unlockFirst()
	locked, err := writer.TryLock()
	require.NoError(t, err)
	assert.False(t, locked, "second reader still holds its shared lock")

	unlockSecond()
	locked, err = writer.TryLock()
	require.NoError(t, err)
	assert.True(t, locked)
	require.NoError(t, writer.Unlock())
}

func TestIndexStore_Cancelled(t *testing.T) {
	store, err := NewIndexStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.Persist(ctx, testIndex(3)))
}

func TestRelevanceCache_PutGetSave(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewRelevanceCache(dir)
	require.NoError(t, err)

	_, ok := cache.Get("танк", "abc/a.webp")
	assert.False(t, ok)

	cache.Put("танк", "abc/a.webp", true)
	cache.Put("танк", "abc/b.webp", false)

	answer, ok := cache.Get("танк", "abc/a.webp")
	require.True(t, ok)
	assert.True(t, answer)
	answer, ok = cache.Get("танк", "abc/b.webp")
	require.True(t, ok)
	assert.False(t, answer)

	require.NoError(t, cache.Save())

	data, err := os.ReadFile(cache.Path())
	require.NoError(t, err)
	assert.JSONEq(t, `{"танк|abc/a.webp": "yes", "танк|abc/b.webp": "no"}`, string(data))

	reopened, err := NewRelevanceCache(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())
	answer, ok = reopened.Get("танк", "abc/a.webp")
	require.True(t, ok)
	assert.True(t, answer)
}

func TestRelevanceCache_Clear(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewRelevanceCache(dir)
	require.NoError(t, err)
	cache.Put("q", "a.webp", true)
	require.NoError(t, cache.Save())

	require.NoError(t, cache.Clear())
	assert.Equal(t, 0, cache.Len())
	assert.NoFileExists(t, cache.Path())

	// Clearing twice is fine.
	require.NoError(t, cache.Clear())
}

func TestRelevanceCache_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, RelevanceCacheFile), []byte("not json"), 0644))

	cache, err := NewRelevanceCache(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestRelevanceCache_IgnoresUnknownAnswers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, RelevanceCacheFile),
		[]byte(`{"q|a.webp": "yes", "q|b.webp": "maybe"}`), 0644))

	cache, err := NewRelevanceCache(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
}
