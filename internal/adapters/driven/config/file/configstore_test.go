package file

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewConfigStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".vpp", "config.toml"), store.Path())
}

func TestNewConfigStore_WithNestedDirectory(t *testing.T) {
	nestedPath := filepath.Join(t.TempDir(), "nested", "deep")

	store, err := NewConfigStore(nestedPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nestedPath, "config.toml"), store.Path())

	info, err := os.Stat(nestedPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create/dirs")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("this is not valid TOML {{{[["), 0600))

	store, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("media.thumbnails_dir", "thumbnails"))
	require.NoError(t, store.Set("api.max_retries", 2))
	require.NoError(t, store.Set("monitor.watch", true))
	require.NoError(t, store.Set("search.fuzzy_threshold", 87.5))
	require.NoError(t, store.Set("api.keys", []string{"k1", "k2"}))

	assert.Equal(t, "thumbnails", store.GetString("media.thumbnails_dir"))
	assert.Equal(t, 2, store.GetInt("api.max_retries"))
	assert.True(t, store.GetBool("monitor.watch"))
	assert.Equal(t, 87.5, store.GetFloat("search.fuzzy_threshold"))
	assert.Equal(t, float64(2), store.GetFloat("api.max_retries"))
	assert.Equal(t, []string{"k1", "k2"}, store.GetStringSlice("api.keys"))

	// Wrong types and missing keys read as zero values.
	assert.Empty(t, store.GetString("api.max_retries"))
	assert.Zero(t, store.GetInt("media.thumbnails_dir"))
	assert.False(t, store.GetBool("media.thumbnails_dir"))
	assert.Nil(t, store.GetStringSlice("nonexistent"))
}

func TestConfigStore_GetDuration(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	store.mu.Lock()
	store.data["string"] = "1.1s"
	store.data["seconds"] = int64(60)
	store.data["fraction"] = 0.5
	store.data["garbage"] = "soon"
	store.data["bool"] = true
	store.mu.Unlock()

	assert.Equal(t, 1100*time.Millisecond, store.GetDuration("string"))
	assert.Equal(t, time.Minute, store.GetDuration("seconds"))
	assert.Equal(t, 500*time.Millisecond, store.GetDuration("fraction"))
	assert.Zero(t, store.GetDuration("garbage"))
	assert.Zero(t, store.GetDuration("bool"))
	assert.Zero(t, store.GetDuration("missing"))
}

func TestConfigStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()
	store1, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store1.Set("search.mode", "semantic"))
	require.NoError(t, store1.Set("api.keys", []string{"k1"}))
	require.NoError(t, store1.Set("api.request_interval", "1s"))
	require.NoError(t, store1.Set("search.synonyms.танк", []string{"tank", "бронетехника"}))
	require.NoError(t, store1.Set("search.fuzzy_threshold", 90.0))

	store2, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "semantic", store2.GetString("search.mode"))
	assert.Equal(t, []string{"k1"}, store2.GetStringSlice("api.keys"))
	assert.Equal(t, time.Second, store2.GetDuration("api.request_interval"))
	assert.Equal(t, []string{"tank", "бронетехника"}, store2.GetStringSlice("search.synonyms.танк"))
	assert.Equal(t, float64(90), store2.GetFloat("search.fuzzy_threshold"))
}

func TestConfigStore_WritesNestedTables(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("search.mode", "keyword"))
	require.NoError(t, store.Set("monitor.interval", "2s"))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "[search]")
	assert.Contains(t, content, "[monitor]")
	assert.False(t, strings.Contains(content, "'search.mode'"), "keys are nested, not quoted")
}

func TestConfigStore_ReadsHandWrittenFile(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
[media]
thumbnails_dir = "/srv/thumbs"

[api]
keys = ["k1", "k2"]
request_interval = 1.5

[search.synonyms]
"кот" = ["кошка"]
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "/srv/thumbs", store.GetString("media.thumbnails_dir"))
	assert.Equal(t, []string{"k1", "k2"}, store.GetStringSlice("api.keys"))
	assert.Equal(t, 1500*time.Millisecond, store.GetDuration("api.request_interval"))
	assert.Equal(t, []string{"search.synonyms.кот"}, store.Keys("search.synonyms."))
}

func TestConfigStore_KeysAndDelete(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("search.synonyms.b", []string{"x"}))
	require.NoError(t, store.Set("search.synonyms.a", []string{"y"}))
	require.NoError(t, store.Set("search.mode", "keyword"))

	assert.Equal(t, []string{"search.synonyms.a", "search.synonyms.b"}, store.Keys("search.synonyms."))

	require.NoError(t, store.Delete("search.synonyms.a"))
	require.NoError(t, store.Delete("search.synonyms.absent"))

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"search.synonyms.b"}, reloaded.Keys("search.synonyms."))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("api.keys", []string{"secret"}))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_NoTempFilesLeft(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store.Set("a", "1"))
	require.NoError(t, store.Set("b", "2"))

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "config.toml", entries[0].Name())
}

func TestConfigStore_Save_WriteError(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("test", "value"))

	// Replace the file with a directory so the rename fails.
	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0700))

	assert.Error(t, store.Set("another", "value"))
}

func TestConfigStore_SetWithUnmarshallableValue(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Set("channel", make(chan int)))
}

func TestConfigStore_Load_EmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("# Just a comment\n\n"), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	_, ok := store.Get("any_key")
	assert.False(t, ok)
}

func TestNestMap(t *testing.T) {
	nested := nestMap(map[string]any{
		"a":       1,
		"a.b":     2,
		"x.y.z":   3,
		"x.y.w":   4,
		"setting": true,
	})

	assert.Equal(t, 1, nested["a"])
	assert.Equal(t, 2, nested["a.b"], "colliding keys stay flat")
	assert.Equal(t, map[string]any{"y": map[string]any{"w": 4, "z": 3}}, nested["x"])
	assert.Equal(t, true, nested["setting"])

	assert.Equal(t, map[string]any{"a": 1, "a.b": 2, "x.y.z": 3, "x.y.w": 4, "setting": true}, flattenMap(nested, ""))
}
