package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/adapters/driving/cli"
)

func TestResolveDir(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	abs := filepath.Join(t.TempDir(), "thumbs")
	got, err := resolveDir(abs)
	require.NoError(t, err)
	assert.Equal(t, abs, got)

	got, err = resolveDir("thumbnails")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "thumbnails"), got)
}

func TestBootstrap(t *testing.T) {
	configDir := t.TempDir()
	media := t.TempDir()
	cache := filepath.Join(t.TempDir(), "Cache")
	config := "[media]\nthumbnails_dir = \"" + filepath.ToSlash(media) + "\"\n\n[cache]\ndir = \"" +
		filepath.ToSlash(cache) + "\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(config), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(media, "v"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(media, "v", "a.webp"), []byte("img"), 0o644))

	app, err := bootstrap(cli.Options{ConfigDir: configDir})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, app.Close()) })

	n, err := app.Index.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats := app.Index.Stats()
	assert.Equal(t, media, stats.Root)
	assert.Equal(t, cache, stats.CacheDir)

	history, err := app.History.GetTaskHistory(context.Background(), "index-rebuild", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	assert.FileExists(t, filepath.Join(configDir, "data", "metadata.db"))
}
