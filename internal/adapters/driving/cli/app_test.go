package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/adapters/driven/storage/memory"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/services"
)

// testApp is an App over memory stores and a temporary thumbnails tree.
type testApp struct {
	*App
	root    string
	config  *memory.ConfigStore
	history *memory.SchedulerStore
}

// setupTestApp installs an App for the duration of the test. Frames are
// created under the thumbnails root for each name given.
func setupTestApp(t *testing.T, frames ...string) *testApp {
	t.Helper()

	root := t.TempDir()
	for _, name := range frames {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("img"), 0o644))
	}

	config := memory.NewConfigStore()
	settingsSvc := services.NewSettingsService(config)
	settings, err := settingsSvc.Get()
	require.NoError(t, err)

	history := memory.NewSchedulerStore()
	builder := services.NewIndexBuilder(nil)
	index := services.NewIndexService(builder, memory.NewIndexStore(), history, root, "memory")
	governor := services.NewGovernor(nil, 0)
	dispatcher := services.NewDispatcher(governor)
	search := services.NewSearchService(index, dispatcher, governor, nil, memory.NewRelevanceCache(),
		services.SearchConfig{Settings: settings.Search, MediaRoot: root})

	ta := &testApp{
		App: &App{
			Settings:   settingsSvc,
			Index:      index,
			Search:     search,
			Describer:  services.NewDescriber(builder, root, dispatcher, nil, history, 0),
			Dispatcher: dispatcher,
			Monitor:    services.NewChangeMonitor(index, settings.Monitor),
			KeySync:    services.NewCredentialSync(config, governor, 0),
			History:    history,
		},
		root:    root,
		config:  config,
		history: history,
	}

	app = ta.App
	t.Cleanup(func() {
		dispatcher.Stop()
		app = nil
	})
	return ta
}

// executeCommand runs the root command with args and returns its output.
// Flag values are reset first so earlier runs do not leak into this one.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func writeDescription(t *testing.T, root, frame, text string) {
	t.Helper()
	ext := filepath.Ext(frame)
	path := filepath.Join(root, filepath.FromSlash(frame[:len(frame)-len(ext)]+services.DescriptionSuffix))
	data := `{"text": "` + text + `", "image_path": "` + frame + `", "timestamp": 1700000000}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}
