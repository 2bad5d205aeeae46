// Package cli implements the vpp command line.
package cli

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/ports/driving"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/logger"
)

// EnvHome overrides the configuration directory when --config-dir is unset.
const EnvHome = "VPP_HOME"

var version = "dev"

var (
	verbose   bool
	configDir string
)

// App holds the services the commands drive.
type App struct {
	Settings   driving.SettingsService
	Index      driving.IndexService
	Search     driving.SearchService
	Describer  driving.Describer
	Dispatcher driving.Dispatcher
	Monitor    driving.ChangeMonitor
	KeySync    driving.CredentialSync
	History    driving.TaskHistory

	// Close releases stores. May be nil.
	Close func() error
}

// Options are the root flag values a Builder sees.
type Options struct {
	// ConfigDir is the configuration directory; empty means the default.
	ConfigDir string
	// Context is cancelled when the process is asked to shut down.
	Context context.Context
}

// Builder constructs the App once the root flags are parsed.
type Builder func(opts Options) (*App, error)

var (
	app     *App
	builder Builder
)

var rootCmd = &cobra.Command{
	Use:   "vpp",
	Short: "Search video preview frames",
	Long: `vpp indexes the preview frames extracted from video files and searches
them by keyword or with the help of a vision/language API.

Frames, their timecode mapping files and description files live under the
thumbnails directory; the index is kept in the cache directory.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "",
		"configuration directory (default $"+EnvHome+" or ~/.vpp)")
}

// Execute runs the root command. build is called the first time a command
// needs services.
func Execute(ctx context.Context, build Builder, ver string) error {
	builder = build
	if ver != "" {
		version = ver
	}
	defer closeApp()
	return rootCmd.ExecuteContext(ctx)
}

// loadApp returns the App, building it on first use.
func loadApp() (*App, error) {
	if app != nil {
		return app, nil
	}
	if builder == nil {
		return nil, errors.New("application not configured")
	}
	dir := configDir
	if dir == "" {
		dir = os.Getenv(EnvHome)
	}
	built, err := builder(Options{ConfigDir: dir, Context: commandContext(rootCmd)})
	if err != nil {
		return nil, err
	}
	app = built
	return app, nil
}

func closeApp() {
	if app == nil || app.Close == nil {
		return
	}
	if err := app.Close(); err != nil {
		logger.Error("close: %v", err)
	}
}

// commandContext returns cmd's context, or Background outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
