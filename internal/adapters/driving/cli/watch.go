package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/logger"
)

var watchDescribeEvery time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the index current until interrupted",
	Long: `Runs in the foreground until Ctrl+C:

  - rescans the thumbnails directory and rebuilds the index when frames,
    mapping files or descriptions change
  - re-reads API keys whenever the configuration file changes
  - with --describe, periodically describes frames that lack a description`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDescribeEvery, "describe", 0,
		"describe pending frames at this interval (0 = off)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Index.EnsureLoaded(ctx); err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	if a.Dispatcher != nil {
		a.Dispatcher.Start(0)
		defer a.Dispatcher.Stop()
	}

	cmd.Println(title("Watching for changes"))
	cmd.Println(mutedStyle.Render("Press Ctrl+C to stop."))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Monitor.Start(gctx) })
	if a.KeySync != nil {
		g.Go(func() error { return a.KeySync.Run(gctx) })
	}
	if watchDescribeEvery > 0 && a.Describer != nil {
		g.Go(func() error { return a.Describer.Run(gctx, watchDescribeEvery) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("watch: stopped")
	cmd.Println("Stopped.")
	return err
}
