package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

var historyLimit int

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the frame index",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the index from the thumbnails directory",
	Args:  cobra.NoArgs,
	RunE:  runIndexRebuild,
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE:  runIndexStatus,
}

var indexHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent rebuild and describe runs",
	Args:  cobra.NoArgs,
	RunE:  runIndexHistory,
}

var indexClearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Forget every recorded yes/no relevance answer",
	Args:  cobra.NoArgs,
	RunE:  runIndexClearCache,
}

func init() {
	indexHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "runs to show per task")
	indexCmd.AddCommand(indexRebuildCmd, indexStatusCmd, indexHistoryCmd, indexClearCacheCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexRebuild(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	start := time.Now()
	n, err := a.Index.Rebuild(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	cmd.Println(successStyle.Render(fmt.Sprintf("Indexed %d frame(s) in %s", n, time.Since(start).Round(time.Millisecond))))
	return nil
}

func runIndexStatus(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	if err := a.Index.Load(commandContext(cmd)); err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	stats := a.Index.Stats()
	cmd.Println(title("Index"))
	cmd.Printf("  Thumbnails: %s\n", stats.Root)
	cmd.Printf("  Cache:      %s\n", stats.CacheDir)
	cmd.Printf("  Frames:     %d\n", stats.Entries)
	cmd.Printf("  Chunks:     %d\n", stats.Chunks)
	if stats.Entries == 0 {
		cmd.Println(warningStyle.Render("  No index stored. Run 'vpp index rebuild'."))
	}
	return nil
}

func runIndexHistory(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	if a.History == nil {
		return fmt.Errorf("history: %w", domain.ErrNotFound)
	}

	ctx := commandContext(cmd)
	var rows [][]string
	for _, taskID := range []string{domain.TaskIDIndexRebuild, domain.TaskIDDescribe} {
		results, err := a.History.GetTaskHistory(ctx, taskID, historyLimit)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		for _, r := range results {
			rows = append(rows, historyRow(r))
		}
	}

	if len(rows) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}
	cmd.Println(renderTable(
		[]string{"Task", "Started", "Duration", "Items", "Result"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
	return nil
}

func historyRow(r domain.TaskResult) []string {
	result := "ok"
	if !r.Success {
		result = "failed: " + r.Error
	}
	return []string{
		r.TaskID,
		r.StartedAt.Local().Format("2006-01-02 15:04:05"),
		r.Duration().Round(time.Millisecond).String(),
		strconv.Itoa(r.ItemsProcessed),
		result,
	}
}

func runIndexClearCache(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	if err := a.Search.ClearRelevanceCache(); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	cmd.Println("Relevance cache cleared.")
	return nil
}
