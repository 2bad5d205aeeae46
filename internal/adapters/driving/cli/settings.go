package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View application settings. Settings live in config.toml in the
configuration directory and can be edited by hand.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsModeCmd = &cobra.Command{
	Use:   "mode <mode>",
	Short: "Set the default search mode",
	Long: `Set the search mode used when 'vpp search' is run without --mode.

Available modes:
  keyword  - exact, prefix and fuzzy matching (no API key required)
  semantic - text model ranking per index chunk
  filter   - yes/no per keyword match
  smart    - semantic ranking, then yes/no filter`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsMode,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsModeCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	settings, err := a.Settings.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println(title("Current Settings"))
	cmd.Println()

	cmd.Println("[Media]")
	cmd.Printf("  Thumbnails: %s\n", settings.Media.ThumbnailsDir)
	cmd.Printf("  Frame extensions: %s\n", strings.Join(settings.Media.FrameExts, ", "))
	cmd.Printf("  Cache: %s\n", settings.Cache.Dir)
	cmd.Println()

	cmd.Println("[API]")
	cmd.Printf("  Base URL: %s\n", settings.API.BaseURL)
	cmd.Printf("  Text model: %s\n", settings.API.TextModel)
	cmd.Printf("  Vision model: %s\n", settings.API.VisionModel)
	cmd.Printf("  Keys: %d configured\n", len(settings.API.Keys))
	cmd.Printf("  Request interval: %s\n", settings.API.RequestInterval)
	cmd.Printf("  Timeout: %s (retries: %d)\n", settings.API.Timeout, settings.API.MaxRetries)
	cmd.Println()

	cmd.Println("[Search]")
	cmd.Printf("  Mode: %s\n", settings.Search.Mode.Description())
	cmd.Printf("  Fuzzy threshold: %g\n", settings.Search.FuzzyThreshold)
	cmd.Printf("  Minimum score: %d\n", settings.Search.MinScore)
	cmd.Printf("  Stagger delay: %s\n", settings.Search.StaggerDelay)
	terms := make([]string, 0, len(settings.Search.Synonyms))
	for term := range settings.Search.Synonyms {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	cmd.Printf("  Synonyms: %d term(s)\n", len(terms))
	for _, term := range terms {
		cmd.Printf("    %s: %s\n", term, mutedStyle.Render(strings.Join(settings.Search.Synonyms[term], ", ")))
	}
	cmd.Println()

	cmd.Println("[Monitor]")
	cmd.Printf("  Interval: %s\n", settings.Monitor.Interval)
	cmd.Printf("  Recency window: %s\n", settings.Monitor.RecencyWindow)
	cmd.Printf("  Filesystem notifications: %t\n", settings.Monitor.Watch)

	if err := a.Settings.Validate(); err != nil {
		cmd.Println()
		cmd.Println(warningStyle.Render("Warning: " + err.Error()))
	}
	return nil
}

func runSettingsMode(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	mode := domain.SearchMode(args[0])
	if !mode.IsValid() {
		return invalidModeError(mode)
	}
	if err := a.Settings.SetSearchMode(mode); err != nil {
		return fmt.Errorf("set search mode: %w", err)
	}
	cmd.Printf("Search mode set to: %s\n", mode.Description())
	return nil
}
