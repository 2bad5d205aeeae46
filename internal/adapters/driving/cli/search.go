package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/analysis"
	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

var (
	searchMode   string
	searchLimit  int
	searchOffset int
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed frames",
	Long: `Searches the frame index.

Modes:
  keyword  - exact, prefix and fuzzy matching against frame text (default)
  semantic - the text model picks matching frames, one index chunk per API key
  filter   - the vision model answers yes/no for each keyword match
  smart    - semantic ranking, then the yes/no filter

An empty query lists every indexed frame.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", "", "search mode (default from settings)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "maximum number of results (0 = all)")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "number of results to skip")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	query := strings.TrimSpace(strings.Join(args, " "))

	mode := domain.SearchMode(searchMode)
	if searchMode == "" {
		settings, err := a.Settings.Get()
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}
		mode = settings.Search.Mode
	}
	if !mode.IsValid() {
		return invalidModeError(mode)
	}

	if err := a.Index.EnsureLoaded(ctx); err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	if mode.RequiresLLM() {
		if keys, err := a.Settings.Keys(); err == nil && len(keys) == 0 {
			cmd.PrintErrln(warningStyle.Render("No API keys configured; add one with 'vpp keys add'."))
		}
	}
	if mode.RequiresLLM() && a.Dispatcher != nil {
		a.Dispatcher.Start(0)
		defer a.Dispatcher.Stop()
	}

	results, err := a.Search.Search(ctx, query, domain.SearchOptions{
		Mode:   mode,
		Limit:  searchLimit,
		Offset: searchOffset,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	outputSearchList(cmd, mode, results)
	return nil
}

type searchResultJSON struct {
	Path  string `json:"path"`
	Text  string `json:"text"`
	Score int    `json:"score,omitempty"`
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	out := make([]searchResultJSON, len(results))
	for i, r := range results {
		out[i] = searchResultJSON{Path: r.Path, Text: r.Text, Score: r.Score}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchList(cmd *cobra.Command, mode domain.SearchMode, results []domain.SearchResult) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println(title(fmt.Sprintf("Results (%s)", mode)))
	cmd.Println()
	for i, r := range results {
		if mode == domain.SearchModeKeyword && r.Score > 0 {
			cmd.Printf("  [%d] %s %s\n", i+1, r.Path, mutedStyle.Render(fmt.Sprintf("(%d)", r.Score)))
		} else {
			cmd.Printf("  [%d] %s\n", i+1, r.Path)
		}
		if r.Text != "" {
			cmd.Printf("      %s\n", mutedStyle.Render(r.Text))
		}
	}
}

// invalidModeError reports an unknown search mode, naming the closest valid
// mode when the input looks like a typo.
func invalidModeError(mode domain.SearchMode) error {
	modes := domain.AllSearchModes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = m.String()
	}
	if hint := analysis.Suggest(mode.String(), names, 2); hint != "" {
		return fmt.Errorf("unknown search mode %q (did you mean %q?): %w", mode, hint, domain.ErrInvalidInput)
	}
	return fmt.Errorf("unknown search mode %q, expected one of %s: %w",
		mode, strings.Join(names, ", "), domain.ErrInvalidInput)
}
