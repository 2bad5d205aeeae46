package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
	Long: `API keys are shared out across parallel requests: semantic search sends
one index chunk per key and the per-key request interval is enforced.`,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured keys (masked)",
	Args:  cobra.NoArgs,
	RunE:  runKeysList,
}

var keysAddCmd = &cobra.Command{
	Use:   "add [key]",
	Short: "Add an API key",
	Long:  `Adds an API key. Without an argument the key is read from standard input without echo.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runKeysAdd,
}

var keysRemoveCmd = &cobra.Command{
	Use:   "remove <key|index>",
	Short: "Remove an API key by value or 1-based position",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysRemove,
}

var keysStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-key usage",
	Args:  cobra.NoArgs,
	RunE:  runKeysStatus,
}

func init() {
	keysCmd.AddCommand(keysListCmd, keysAddCmd, keysRemoveCmd, keysStatusCmd)
	rootCmd.AddCommand(keysCmd)
}

func runKeysList(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	keys, err := a.Settings.Keys()
	if err != nil {
		return fmt.Errorf("read api keys: %w", err)
	}
	if len(keys) == 0 {
		cmd.Println("No API keys configured.")
		return nil
	}
	for i, k := range keys {
		cmd.Printf("  %d. %s\n", i+1, maskAPIKey(k))
	}
	return nil
}

func runKeysAdd(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	var key string
	if len(args) == 1 {
		key = args[0]
	} else {
		cmd.Print("API key: ")
		key = readSecret(cmd.InOrStdin())
		cmd.Println()
	}

	if err := a.Settings.AddKey(key); err != nil {
		return fmt.Errorf("add api key: %w", err)
	}
	syncKeys(a)
	cmd.Println(successStyle.Render("Key added: " + maskAPIKey(strings.TrimSpace(key))))
	return nil
}

func runKeysRemove(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	key := args[0]
	if n, convErr := strconv.Atoi(key); convErr == nil {
		keys, err := a.Settings.Keys()
		if err != nil {
			return fmt.Errorf("read api keys: %w", err)
		}
		if n < 1 || n > len(keys) {
			return fmt.Errorf("no key at position %d: %w", n, domain.ErrNotFound)
		}
		key = keys[n-1]
	}

	if err := a.Settings.RemoveKey(key); err != nil {
		return fmt.Errorf("remove api key: %w", err)
	}
	syncKeys(a)
	cmd.Println("Key removed: " + maskAPIKey(key))
	return nil
}

func runKeysStatus(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	if a.Dispatcher == nil {
		return fmt.Errorf("keys status: %w", domain.ErrLLMUnavailable)
	}

	status := a.Dispatcher.Status()
	if len(status.Credentials) == 0 {
		cmd.Println("No API keys configured.")
		return nil
	}

	now := time.Now()
	rows := make([][]string, 0, len(status.Credentials))
	for _, u := range status.Credentials {
		rows = append(rows, []string{
			u.ID,
			formatWhen(u.LastUse, now),
			formatWait(u.NextAllowed, now),
			strconv.Itoa(u.Counts[domain.TaskKindRank]),
			strconv.Itoa(u.Counts[domain.TaskKindRelevance]),
			strconv.Itoa(u.Counts[domain.TaskKindDescribe]),
		})
	}
	cmd.Println(renderTable(
		[]string{"Key", "Last use", "Ready in", "Rank", "Yes/no", "Describe"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
	return nil
}

// syncKeys pushes a key change to the running credential set.
func syncKeys(a *App) {
	if a.KeySync == nil {
		return
	}
	if err := a.KeySync.Sync(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("reload keys: "+err.Error()))
	}
}

func formatWhen(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return now.Sub(t).Round(time.Second).String() + " ago"
}

func formatWait(t, now time.Time) string {
	if !t.After(now) {
		return "now"
	}
	return t.Sub(now).Round(100 * time.Millisecond).String()
}

// readSecret reads one line from r, without echo when r is a terminal.
//
//nolint:errcheck // CLI helper, error ignored for UX
func readSecret(r io.Reader) string {
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	line, _ := bufio.NewReader(r).ReadString('\n')
	return strings.TrimSpace(line)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
