package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/takahacomore/VPP-Video-Preview-Processor/internal/core/domain"
)

var describeDryRun bool

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Describe frames that have no description yet",
	Long: `Sends every frame without a description file to the vision model and
writes the reply next to the frame as <name>_pixtral.json. Descriptions are
included in the index on the next rebuild.`,
	Args: cobra.NoArgs,
	RunE: runDescribe,
}

func init() {
	describeCmd.Flags().BoolVar(&describeDryRun, "dry-run", false, "list pending frames without calling the API")
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	if describeDryRun {
		pending, err := a.Describer.Pending(ctx)
		if err != nil {
			return fmt.Errorf("list pending frames: %w", err)
		}
		if len(pending) == 0 {
			cmd.Println("Every frame has a description.")
			return nil
		}
		cmd.Println(title(fmt.Sprintf("%d frame(s) pending", len(pending))))
		for _, p := range pending {
			cmd.Printf("  %s\n", p)
		}
		return nil
	}

	keys, err := a.Settings.Keys()
	if err != nil {
		return fmt.Errorf("read api keys: %w", err)
	}
	if len(keys) == 0 {
		return fmt.Errorf("describe: add an API key with 'vpp keys add': %w", domain.ErrNoCredentials)
	}

	if a.Dispatcher != nil {
		a.Dispatcher.Start(0)
		defer a.Dispatcher.Stop()
	}

	report, err := a.Describer.DescribeAll(ctx)
	if err != nil {
		return fmt.Errorf("describe: %w", err)
	}

	if report.Pending == 0 {
		cmd.Println("Every frame has a description.")
		return nil
	}
	cmd.Println(successStyle.Render(fmt.Sprintf("Described %d of %d frame(s)", report.Described, report.Pending)))
	if report.Failed > 0 {
		cmd.Println(warningStyle.Render(fmt.Sprintf("%d frame(s) failed; they will be retried next run", report.Failed)))
	}
	return nil
}
