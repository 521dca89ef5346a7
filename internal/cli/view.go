package cli

import (
	"fmt"

	"github.com/ppiankov/flowspectre/internal/tui"
	"github.com/spf13/cobra"
)

var (
	viewRun  string
	viewFile string
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Browse findings of a stored run interactively",
	Long: `View opens the interactive findings browser on the latest stored run,
a specific run (--run) or a result file (--file).

Keys: / search, f filter by flow, i issues only, s cycle sort, c copy, q quit.

When stdout is not a terminal the text report is printed instead.

Example:
  flowspectre view
  flowspectre view --run 2026-02-15T10-00-00
  flowspectre view --file result.json`,
	RunE: runView,
}

func init() {
	viewCmd.Flags().StringVar(&viewRun, "run", "",
		"stored run timestamp (default: latest)")
	viewCmd.Flags().StringVar(&viewFile, "file", "",
		"open a result file instead of a stored run")
}

func runView(cmd *cobra.Command, args []string) error {
	st, err := openStorage()
	if err != nil {
		return err
	}

	result, err := selectRun(st, viewRun, viewFile)
	if err != nil {
		if viewRun == "" && viewFile == "" {
			fmt.Fprintln(stdout, "No stored runs found. Run 'flowspectre analyze <directory>' first.")
			return nil
		}
		return err
	}

	if !isTerminal() {
		logDebug("stdout is not a terminal, printing text report")
		return generateOutput(result, "text", "")
	}

	if err := tui.Run(result, loadTrendSummary(st)); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
