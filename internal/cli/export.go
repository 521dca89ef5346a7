package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ppiankov/flowspectre/internal/models"
	"github.com/ppiankov/flowspectre/internal/reporter"
	"github.com/spf13/cobra"
)

var (
	exportFormat     string
	exportOutput     string
	exportRun        string
	exportFile       string
	exportLastN      int
	exportIssuesOnly bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a stored analysis for code scanning or compliance",
	Long: `Export writes a stored analysis result in a machine-readable format.

Supported formats:
  sarif  SARIF 2.1.0 for GitHub Advanced Security and code scanning
  csv    One row per finding for spreadsheets and compliance tools
  json   The full result; with --last N an evidence bundle of N runs
  text   The human-readable report

By default the latest stored run is exported.

Example:
  flowspectre export --format sarif -o results.sarif
  flowspectre export --format csv --issues-only -o findings.csv
  flowspectre export --format json --last 30 -o evidence.json
  flowspectre export --run 2026-02-15T10-00-00 --format text`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "sarif",
		"output format: sarif, csv, json, or text")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"write output to file (default: stdout)")
	exportCmd.Flags().StringVar(&exportRun, "run", "",
		"stored run timestamp (default: latest)")
	exportCmd.Flags().StringVar(&exportFile, "file", "",
		"export a result file instead of a stored run")
	exportCmd.Flags().IntVarP(&exportLastN, "last", "n", 1,
		"number of recent runs to bundle (json only)")
	exportCmd.Flags().BoolVar(&exportIssuesOnly, "issues-only", false,
		"only vulnerabilities and missing controls (csv only)")
}

// EvidenceBundle is the multi-run JSON export.
type EvidenceBundle struct {
	ExportedAt time.Time                `json:"exported_at"`
	RunCount   int                      `json:"run_count"`
	Runs       []*models.AnalysisResult `json:"runs"`
}

func runExport(cmd *cobra.Command, args []string) error {
	switch exportFormat {
	case reporter.FormatSARIF, reporter.FormatCSV, reporter.FormatJSON, reporter.FormatText:
	default:
		return &ValidationError{Message: fmt.Sprintf("unsupported format: %s (use sarif, csv, json, or text)", exportFormat)}
	}
	if exportLastN < 1 {
		return &ValidationError{Message: "--last must be at least 1"}
	}
	if exportLastN > 1 && exportFormat != reporter.FormatJSON {
		return &ValidationError{Message: "--last is only supported with --format json"}
	}

	st, err := openStorage()
	if err != nil {
		return err
	}

	var writer io.Writer = stdout
	open := func() error {
		if exportOutput == "" {
			return nil
		}
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		writer = f
		return nil
	}
	closeOutput := func() {
		if f, ok := writer.(*os.File); ok && exportOutput != "" {
			_ = f.Close()
		}
	}

	if exportLastN > 1 {
		runs, err := st.GetLastNRuns(exportLastN)
		if err != nil || len(runs) == 0 {
			fmt.Fprintln(stdout, "No stored runs found. Run 'flowspectre analyze <directory>' first.")
			return nil
		}
		logVerbose("Exporting %d runs", len(runs))
		if err := open(); err != nil {
			return err
		}
		defer closeOutput()
		return writeEvidenceBundle(writer, runs, time.Now().UTC())
	}

	result, err := selectRun(st, exportRun, exportFile)
	if err != nil {
		if exportRun == "" && exportFile == "" {
			fmt.Fprintln(stdout, "No stored runs found. Run 'flowspectre analyze <directory>' first.")
			return nil
		}
		return err
	}

	var rep reporter.Reporter
	if err := open(); err != nil {
		return err
	}
	defer closeOutput()

	if exportFormat == reporter.FormatCSV {
		rep = reporter.NewCSVReporter(writer, exportIssuesOnly)
	} else if rep, err = reporter.New(exportFormat, writer); err != nil {
		return err
	}
	logVerbose("Exporting job %s as %s", result.JobID, exportFormat)
	return rep.Generate(result)
}

func writeEvidenceBundle(w io.Writer, runs []*models.AnalysisResult, now time.Time) error {
	bundle := EvidenceBundle{
		ExportedAt: now,
		RunCount:   len(runs),
		Runs:       runs,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(bundle)
}
