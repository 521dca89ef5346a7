package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/flowspectre/internal/aggregator"
	"github.com/ppiankov/flowspectre/internal/config"
	"github.com/ppiankov/flowspectre/internal/llm"
	"github.com/ppiankov/flowspectre/internal/models"
	"github.com/spf13/cobra"
)

// statusDefaultRuns is how many stored runs status and the TUI look back over.
const statusDefaultRuns = 10

var (
	statusFormat string
	statusLastN  int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored runs, trends, and configuration",
	Long: `Status lists the most recent stored analysis runs with their posture,
shows how vulnerabilities and missing controls moved across them, and prints
the effective configuration.

Example:
  flowspectre status
  flowspectre status --last 20 --format json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "text",
		"output format: text or json")
	statusCmd.Flags().IntVarP(&statusLastN, "last", "n", statusDefaultRuns,
		"number of recent runs to show")
}

type statusResult struct {
	Config     statusConfig         `json:"config"`
	ConfigFile string               `json:"config_file"`
	Runs       []statusRun          `json:"runs"`
	Trend      *models.TrendSummary `json:"trend,omitempty"`
	Latest     *models.Trend        `json:"latest_trend,omitempty"`
}

type statusConfig struct {
	Model      string `json:"model"`
	Backend    string `json:"backend"`
	HasKey     bool   `json:"has_api_key"`
	StorageDir string `json:"storage_dir"`
	Format     string `json:"format"`
	MaxControl int    `json:"max_controls"`
}

type statusRun struct {
	FinishedAt      time.Time `json:"finished_at"`
	JobID           string    `json:"job_id"`
	Model           string    `json:"model"`
	Framework       string    `json:"framework"`
	Endpoints       int       `json:"endpoints"`
	Vulnerabilities int       `json:"vulnerabilities"`
	Missing         int       `json:"missing"`
	Posture         string    `json:"posture"`
	PostureScore    float64   `json:"posture_score"`
	OverallSeverity string    `json:"overall_severity"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	if statusFormat != "text" && statusFormat != "json" {
		return &ValidationError{Message: fmt.Sprintf("unsupported format: %s (use text or json)", statusFormat)}
	}

	result := statusResult{
		Config:     currentStatusConfig(),
		ConfigFile: configFile,
	}
	if result.ConfigFile == "" {
		result.ConfigFile = config.ConfigPath()
	}

	st, err := openStorage()
	if err != nil {
		return err
	}
	timestamps, err := st.ListRuns()
	if err != nil {
		logError("Failed to list runs: %v", err)
		return err
	}

	if len(timestamps) > 0 {
		runs, err := st.GetLastNRuns(statusLastN)
		if err != nil {
			return fmt.Errorf("failed to load runs: %w", err)
		}
		logVerbose("Loaded %d of %d stored runs", len(runs), len(timestamps))

		for _, r := range runs {
			result.Runs = append(result.Runs, toStatusRun(r))
		}

		analyzer := aggregator.NewTrendAnalyzer()
		result.Trend = analyzer.AnalyzeLastNRuns(runs)
		if len(runs) >= 2 {
			result.Latest = analyzer.CalculateTrend(runs[len(runs)-1], runs[len(runs)-2])
		}
	}

	if statusFormat == "json" {
		return writeStatusJSON(result)
	}
	return writeStatusText(result)
}

func currentStatusConfig() statusConfig {
	c := statusConfig{
		Model:      cfg.Model,
		StorageDir: cfg.StorageDir,
		Format:     cfg.Format,
		MaxControl: cfg.MaxControls,
	}
	if backend, err := llm.BackendFor(cfg.Model); err == nil {
		c.Backend = backend
		c.HasKey = cfg.APIKeyFor(backend) != ""
	}
	return c
}

func toStatusRun(r *models.AnalysisResult) statusRun {
	return statusRun{
		FinishedAt:      r.FinishedAt,
		JobID:           r.JobID,
		Model:           r.Model,
		Framework:       r.Framework.Name,
		Endpoints:       r.Summary.Endpoints,
		Vulnerabilities: r.Summary.Vulnerabilities,
		Missing:         r.Summary.Missing,
		Posture:         r.Summary.Posture,
		PostureScore:    r.Summary.PostureScore,
		OverallSeverity: r.Summary.OverallSeverity,
	}
}

func writeStatusJSON(result statusResult) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func writeStatusText(result statusResult) error {
	w := stdout

	backend := result.Config.Backend
	if backend == "" {
		backend = "unknown backend"
	}
	key := "API key missing"
	if result.Config.HasKey {
		key = "API key set"
	}
	fmt.Fprintf(w, "Model:    %s (%s, %s)\n", result.Config.Model, backend, key)
	fmt.Fprintf(w, "Storage:  %s\n", result.Config.StorageDir)
	fmt.Fprintf(w, "Config:   %s\n", result.ConfigFile)

	if len(result.Runs) == 0 {
		fmt.Fprintln(w, "\nNo stored runs found.")
		fmt.Fprintln(w, "Run 'flowspectre analyze <directory>' to produce your first result.")
		return nil
	}

	fmt.Fprintf(w, "\nRecent runs (%d):\n", len(result.Runs))
	fmt.Fprintf(w, "  %-20s %-12s %9s %6s %8s  %s\n", "FINISHED", "FRAMEWORK", "ENDPOINTS", "VULNS", "MISSING", "POSTURE")
	for i := len(result.Runs) - 1; i >= 0; i-- {
		r := result.Runs[i]
		framework := r.Framework
		if framework == "" {
			framework = "-"
		}
		fmt.Fprintf(w, "  %-20s %-12s %9d %6d %8d  %s (%.1f%%)\n",
			r.FinishedAt.Format("2006-01-02 15:04:05"), framework,
			r.Endpoints, r.Vulnerabilities, r.Missing,
			strings.ToUpper(r.Posture), r.PostureScore)
	}

	if result.Trend != nil && result.Trend.RunsAnalyzed > 1 {
		fmt.Fprintf(w, "\nTrend (%s):\n", result.Trend.TimeRange)
		fmt.Fprintf(w, "  Vulnerabilities: %s\n", joinInts(result.Trend.VulnerabilitySparkline))
		fmt.Fprintf(w, "  Missing:         %s\n", joinInts(result.Trend.MissingSparkline))
	}
	if result.Latest != nil {
		fmt.Fprintf(w, "  Latest: %s\n", aggregator.DescribeTrend(result.Latest))
	}

	return nil
}

// joinInts renders a sparkline series as "a -> b -> c".
func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, " -> ")
}
