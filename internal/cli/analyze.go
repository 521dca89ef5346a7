package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/ppiankov/flowspectre/internal/aggregator"
	"github.com/ppiankov/flowspectre/internal/api"
	"github.com/ppiankov/flowspectre/internal/apiclient"
	"github.com/ppiankov/flowspectre/internal/codebase"
	"github.com/ppiankov/flowspectre/internal/config"
	"github.com/ppiankov/flowspectre/internal/conversation"
	"github.com/ppiankov/flowspectre/internal/jobs"
	"github.com/ppiankov/flowspectre/internal/llm"
	"github.com/ppiankov/flowspectre/internal/models"
	"github.com/ppiankov/flowspectre/internal/reporter"
	"github.com/ppiankov/flowspectre/internal/runner"
	"github.com/ppiankov/flowspectre/internal/storage"
	"github.com/ppiankov/flowspectre/internal/tui"
	"github.com/spf13/cobra"
)

// SourceCLI marks jobs started by `flowspectre analyze`.
const SourceCLI = "cli"

var (
	analyzeModel     string
	analyzeFramework string
	analyzeFormat    string
	analyzeOutput    string
	analyzeNoStore   bool
	analyzeServer    string
	analyzePolicy    string
	analyzeTUI       bool
	analyzeQuiet     bool
)

// newGateway builds the model gateway. Tests replace it with a scripted one.
var newGateway = func(cfg *config.Config, logger hclog.Logger) llm.Gateway {
	return llm.NewGateway(cfg, logger)
}

// progressOut receives the live job log.
var progressOut io.Writer = os.Stderr

var analyzeCmd = &cobra.Command{
	Use:   "analyze [directory]",
	Short: "Analyze a codebase's security posture",
	Long: `Analyze runs a full job over the text files under a directory:

  1. Load      - read source files (binary and oversized files are skipped)
  2. Discover  - find endpoints and trace their code flows
  3. Checklist - derive required and recommended controls per endpoint
  4. Inspect   - compare the code against each checklist
  5. Report    - store the result, print it, and evaluate the policy file

The job log streams to stderr while the agents work. Press Ctrl-C to cancel.
With --server the job runs on a remote 'flowspectre serve' instead.

Example:
  flowspectre analyze ./api
  flowspectre analyze . --model gpt-4o --format sarif -o results.sarif
  flowspectre analyze . --server http://scanner:8080 --tui`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeModel, "model", "m", "",
		"model identifier (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeFramework, "framework", "",
		"skip framework detection and use this name")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "",
		"output format: text, json, sarif, or csv (default from config)")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "",
		"write output to file")
	analyzeCmd.Flags().BoolVar(&analyzeNoStore, "no-store", false,
		"do not persist the result or debug transcripts")
	analyzeCmd.Flags().StringVar(&analyzeServer, "server", "",
		"run the job on a remote flowspectre server (base URL)")
	analyzeCmd.Flags().StringVar(&analyzePolicy, "policy", "",
		"policy file (default: nearest .flowspectre-policy.yaml)")
	analyzeCmd.Flags().BoolVar(&analyzeTUI, "tui", false,
		"open the interactive findings browser when done")
	analyzeCmd.Flags().BoolVarP(&analyzeQuiet, "quiet", "q", false,
		"do not print the live job log")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	model := analyzeModel
	if model == "" {
		model = cfg.Model
	}
	if err := api.ValidateModel(model); err != nil {
		return &ValidationError{Message: err.Error()}
	}

	format := analyzeFormat
	if format == "" {
		format = cfg.Format
	}
	if _, err := reporter.New(format, io.Discard); err != nil {
		return &ValidationError{Message: err.Error()}
	}

	limits := codebase.Limits{MaxFileSize: cfg.MaxFileSize, MaxTotalSize: cfg.MaxTotalSize}
	set, stats, err := codebase.LoadDir(dir, limits)
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	logVerbose("Loaded %d files (%d bytes) from %s", stats.Loaded, stats.TotalBytes, dir)
	if stats.SkippedLarge > 0 || stats.SkippedBin > 0 {
		logger.Warn("files skipped", "oversized", stats.SkippedLarge, "binary", stats.SkippedBin)
	}
	if stats.Truncated {
		logger.Warn("codebase truncated", "limit_bytes", cfg.MaxTotalSize)
	}

	st, err := openStorage()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var result *models.AnalysisResult
	if analyzeServer != "" {
		result, err = analyzeRemote(ctx, set, model)
	} else {
		result, err = analyzeLocal(ctx, set, model, st)
	}
	if err != nil {
		return err
	}

	// Trend against the previous stored run, then store this one
	if previous, err := st.GetLatestRun(); err == nil {
		logVerbose("Comparing with run from %s", previous.FinishedAt.Format(time.RFC3339))
		aggregator.NewTrendAnalyzer().AddTrend(result, previous)
	} else {
		logDebug("No previous run found: %v", err)
	}

	if !analyzeNoStore {
		if err := st.EnsureDirectoryExists(); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
		path, err := st.SaveResult(result)
		if err != nil {
			return fmt.Errorf("failed to store result: %w", err)
		}
		logVerbose("Stored result in: %s", path)
	}

	if analyzeTUI && isTerminal() {
		if err := tui.Run(result, loadTrendSummary(st)); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
	} else if err := generateOutput(result, format, analyzeOutput); err != nil {
		return err
	}

	return enforcePolicy(result, dir, analyzePolicy)
}

// analyzeLocal runs the job in-process, streaming its log to progressOut.
func analyzeLocal(ctx context.Context, set *codebase.Set, model string, st *storage.LocalStorage) (*models.AnalysisResult, error) {
	opts := runner.OptionsFromConfig(cfg)
	opts.Logger = logger
	if cfg.SaveTranscripts && !analyzeNoStore {
		opts.Artifacts = st
	}
	r := runner.New(newGateway(cfg, logger), opts)

	store := jobs.NewStore(jobs.WithLogger(logger))
	job := store.Create(jobs.CreateOptions{Model: model, Source: SourceCLI})
	if !analyzeQuiet {
		unsubscribe, err := store.Subscribe(job.ID(), printEvent(progressOut))
		if err == nil {
			defer unsubscribe()
		}
	}

	in := runner.JobInput{
		JobID:  job.ID(),
		Model:  model,
		Set:    set,
		Source: SourceCLI,
	}
	if analyzeFramework != "" {
		in.Framework = models.FrameworkInfo{Name: analyzeFramework, Confidence: 1}
	}

	result, err := r.Run(ctx, in, store)
	if err != nil {
		if conversation.IsCancelled(err) {
			return nil, errors.New("analysis cancelled")
		}
		if errors.Is(err, runner.ErrNoGateway) {
			return nil, &ValidationError{Message: err.Error()}
		}
		return nil, fmt.Errorf("analysis failed: %w", err)
	}
	return result, nil
}

// analyzeRemote uploads the codebase to a server and follows the job's event stream.
func analyzeRemote(ctx context.Context, set *codebase.Set, model string) (*models.AnalysisResult, error) {
	client := apiclient.New(analyzeServer, logger)

	req := api.JobRequest{Model: model, Framework: analyzeFramework}
	for _, f := range set.Files() {
		req.Files = append(req.Files, api.FileInput{Path: f.Path, Content: f.Content})
	}

	submitted, err := client.SubmitJob(ctx, req)
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			return nil, &ValidationError{Message: apiErr.Error()}
		}
		return nil, err
	}
	logVerbose("Submitted job %s to %s", submitted.ID, analyzeServer)

	var result *models.AnalysisResult
	var failure string
	printLog := printEvent(progressOut)
	err = client.StreamEvents(ctx, submitted.ID, func(ev apiclient.Event) error {
		switch ev.Type {
		case models.EventLog:
			entry, err := ev.Log()
			if err != nil {
				return err
			}
			if !analyzeQuiet {
				printLog(models.Event{Type: ev.Type, Timestamp: ev.Timestamp, Data: entry})
			}
		case models.EventResult:
			r, err := ev.Result()
			if err != nil {
				return err
			}
			result = r
		case models.EventError:
			data, err := ev.Failure()
			if err != nil {
				return err
			}
			failure = data.Message
		}
		return nil
	})

	if ctx.Err() != nil {
		// the local context is done, so cancel with a fresh one
		cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, cerr := client.CancelJob(cancelCtx, submitted.ID); cerr != nil {
			logError("Failed to cancel remote job %s: %v", submitted.ID, cerr)
		}
		return nil, errors.New("analysis cancelled")
	}
	if err != nil {
		return nil, fmt.Errorf("event stream failed: %w", err)
	}

	if result != nil {
		return result, nil
	}

	// The stream may close early; the snapshot holds the outcome
	snap, err := client.GetJob(ctx, submitted.ID)
	if err != nil {
		return nil, err
	}
	switch {
	case snap.Result != nil:
		return snap.Result, nil
	case snap.Status == models.JobCancelled:
		return nil, errors.New("analysis cancelled on the server")
	case failure != "":
		return nil, fmt.Errorf("analysis failed: %s", failure)
	case snap.Error != "":
		return nil, fmt.Errorf("analysis failed: %s", snap.Error)
	default:
		return nil, fmt.Errorf("job %s ended as %s without a result", snap.ID, snap.Status)
	}
}

// printEvent renders job log events as lines on w.
func printEvent(w io.Writer) func(models.Event) {
	return func(ev models.Event) {
		if ev.Type != models.EventLog {
			return
		}
		entry, ok := ev.Data.(models.LogEntry)
		if !ok {
			return
		}
		fmt.Fprintf(w, "%s %-7s %s\n", entry.Timestamp.Format("15:04:05"), entry.Level, entry.Message)
	}
}

// loadTrendSummary builds the sparkline history for the TUI header.
func loadTrendSummary(st *storage.LocalStorage) *models.TrendSummary {
	runs, err := st.GetLastNRuns(statusDefaultRuns)
	if err != nil || len(runs) == 0 {
		return nil
	}
	return aggregator.NewTrendAnalyzer().AnalyzeLastNRuns(runs)
}
