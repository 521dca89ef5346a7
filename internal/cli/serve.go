package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ppiankov/flowspectre/internal/aggregator"
	"github.com/ppiankov/flowspectre/internal/api"
	"github.com/ppiankov/flowspectre/internal/jobs"
	"github.com/ppiankov/flowspectre/internal/models"
	"github.com/ppiankov/flowspectre/internal/runner"
	"github.com/ppiankov/flowspectre/internal/storage"
	"github.com/spf13/cobra"
)

var (
	serveAddr      string
	serveRateLimit int
	serveNoStore   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis HTTP API",
	Long: `Serve exposes analysis jobs over HTTP:

  POST   /v1/jobs              submit a codebase (JSON file list)
  GET    /v1/jobs              list jobs
  GET    /v1/jobs/{id}         job snapshot with logs and result
  GET    /v1/jobs/{id}/events  server-sent event stream
  POST   /v1/jobs/{id}/cancel  cancel a running job
  DELETE /v1/jobs/{id}         cancel and forget a job
  GET    /v1/health            liveness and version

Finished jobs are stored like CLI runs unless --no-store is given, so
'flowspectre status' and 'flowspectre export' see them too.

Example:
  flowspectre serve --addr :8080
  flowspectre analyze ./api --server http://localhost:8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"listen address (default from config)")
	serveCmd.Flags().IntVar(&serveRateLimit, "rate-limit", -1,
		"requests per minute per client IP, 0 disables (default from config)")
	serveCmd.Flags().BoolVar(&serveNoStore, "no-store", false,
		"do not persist results or debug transcripts")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := api.ValidateModel(cfg.Model); err != nil {
		return &ValidationError{Message: fmt.Sprintf("default model: %v", err)}
	}

	opts := api.OptionsFromConfig(cfg)
	opts.Version = Version
	opts.Logger = logger
	if serveAddr != "" {
		opts.Addr = serveAddr
	}
	if serveRateLimit >= 0 {
		opts.RateLimit = serveRateLimit
	}

	runOpts := runner.OptionsFromConfig(cfg)
	runOpts.Logger = logger
	if !serveNoStore {
		st, err := openStorage()
		if err != nil {
			return err
		}
		runOpts.Results = &trendingSaver{st: st}
		if cfg.SaveTranscripts {
			runOpts.Artifacts = st
		}
		logVerbose("Storing results in: %s", st.GetStoragePath())
	}
	r := runner.New(newGateway(cfg, logger), runOpts)

	store := jobs.NewStore(jobs.WithLogger(logger))
	srv := api.NewServer(store, r, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting server", "addr", opts.Addr, "model", cfg.Model, "version", Version)
	return srv.Run(ctx)
}

// trendingSaver attaches the trend against the latest stored run before
// storing a result, so server jobs carry the same trend as CLI runs.
type trendingSaver struct {
	st *storage.LocalStorage
}

func (s *trendingSaver) SaveResult(result *models.AnalysisResult) (string, error) {
	if previous, err := s.st.GetLatestRun(); err == nil {
		aggregator.NewTrendAnalyzer().AddTrend(result, previous)
	}
	return s.st.SaveResult(result)
}
