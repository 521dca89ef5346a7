package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/ppiankov/flowspectre/internal/codebase"
	"github.com/ppiankov/flowspectre/internal/config"
	"github.com/ppiankov/flowspectre/internal/jobs"
	"github.com/ppiankov/flowspectre/internal/models"
	"github.com/ppiankov/flowspectre/internal/runner"
)

// SourceAPI marks jobs submitted over HTTP.
const SourceAPI = "api"

// Starter launches a job run in the background.
type Starter interface {
	Start(store runner.JobStore, in runner.JobInput) <-chan struct{}
}

// Options configures a Server.
type Options struct {
	Addr            string
	DefaultModel    string
	Version         string
	Limits          codebase.Limits
	JobTTL          time.Duration
	CleanupInterval time.Duration
	RateLimit       int
	BodyLimit       int64
	ShutdownTimeout time.Duration
	Heartbeat       time.Duration
	Logger          hclog.Logger
}

// OptionsFromConfig maps server settings from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Addr:            cfg.ServerAddr,
		DefaultModel:    cfg.Model,
		Limits:          codebase.Limits{MaxFileSize: cfg.MaxFileSize, MaxTotalSize: cfg.MaxTotalSize},
		JobTTL:          cfg.JobTTL,
		CleanupInterval: cfg.CleanupInterval,
		RateLimit:       cfg.RateLimit,
	}
}

// Server exposes the job store over HTTP.
type Server struct {
	store  *jobs.Store
	runner Starter
	opts   Options
	logger hclog.Logger
}

// NewServer creates a server. Zero option values fall back to defaults.
func NewServer(store *jobs.Store, r Starter, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 15 * time.Second
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = DefaultRequestBodyLimitBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Server{
		store:  store,
		runner: r,
		opts:   opts,
		logger: logger.Named("api"),
	}
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("POST /v1/jobs", s.handleCreateJob)
	mux.HandleFunc("GET /v1/jobs", s.handleListJobs)
	mux.HandleFunc("GET /v1/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("DELETE /v1/jobs/{id}", s.handleDeleteJob)
	mux.HandleFunc("GET /v1/jobs/{id}/events", s.handleEvents)
	mux.HandleFunc("POST /v1/jobs/{id}/cancel", s.handleCancelJob)

	var h http.Handler = mux
	h = BodySizeLimit(s.opts.BodyLimit)(h)
	h = LimitSubmissions(s.opts.RateLimit, DefaultRateLimitWindow)(h)
	h = RequestLogger(s.logger)(h)
	h = SecurityHeaders(h)
	return h
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then cancels running jobs, closes
// event streams and shuts down gracefully. The janitor sweeps expired jobs
// while the server runs.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	if s.opts.CleanupInterval > 0 && s.opts.JobTTL > 0 {
		janitorCtx, stopJanitor := context.WithCancel(ctx)
		defer stopJanitor()
		go s.store.RunJanitor(janitorCtx, s.opts.CleanupInterval, s.opts.JobTTL)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	if n := s.cancelRunning(); n > 0 {
		s.logger.Info("cancelled running jobs", "count", n)
	}
	cancelBase()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) cancelRunning() int {
	n := 0
	for _, snap := range s.store.List() {
		if !snap.Status.IsTerminal() && s.store.Cancel(snap.ID) {
			n++
		}
	}
	return n
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": s.opts.Version,
		"jobs":    len(s.store.List()),
	})
}

type createJobResponse struct {
	ID     string           `json:"id"`
	Status models.JobStatus `json:"status"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	if err := ValidateJobRequest(req, s.opts.Limits); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	model := req.Model
	if model == "" {
		model = s.opts.DefaultModel
	}
	if err := ValidateModel(model); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var framework models.FrameworkInfo
	if req.Framework != "" {
		framework = models.FrameworkInfo{Name: req.Framework, Confidence: 1}
	}

	job := s.store.Create(jobs.CreateOptions{Model: model, Source: SourceAPI})
	s.runner.Start(s.store, runner.JobInput{
		JobID:     job.ID(),
		Model:     model,
		Framework: framework,
		Set:       codebase.NewSet(toFileEntries(req.Files)),
		Source:    SourceAPI,
	})
	s.logger.Info("job submitted", "job", job.ID(), "model", model, "files", len(req.Files))

	writeJSON(w, http.StatusAccepted, createJobResponse{ID: job.ID(), Status: models.JobPending})
}

type jobSummary struct {
	ID          string           `json:"id"`
	Status      models.JobStatus `json:"status"`
	Model       string           `json:"model,omitempty"`
	Progress    models.Progress  `json:"progress"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	snaps := s.store.List()
	out := make([]jobSummary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, jobSummary{
			ID:          snap.ID,
			Status:      snap.Status,
			Model:       snap.Model,
			Progress:    snap.Progress,
			CreatedAt:   snap.CreatedAt,
			CompletedAt: snap.CompletedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": out})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if !s.store.Delete(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.store.Get(id); !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	cancelled := s.store.Cancel(id)
	snap, _ := s.store.Get(id)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cancelled": cancelled,
		"status":    snap.Status,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
