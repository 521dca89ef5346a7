package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/ppiankov/flowspectre/internal/aggregator"
	"github.com/ppiankov/flowspectre/internal/checklist"
	"github.com/ppiankov/flowspectre/internal/codebase"
	"github.com/ppiankov/flowspectre/internal/config"
	"github.com/ppiankov/flowspectre/internal/conversation"
	"github.com/ppiankov/flowspectre/internal/discovery"
	"github.com/ppiankov/flowspectre/internal/inspection"
	"github.com/ppiankov/flowspectre/internal/llm"
	"github.com/ppiankov/flowspectre/internal/models"
	"github.com/ppiankov/flowspectre/internal/storage"
)

// Sink receives the lifecycle of one job. The job store implements it.
type Sink interface {
	AddLog(id, level, message string)
	UpdateProgress(id string, progress models.Progress)
	UpdateStatus(id string, status models.JobStatus) error
	SetResult(id string, result *models.AnalysisResult) error
	SetError(id, message string) error
}

// JobStore is a Sink that can also hold the cancel function of a running job.
type JobStore interface {
	Sink
	AttachCancel(id string, cancel context.CancelFunc) bool
}

// ResultSaver persists final results.
type ResultSaver interface {
	SaveResult(result *models.AnalysisResult) (string, error)
}

// JobInput describes one analysis job.
type JobInput struct {
	JobID     string
	Model     string
	Framework models.FrameworkInfo // detected from Set when Name is empty
	Set       *codebase.Set
	Source    string
}

// Options configures a Runner.
type Options struct {
	Discovery  discovery.Config
	Checklist  checklist.Config
	Inspection inspection.Config

	Artifacts storage.ArtifactWriter // nil disables debug artifacts
	Results   ResultSaver            // nil disables result persistence
	Logger    hclog.Logger
	Now       func() time.Time
}

// OptionsFromConfig maps configuration onto stage budgets.
func OptionsFromConfig(cfg *config.Config) Options {
	d := discovery.DefaultConfig(cfg.Model)
	d.MaxDepth = cfg.DiscoveryMaxDepth
	d.MaxRetries = cfg.DiscoveryMaxRetries
	d.MaxTraces = cfg.DiscoveryMaxTraces
	d.TreeDepth = cfg.TreeDepth

	return Options{
		Discovery:  d,
		Checklist:  checklist.Config{Model: cfg.Model, MaxRetries: cfg.ChecklistMaxRetries, MaxControls: cfg.MaxControls},
		Inspection: inspection.Config{Model: cfg.Model, MaxRetries: cfg.InspectionMaxRetries},
	}
}

// Runner executes the three agent stages of a job sequentially and reports
// logs, progress and the outcome to a Sink.
type Runner struct {
	gateway llm.Gateway
	opts    Options
	logger  hclog.Logger
	now     func() time.Time
}

// New creates a Runner.
func New(gw llm.Gateway, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		gateway: gw,
		opts:    opts,
		logger:  logger.Named("runner"),
		now:     now,
	}
}

// Start runs the job in a goroutine. The job's cancel function is attached to
// the store so cancelling the job stops the run. The returned channel is
// closed when the run has finished.
func (r *Runner) Start(store JobStore, in JobInput) <-chan struct{} {
	ctx, cancel := context.WithCancel(context.Background())
	store.AttachCancel(in.JobID, cancel)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		_, _ = r.Run(ctx, in, store)
	}()
	return done
}

// Run executes the job. On success the result is handed to the sink, which
// completes the job. Cancellation ends the job as cancelled without a result.
// Panics and unexpected errors fail the job.
func (r *Runner) Run(ctx context.Context, in JobInput, sink Sink) (result *models.AnalysisResult, err error) {
	j := &job{
		runner:   r,
		in:       in,
		sink:     sink,
		logger:   r.logger.With("job", in.JobID),
		progress: newTracker(in.JobID, sink),
	}

	defer func() {
		if rec := recover(); rec != nil {
			j.logger.Error("job panicked", "panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("internal error: %v", rec)
			result = nil
			j.fail(err)
		}
	}()

	if err := sink.UpdateStatus(in.JobID, models.JobRunning); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("runner: %w", conversation.ErrCancelled)
		}
		return nil, fmt.Errorf("failed to start job: %w", err)
	}

	result, err = j.run(ctx)
	switch {
	case err == nil:
		return result, nil
	case conversation.IsCancelled(err):
		j.cancelled()
		return nil, err
	default:
		j.fail(err)
		return nil, err
	}
}

// job holds the state of one Run call.
type job struct {
	runner   *Runner
	in       JobInput
	sink     Sink
	logger   hclog.Logger
	progress *tracker
}

func (j *job) run(ctx context.Context) (*models.AnalysisResult, error) {
	r := j.runner
	started := r.now()
	model := j.in.Model
	if model == "" {
		model = r.opts.Discovery.Model
	}
	set := j.in.Set
	if set == nil {
		set = codebase.NewSet(nil)
	}

	// init
	j.progress.enter(StageInit)
	j.log(models.LevelInfo, fmt.Sprintf("[init] %d files (%d bytes), model %s", set.Len(), set.TotalSize(), model))
	framework := j.in.Framework
	if framework.Name == "" {
		framework = codebase.DetectFramework(set)
	}
	j.log(models.LevelInfo, fmt.Sprintf("[init] framework: %s (confidence %.2f)", framework.Name, framework.Confidence))
	tree := set.Tree(r.opts.Discovery.TreeDepth)
	j.progress.complete(StageInit)

	obs := j.observer()

	// discovery
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("runner: %w", conversation.ErrCancelled)
	}
	var endpoints []models.EndpointProfile
	if set.Len() == 0 {
		j.skip(StageDiscovery, "codebase is empty")
	} else {
		if r.gateway == nil {
			return nil, ErrNoGateway
		}
		j.progress.enter(StageDiscovery)
		dcfg := r.opts.Discovery
		dcfg.Model = model
		disc, err := discovery.New(r.gateway, dcfg, obs, r.logger).Discover(ctx, set)
		if disc != nil {
			endpoints = disc.Endpoints
			j.saveArtifact(discovery.Stage, map[string]interface{}{
				"model":       model,
				"max_depth":   dcfg.MaxDepth,
				"max_retries": dcfg.MaxRetries,
				"max_traces":  dcfg.MaxTraces,
				"tree_depth":  dcfg.TreeDepth,
				"stop_reason": disc.StopReason,
				"attempts":    disc.Attempts,
				"failed":      disc.Failed,
			}, disc.Endpoints, disc.Transcripts)
		}
		if err := j.stageError(discovery.Stage, err); err != nil {
			return nil, err
		}
		j.log(models.LevelSuccess, fmt.Sprintf("[discovery] %d endpoints discovered", len(endpoints)))
		j.progress.complete(StageDiscovery)
	}

	// checklist
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("runner: %w", conversation.ErrCancelled)
	}
	var checklists []models.SecurityChecklist
	if len(endpoints) == 0 {
		j.skip(StageChecklist, "no endpoints")
	} else {
		j.progress.enter(StageChecklist)
		ccfg := r.opts.Checklist
		ccfg.Model = model
		cl, err := checklist.New(r.gateway, ccfg, obs, r.logger).Generate(ctx, endpoints, framework, tree)
		if cl != nil {
			checklists = cl.Checklists
			j.saveArtifact(checklist.Stage, map[string]interface{}{
				"model":        model,
				"max_retries":  ccfg.MaxRetries,
				"max_controls": ccfg.MaxControls,
				"framework":    framework,
				"failed":       cl.Failed,
				"truncated":    cl.Truncated,
			}, cl.Checklists, cl.Transcripts)
		}
		if err := j.stageError(checklist.Stage, err); err != nil {
			return nil, err
		}
		j.log(models.LevelSuccess, fmt.Sprintf("[checklist] %d checklists generated", len(checklists)))
		j.progress.complete(StageChecklist)
	}

	// inspection
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("runner: %w", conversation.ErrCancelled)
	}
	var reports []models.SecurityReport
	pairs := inspection.Pairs(endpoints, checklists)
	if len(pairs) == 0 {
		j.skip(StageInspection, "no checklists")
	} else {
		j.progress.enter(StageInspection)
		icfg := r.opts.Inspection
		icfg.Model = model
		ins, err := inspection.New(r.gateway, icfg, obs, r.logger).Inspect(ctx, pairs)
		if ins != nil {
			reports = ins.Reports
			j.saveArtifact(inspection.Stage, map[string]interface{}{
				"model":       model,
				"max_retries": icfg.MaxRetries,
				"failed":      ins.Failed,
			}, ins.Reports, ins.Transcripts)
		}
		if err := j.stageError(inspection.Stage, err); err != nil {
			return nil, err
		}
		j.log(models.LevelSuccess, fmt.Sprintf("[inspection] %d reports produced", len(reports)))
		j.progress.complete(StageInspection)
	}

	// finalize
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("runner: %w", conversation.ErrCancelled)
	}
	j.progress.enter(StageFinalize)
	finished := r.now()
	result := &models.AnalysisResult{
		JobID:      j.in.JobID,
		Model:      model,
		Framework:  framework,
		Endpoints:  nonNilEndpoints(endpoints),
		Checklists: nonNilChecklists(checklists),
		Reports:    nonNilReports(reports),
		StartedAt:  started,
		FinishedAt: finished,
		Elapsed:    finished.Sub(started),
	}
	aggregator.New().Aggregate(result)
	for _, w := range result.IntegrityWarnings {
		j.log(models.LevelWarn, "[finalize] integrity: "+w)
	}

	if r.opts.Results != nil {
		path, err := r.opts.Results.SaveResult(result)
		if err != nil {
			j.log(models.LevelWarn, fmt.Sprintf("[finalize] failed to save result: %v", err))
		} else {
			j.logger.Debug("result saved", "path", path)
		}
	}

	s := result.Summary
	j.log(models.LevelSuccess, fmt.Sprintf("[finalize] %d endpoints, %d vulnerabilities, %d missing controls, overall severity %s",
		s.Endpoints, s.Vulnerabilities, s.Missing, s.OverallSeverity))
	j.progress.complete(StageFinalize)

	if err := j.sink.SetResult(j.in.JobID, result); err != nil {
		j.logger.Warn("result not accepted by store", "error", err)
	}
	return result, nil
}

// stageError logs agent errors. Cancellation is returned; anything else is
// treated as a stage with the partial results the agent produced.
func (j *job) stageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	if conversation.IsCancelled(err) {
		return err
	}
	j.log(models.LevelError, fmt.Sprintf("[%s] stage failed: %v", stage, err))
	return nil
}

func (j *job) skip(stage Stage, reason string) {
	j.log(models.LevelInfo, fmt.Sprintf("[%s] skipped: %s", stage.Name, reason))
	j.progress.complete(stage)
}

func (j *job) cancelled() {
	j.log(models.LevelWarn, "[runner] job cancelled")
	if err := j.sink.UpdateStatus(j.in.JobID, models.JobCancelled); err != nil {
		j.logger.Debug("cancel status not applied", "error", err)
	}
}

func (j *job) fail(err error) {
	j.log(models.LevelError, fmt.Sprintf("[runner] job failed: %v", err))
	if serr := j.sink.SetError(j.in.JobID, err.Error()); serr != nil {
		j.logger.Warn("error not accepted by store", "error", serr)
	}
}

// log writes to the job stream and to the process log.
func (j *job) log(level, message string) {
	j.sink.AddLog(j.in.JobID, level, message)
	switch level {
	case models.LevelError:
		j.logger.Error(message)
	case models.LevelWarn:
		j.logger.Warn(message)
	case models.LevelDebug:
		j.logger.Debug(message)
	default:
		j.logger.Info(message)
	}
}

func (j *job) observer() conversation.Observer {
	return conversation.ObserverFuncs{
		OnLog: j.log,
		OnStarted: func(stage string, index, total int, name string) {
			j.progress.unitStarted(stage, index, total)
		},
		OnFinished: func(stage string, index, total int, name string, ok bool) {
			j.progress.unitFinished(stage, index, total)
		},
	}
}

func (j *job) saveArtifact(agent string, params map[string]interface{}, artifacts interface{}, transcripts []*conversation.Transcript) {
	w := j.runner.opts.Artifacts
	if w == nil {
		return
	}
	path, err := w.SaveArtifact(&storage.Artifact{
		Agent:       agent,
		JobID:       j.in.JobID,
		CreatedAt:   j.runner.now(),
		Params:      params,
		Artifacts:   artifacts,
		Transcripts: transcripts,
	})
	if err != nil {
		j.log(models.LevelWarn, fmt.Sprintf("[%s] failed to save debug artifact: %v", agent, err))
		return
	}
	j.logger.Debug("artifact saved", "agent", agent, "path", path)
}

// ErrNoGateway is returned when no model backend is configured.
var ErrNoGateway = errors.New("no model gateway configured")

func nonNilEndpoints(v []models.EndpointProfile) []models.EndpointProfile {
	if v == nil {
		return []models.EndpointProfile{}
	}
	return v
}

func nonNilChecklists(v []models.SecurityChecklist) []models.SecurityChecklist {
	if v == nil {
		return []models.SecurityChecklist{}
	}
	return v
}

func nonNilReports(v []models.SecurityReport) []models.SecurityReport {
	if v == nil {
		return []models.SecurityReport{}
	}
	return v
}
