package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/ppiankov/flowspectre/internal/codebase"
	"github.com/ppiankov/flowspectre/internal/conversation"
	"github.com/ppiankov/flowspectre/internal/llm"
	"github.com/ppiankov/flowspectre/internal/models"
	"github.com/ppiankov/flowspectre/internal/parser"
)

// Stage is the observer stage name of this agent.
const Stage = "discovery"

// Reasons the discovery loop stopped
const (
	StopNotFound  = "not_found"
	StopMaxTraces = "max_traces"
	StopFailures  = "consecutive_failures"
	StopEmpty     = "empty_codebase"
)

// Config bounds the discovery loop.
type Config struct {
	Model                  string
	MaxDepth               int
	MaxRetries             int
	MaxTraces              int // 0 means no cap
	MaxConsecutiveFailures int
	TreeDepth              int
}

// DefaultConfig returns the default budgets.
func DefaultConfig(model string) Config {
	return Config{
		Model:                  model,
		MaxDepth:               20,
		MaxRetries:             3,
		MaxTraces:              0,
		MaxConsecutiveFailures: 3,
		TreeDepth:              4,
	}
}

// Result is the output of a discovery run.
type Result struct {
	Endpoints   []models.EndpointProfile    `json:"endpoints"`
	Transcripts []*conversation.Transcript `json:"transcripts"`
	Attempts    int                         `json:"attempts"`
	Failed      int                         `json:"failed"`
	StopReason  string                      `json:"stop_reason"`
}

// Agent discovers endpoints by letting the model explore the codebase.
type Agent struct {
	gateway  llm.Gateway
	cfg      Config
	observer conversation.Observer
	logger   hclog.Logger
}

// New creates a discovery agent.
func New(gw llm.Gateway, cfg Config, obs conversation.Observer, logger hclog.Logger) *Agent {
	if obs == nil {
		obs = conversation.NopObserver{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Agent{gateway: gw, cfg: cfg, observer: obs, logger: logger.Named(Stage)}
}

// Discover repeats single-endpoint traces until the model reports that no
// endpoint remains. Only cancellation is returned as an error; failed traces
// are dropped.
func (a *Agent) Discover(ctx context.Context, set *codebase.Set) (*Result, error) {
	res := &Result{}
	if set == nil || set.Len() == 0 {
		a.observer.Log(models.LevelWarn, "[discovery] codebase is empty, nothing to explore")
		res.StopReason = StopEmpty
		return res, nil
	}

	tree := set.Tree(a.cfg.TreeDepth)
	seen := make(map[string]int)
	failures := 0

	for {
		if ctx.Err() != nil {
			return res, fmt.Errorf("discovery: %w", conversation.ErrCancelled)
		}
		if a.cfg.MaxTraces > 0 && res.Attempts >= a.cfg.MaxTraces {
			a.observer.Log(models.LevelWarn, fmt.Sprintf("[discovery] stopping after %d traces", res.Attempts))
			res.StopReason = StopMaxTraces
			return res, nil
		}

		res.Attempts++
		index := res.Attempts
		a.observer.UnitStarted(Stage, index, 0, fmt.Sprintf("trace %d", index))
		a.observer.Log(models.LevelInfo, fmt.Sprintf("[discovery] trace %d: looking for the next endpoint", index))

		profile, notFound, tr, err := a.trace(ctx, set, tree, res.Endpoints, index)
		if tr != nil {
			res.Transcripts = append(res.Transcripts, tr)
		}
		if err != nil {
			if conversation.IsCancelled(err) {
				a.observer.UnitFinished(Stage, index, 0, "", false)
				return res, err
			}
			res.Failed++
			failures++
			a.observer.UnitFinished(Stage, index, 0, "", false)
			a.observer.Log(models.LevelWarn, fmt.Sprintf("[discovery] trace %d dropped: %v", index, err))
			a.logger.Warn("trace dropped", "trace", index, "error", err)
			if a.cfg.MaxConsecutiveFailures > 0 && failures >= a.cfg.MaxConsecutiveFailures {
				a.observer.Log(models.LevelError, fmt.Sprintf("[discovery] giving up after %d consecutive failed traces", failures))
				res.StopReason = StopFailures
				return res, nil
			}
			continue
		}
		failures = 0

		if notFound {
			a.observer.UnitFinished(Stage, index, 0, "", true)
			a.observer.Log(models.LevelInfo, fmt.Sprintf("[discovery] no more endpoints, %d discovered", len(res.Endpoints)))
			res.StopReason = StopNotFound
			return res, nil
		}

		profile.FlowName = uniqueName(seen, profile.FlowName)
		res.Endpoints = append(res.Endpoints, *profile)
		a.observer.UnitFinished(Stage, index, 0, profile.FlowName, true)
		a.observer.Log(models.LevelSuccess, fmt.Sprintf("[discovery] endpoint %d: %s (%s)", len(res.Endpoints), profile.FlowName, profile.EntryPoint))
		a.logger.Info("endpoint discovered", "flow", profile.FlowName, "entry_point", profile.EntryPoint, "sensitivity", profile.SensitivityLevel)
	}
}

// uniqueName suffixes repeated flow names with #2, #3, ...
func uniqueName(seen map[string]int, name string) string {
	seen[name]++
	if seen[name] == 1 {
		return name
	}
	for {
		candidate := fmt.Sprintf("%s #%d", name, seen[name])
		if _, taken := seen[candidate]; !taken {
			seen[candidate] = 1
			return candidate
		}
		seen[name]++
	}
}

// trace runs one endpoint trace.
func (a *Agent) trace(ctx context.Context, set *codebase.Set, tree string, claimed []models.EndpointProfile, index int) (*models.EndpointProfile, bool, *conversation.Transcript, error) {
	t := newTracer(set)

	driver := &conversation.Driver[parser.DiscoveryResponse]{
		Gateway:      a.gateway,
		Model:        a.cfg.Model,
		Agent:        Stage,
		SystemPrompt: systemPrompt,
		MaxDepth:     a.cfg.MaxDepth,
		MaxRetries:   a.cfg.MaxRetries,
		Parse:        parser.ParseDiscovery,
		Handle:       t.handle,
		Observer:     a.observer,
		Logger:       a.logger,
	}

	resp, tr, err := driver.Run(ctx, fmt.Sprintf("trace-%d", index), initialPrompt(tree, claimed))
	if err != nil {
		return nil, false, tr, err
	}
	switch resp.Status {
	case parser.StatusNotFound:
		return nil, true, tr, nil
	case parser.StatusCompleted:
		return resp.Result, false, tr, nil
	default:
		return nil, false, tr, errors.New("trace ended without a terminal status")
	}
}
