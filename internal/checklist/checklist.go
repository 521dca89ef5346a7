package checklist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/ppiankov/flowspectre/internal/conversation"
	"github.com/ppiankov/flowspectre/internal/llm"
	"github.com/ppiankov/flowspectre/internal/models"
	"github.com/ppiankov/flowspectre/internal/parser"
)

// Stage is the observer stage name of this agent.
const Stage = "checklist"

// Config bounds checklist generation.
type Config struct {
	Model      string
	MaxRetries int
	// MaxControls caps controls per checklist; 0 disables the cap.
	MaxControls int
}

// Result holds every generated checklist in endpoint order.
type Result struct {
	Checklists  []models.SecurityChecklist `json:"checklists"`
	Transcripts []*conversation.Transcript `json:"transcripts"`
	Failed      int                        `json:"failed"`
	Truncated   int                        `json:"truncated"`
}

// Agent turns endpoint profiles into security checklists.
type Agent struct {
	gateway  llm.Gateway
	cfg      Config
	observer conversation.Observer
	logger   hclog.Logger
}

// New creates a checklist agent.
func New(gw llm.Gateway, cfg Config, obs conversation.Observer, logger hclog.Logger) *Agent {
	if obs == nil {
		obs = conversation.NopObserver{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Agent{gateway: gw, cfg: cfg, observer: obs, logger: logger.Named(Stage)}
}

// parseChecklist treats an "error" status as an unusable reply so that it
// consumes retry budget.
func parseChecklist(text string) (parser.ChecklistResponse, error) {
	resp, err := parser.ParseChecklist(text)
	if err != nil {
		return resp, err
	}
	if resp.Status == parser.StatusError {
		return resp, &parser.Error{Field: "status", Reason: "model reported an error: " + resp.Message}
	}
	return resp, nil
}

// Generate builds one checklist per endpoint, sequentially. Endpoints whose
// unit fails are skipped. Only cancellation is returned as an error.
func (a *Agent) Generate(ctx context.Context, endpoints []models.EndpointProfile, framework models.FrameworkInfo, tree string) (*Result, error) {
	res := &Result{}
	total := len(endpoints)

	for i, ep := range endpoints {
		if ctx.Err() != nil {
			return res, fmt.Errorf("checklist: %w", conversation.ErrCancelled)
		}
		index := i + 1
		a.observer.UnitStarted(Stage, index, total, ep.FlowName)
		a.observer.Log(models.LevelInfo, fmt.Sprintf("[checklist] [%d/%d] Analyzing: %s", index, total, ep.FlowName))

		prompt, err := buildPrompt(ep.Flow(), framework, tree)
		if err != nil {
			return res, err
		}

		driver := &conversation.Driver[parser.ChecklistResponse]{
			Gateway:      a.gateway,
			Model:        a.cfg.Model,
			Agent:        Stage,
			SystemPrompt: systemPrompt,
			MaxDepth:     1,
			MaxRetries:   a.cfg.MaxRetries,
			Parse:        parseChecklist,
			Handle: func(ctx context.Context, st conversation.State, resp parser.ChecklistResponse) (conversation.Step, error) {
				return conversation.Step{Done: true}, nil
			},
			Observer: a.observer,
			Logger:   a.logger,
		}

		resp, tr, err := driver.Run(ctx, ep.FlowName, prompt)
		if tr != nil {
			res.Transcripts = append(res.Transcripts, tr)
		}
		if err != nil {
			a.observer.UnitFinished(Stage, index, total, ep.FlowName, false)
			if conversation.IsCancelled(err) {
				return res, err
			}
			res.Failed++
			a.observer.Log(models.LevelWarn, fmt.Sprintf("[checklist] [%d/%d] skipped %s: %v", index, total, ep.FlowName, err))
			a.logger.Warn("checklist dropped", "flow", ep.FlowName, "error", err)
			continue
		}

		cl := *resp.Result
		if cl.FlowName != ep.FlowName {
			a.logger.Debug("overwriting model flow name", "got", cl.FlowName, "want", ep.FlowName)
		}
		cl.FlowName = ep.FlowName

		if dropped := Truncate(&cl, a.cfg.MaxControls); dropped > 0 {
			res.Truncated++
			a.observer.Log(models.LevelWarn, fmt.Sprintf("[checklist] %s: dropped %d controls over the limit of %d", ep.FlowName, dropped, a.cfg.MaxControls))
		}

		res.Checklists = append(res.Checklists, cl)
		a.observer.UnitFinished(Stage, index, total, ep.FlowName, true)
		a.observer.Log(models.LevelSuccess, fmt.Sprintf("[checklist] [%d/%d] %s: %d required, %d recommended controls",
			index, total, ep.FlowName, len(cl.RequiredControls), len(cl.RecommendedControls)))
	}
	return res, nil
}

// Truncate enforces max controls per checklist, dropping recommended controls
// before required ones. It returns the number of dropped controls.
func Truncate(cl *models.SecurityChecklist, limit int) int {
	if limit <= 0 {
		return 0
	}
	total := len(cl.RequiredControls) + len(cl.RecommendedControls)
	if total <= limit {
		return 0
	}
	if len(cl.RequiredControls) >= limit {
		cl.RequiredControls = cl.RequiredControls[:limit]
		cl.RecommendedControls = nil
	} else {
		cl.RecommendedControls = cl.RecommendedControls[:limit-len(cl.RequiredControls)]
	}
	return total - limit
}

func buildPrompt(flow models.FlowProfile, framework models.FrameworkInfo, tree string) (string, error) {
	data, err := json.MarshalIndent(flow, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode flow profile: %w", err)
	}
	var b strings.Builder
	b.WriteString("Endpoint profile:\n```json\n")
	b.Write(data)
	b.WriteString("\n```\n\n")
	fmt.Fprintf(&b, "Detected framework: %s (confidence %.2f)\n\n", framework.Name, framework.Confidence)
	b.WriteString("Project tree:\n```\n")
	b.WriteString(tree)
	b.WriteString("\n```\n\nProduce the security checklist for this endpoint.")
	return b.String(), nil
}

const systemPrompt = `You are an application security architect.
Given one API endpoint profile, derive the security controls this endpoint must have.
Scale strictness with the sensitivity level and account for what the framework provides by default.
Use at most 10 controls in total, and prefer required controls over recommended ones.

Reply with exactly one JSON object:
{"status":"completed","result":{"flow_name":"<as given>","required_controls":[{"control_id":"AUTH-01","name":"...","description":"...","category":"authentication|authorization|input_validation|output_encoding|cryptography|session_management|error_handling|logging_monitoring|data_protection|rate_limiting|configuration|dependency_management","importance":"critical|high|medium|low","owasp_mapping":["A01:2021"]}],"recommended_controls":[],"references":[{"title":"...","url":"..."}]}}
or, if the profile cannot be analyzed:
{"status":"error","message":"..."}`
