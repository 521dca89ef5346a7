package inspection

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/ppiankov/flowspectre/internal/conversation"
	"github.com/ppiankov/flowspectre/internal/llm"
	"github.com/ppiankov/flowspectre/internal/models"
	"github.com/ppiankov/flowspectre/internal/parser"
)

// Stage is the observer stage name of this agent.
const Stage = "inspection"

// Config bounds inspection.
type Config struct {
	Model      string
	MaxRetries int
}

// Pair is one unit of inspection work.
type Pair struct {
	Endpoint  models.EndpointProfile
	Checklist models.SecurityChecklist
}

// Pairs joins endpoints with their checklists by flow name. Endpoints without
// a checklist are left out.
func Pairs(endpoints []models.EndpointProfile, checklists []models.SecurityChecklist) []Pair {
	byFlow := make(map[string]models.SecurityChecklist, len(checklists))
	for _, c := range checklists {
		byFlow[c.FlowName] = c
	}
	var pairs []Pair
	for _, ep := range endpoints {
		if cl, ok := byFlow[ep.FlowName]; ok {
			pairs = append(pairs, Pair{Endpoint: ep, Checklist: cl})
		}
	}
	return pairs
}

// Result holds every report in pair order.
type Result struct {
	Reports     []models.SecurityReport    `json:"reports"`
	Transcripts []*conversation.Transcript `json:"transcripts"`
	Failed      int                        `json:"failed"`
}

// Agent inspects traced code against a checklist.
type Agent struct {
	gateway  llm.Gateway
	cfg      Config
	observer conversation.Observer
	logger   hclog.Logger
}

// New creates an inspection agent.
func New(gw llm.Gateway, cfg Config, obs conversation.Observer, logger hclog.Logger) *Agent {
	if obs == nil {
		obs = conversation.NopObserver{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Agent{gateway: gw, cfg: cfg, observer: obs, logger: logger.Named(Stage)}
}

func parseInspection(text string) (parser.InspectionResponse, error) {
	resp, err := parser.ParseInspection(text)
	if err != nil {
		return resp, err
	}
	if resp.Status == parser.StatusError {
		return resp, &parser.Error{Field: "status", Reason: "model reported an error: " + resp.Message}
	}
	return resp, nil
}

// Inspect produces one report per pair, sequentially. Failed units are
// skipped. Only cancellation is returned as an error.
func (a *Agent) Inspect(ctx context.Context, pairs []Pair) (*Result, error) {
	res := &Result{}
	total := len(pairs)

	for i, p := range pairs {
		if ctx.Err() != nil {
			return res, fmt.Errorf("inspection: %w", conversation.ErrCancelled)
		}
		index := i + 1
		name := p.Endpoint.FlowName
		a.observer.UnitStarted(Stage, index, total, name)
		a.observer.Log(models.LevelInfo, fmt.Sprintf("[inspection] [%d/%d] Analyzing: %s", index, total, name))

		driver := &conversation.Driver[parser.InspectionResponse]{
			Gateway:      a.gateway,
			Model:        a.cfg.Model,
			Agent:        Stage,
			SystemPrompt: systemPrompt,
			MaxDepth:     1,
			MaxRetries:   a.cfg.MaxRetries,
			Parse:        parseInspection,
			Handle: func(ctx context.Context, st conversation.State, resp parser.InspectionResponse) (conversation.Step, error) {
				return conversation.Step{Done: true}, nil
			},
			Observer: a.observer,
			Logger:   a.logger,
		}

		resp, tr, err := driver.Run(ctx, name, buildPrompt(p))
		if tr != nil {
			res.Transcripts = append(res.Transcripts, tr)
		}
		if err != nil {
			a.observer.UnitFinished(Stage, index, total, name, false)
			if conversation.IsCancelled(err) {
				return res, err
			}
			res.Failed++
			a.observer.Log(models.LevelWarn, fmt.Sprintf("[inspection] [%d/%d] skipped %s: %v", index, total, name, err))
			a.logger.Warn("inspection dropped", "flow", name, "error", err)
			continue
		}

		report := *resp.Result
		report.FlowName = name
		normalizeSummary(&report, p.Checklist)

		res.Reports = append(res.Reports, report)
		a.observer.UnitFinished(Stage, index, total, name, true)
		a.observer.Log(models.LevelSuccess, fmt.Sprintf("[inspection] [%d/%d] %s: %d implemented, %d missing, %d vulnerabilities (%s)",
			index, total, name, report.Summary.ImplementedCount, report.Summary.MissingCount,
			report.Summary.VulnerabilitiesCount, report.Summary.OverallSeverity))
	}
	return res, nil
}

// normalizeSummary recomputes counts from the finding lists. The model's
// overall severity is kept when it is a known value.
func normalizeSummary(r *models.SecurityReport, cl models.SecurityChecklist) {
	s := &r.Summary
	s.TotalControls = len(cl.RequiredControls) + len(cl.RecommendedControls)
	s.ImplementedCount = len(r.Implemented)
	s.MissingCount = len(r.Missing)
	s.AutoHandledCount = len(r.AutoHandled)
	s.VulnerabilitiesCount = len(r.Vulnerabilities)

	worst := models.SeverityNone
	for _, v := range r.Vulnerabilities {
		if models.SeverityRank(v.Severity) > models.SeverityRank(worst) {
			worst = v.Severity
		}
	}
	sev := strings.ToLower(s.OverallSeverity)
	if sev == "" || (sev != models.SeverityNone && models.SeverityRank(sev) == 0) || models.SeverityRank(worst) > models.SeverityRank(sev) {
		sev = worst
	}
	s.OverallSeverity = sev
}

func buildPrompt(p Pair) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Endpoint: %s\n\nTraced flow documentation:\n\n%s\n\n", p.Endpoint.FlowName, p.Endpoint.MarkDown)
	b.WriteString("Security checklist:\n")
	for _, c := range p.Checklist.RequiredControls {
		writeControl(&b, "REQUIRED", c)
	}
	for _, c := range p.Checklist.RecommendedControls {
		writeControl(&b, "RECOMMENDED", c)
	}
	b.WriteString("\nFor every control decide whether it is implemented, missing or handled by the framework, and report any vulnerabilities you find.")
	return b.String()
}

func writeControl(b *strings.Builder, kind string, c models.SecurityControl) {
	fmt.Fprintf(b, "- [%s][%s] %s %s (%s): %s\n", kind, c.Importance, c.ControlID, c.Name, c.Category, c.Description)
}

const systemPrompt = `You are a senior application security reviewer.
You receive the documented code flow of one API endpoint and the security checklist for it.
Match the code evidence against each control. Only cite evidence present in the documentation.

Reply with exactly one JSON object:
{"status":"completed","result":{"flow_name":"<as given>",
 "implemented":[{"control_id":"...","name":"...","evidence":"...","location":"file:line"}],
 "missing":[{"control_id":"...","name":"...","risk":"...","recommendation":"..."}],
 "auto_handled":[{"control_id":"...","name":"...","handled_by":"..."}],
 "vulnerabilities":[{"title":"...","severity":"critical|high|medium|low|info","description":"...","location":"...","recommendation":"...","cwe":"CWE-..."}],
 "summary":{"total_controls":0,"implemented_count":0,"missing_count":0,"auto_handled_count":0,"vulnerabilities_count":0,"overall_severity":"critical|high|medium|low|info|none"}}}
or, if the flow cannot be inspected:
{"status":"error","message":"..."}`
