package aggregator

import (
	"strings"

	"github.com/ppiankov/flowspectre/internal/models"
)

// Normalizer converts per-endpoint security reports into flat findings.
type Normalizer struct{}

// NewNormalizer creates a new normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize flattens every report in result. Findings keep report order;
// within a report vulnerabilities come first, then missing, implemented and
// auto-handled controls.
func (n *Normalizer) Normalize(result *models.AnalysisResult) []models.Finding {
	var findings []models.Finding
	for _, report := range result.Reports {
		checklist, _ := result.ChecklistFor(report.FlowName)
		findings = append(findings, n.NormalizeReport(report, checklist)...)
	}
	return findings
}

// NormalizeReport flattens one report. Control findings borrow category,
// importance and required flag from the checklist when the id is known.
func (n *Normalizer) NormalizeReport(report models.SecurityReport, checklist models.SecurityChecklist) []models.Finding {
	controls := indexControls(checklist)
	findings := make([]models.Finding, 0,
		len(report.Vulnerabilities)+len(report.Missing)+len(report.Implemented)+len(report.AutoHandled))

	for _, v := range report.Vulnerabilities {
		findings = append(findings, models.Finding{
			FlowName:       report.FlowName,
			Kind:           models.FindingVulnerability,
			ID:             v.CWE,
			Title:          v.Title,
			Severity:       normalizeSeverity(v.Severity),
			Detail:         v.Description,
			Location:       v.Location,
			Recommendation: v.Recommendation,
		})
	}

	for _, c := range report.Missing {
		f := controlFinding(report.FlowName, models.FindingMissing, c.ControlID, c.Name, controls)
		f.Detail = c.Risk
		f.Recommendation = c.Recommendation
		findings = append(findings, f)
	}

	for _, c := range report.Implemented {
		f := controlFinding(report.FlowName, models.FindingImplemented, c.ControlID, c.Name, controls)
		f.Detail = c.Evidence
		f.Location = c.Location
		findings = append(findings, f)
	}

	for _, c := range report.AutoHandled {
		f := controlFinding(report.FlowName, models.FindingAutoHandled, c.ControlID, c.Name, controls)
		f.Detail = c.HandledBy
		findings = append(findings, f)
	}

	return findings
}

type controlInfo struct {
	control  models.SecurityControl
	required bool
}

func indexControls(checklist models.SecurityChecklist) map[string]controlInfo {
	idx := make(map[string]controlInfo, len(checklist.RequiredControls)+len(checklist.RecommendedControls))
	for _, c := range checklist.RecommendedControls {
		idx[c.ControlID] = controlInfo{control: c}
	}
	for _, c := range checklist.RequiredControls {
		idx[c.ControlID] = controlInfo{control: c, required: true}
	}
	return idx
}

func controlFinding(flow string, kind models.FindingKind, id, name string, controls map[string]controlInfo) models.Finding {
	f := models.Finding{
		FlowName: flow,
		Kind:     kind,
		ID:       id,
		Title:    name,
		Severity: models.SeverityInfo,
	}
	if info, ok := controls[id]; ok {
		f.Category = info.control.Category
		f.Required = info.required
		f.Severity = normalizeSeverity(info.control.Importance)
		if f.Title == "" {
			f.Title = info.control.Name
		}
	}
	if kind != models.FindingMissing {
		f.Severity = models.SeverityNone
	}
	return f
}

// normalizeSeverity lower-cases known severities and maps anything else to info.
func normalizeSeverity(severity string) string {
	s := strings.ToLower(strings.TrimSpace(severity))
	if s == models.SeverityNone || models.SeverityRank(s) > 0 {
		return s
	}
	return models.SeverityInfo
}
