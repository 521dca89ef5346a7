package aggregator

import (
	"fmt"
	"sort"

	"github.com/ppiankov/flowspectre/internal/models"
)

// Aggregator derives summaries, integrity warnings and recommendations from
// the per-endpoint artifacts of one analysis job.
type Aggregator struct {
	normalizer      *Normalizer
	recommendations *RecommendationGenerator
}

// New creates a new aggregator
func New() *Aggregator {
	return &Aggregator{
		normalizer:      NewNormalizer(),
		recommendations: NewRecommendationGenerator(),
	}
}

// Aggregate fills the summary, integrity warnings and recommendations of result in place.
func (a *Aggregator) Aggregate(result *models.AnalysisResult) {
	result.Summary = Summarize(result)
	result.IntegrityWarnings = CheckIntegrity(result.Checklists, result.Reports)
	result.Recommendations = a.recommendations.GenerateRecommendations(a.normalizer.Normalize(result))
}

// Findings flattens every report of result into findings.
func (a *Aggregator) Findings(result *models.AnalysisResult) []models.Finding {
	return a.normalizer.Normalize(result)
}

// Summarize computes job-level counts. The overall severity is the worst
// vulnerability severity, or none when there are no vulnerabilities.
func Summarize(result *models.AnalysisResult) models.AnalysisSummary {
	summary := models.AnalysisSummary{
		Endpoints:       len(result.Endpoints),
		Checklists:      len(result.Checklists),
		Reports:         len(result.Reports),
		BySeverity:      make(map[string]int),
		OverallSeverity: models.SeverityNone,
	}

	for _, report := range result.Reports {
		summary.TotalControls += report.Summary.TotalControls
		summary.Implemented += len(report.Implemented)
		summary.Missing += len(report.Missing)
		summary.AutoHandled += len(report.AutoHandled)
		summary.Vulnerabilities += len(report.Vulnerabilities)

		for _, v := range report.Vulnerabilities {
			summary.BySeverity[v.Severity]++
			if models.SeverityRank(v.Severity) > models.SeverityRank(summary.OverallSeverity) {
				summary.OverallSeverity = v.Severity
			}
		}
	}

	summary.Posture, summary.PostureScore = models.CalculatePostureScore(
		summary.Implemented+summary.AutoHandled, summary.TotalControls)
	return summary
}

// CheckIntegrity cross-checks reports against checklists. It warns about
// reports without a checklist and control ids a report cites that its
// checklist does not contain.
func CheckIntegrity(checklists []models.SecurityChecklist, reports []models.SecurityReport) []string {
	byFlow := make(map[string]models.SecurityChecklist, len(checklists))
	for _, c := range checklists {
		byFlow[c.FlowName] = c
	}

	var warnings []string
	for _, report := range reports {
		checklist, ok := byFlow[report.FlowName]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("report %q has no matching checklist", report.FlowName))
			continue
		}

		known := checklist.ControlIDs()
		unknown := make(map[string]bool)
		for _, id := range citedControls(report) {
			if id != "" && !known[id] {
				unknown[id] = true
			}
		}
		if len(unknown) == 0 {
			continue
		}

		ids := make([]string, 0, len(unknown))
		for id := range unknown {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			warnings = append(warnings, fmt.Sprintf("report %q references unknown control %s", report.FlowName, id))
		}
	}
	return warnings
}

func citedControls(report models.SecurityReport) []string {
	ids := make([]string, 0, len(report.Implemented)+len(report.Missing)+len(report.AutoHandled))
	for _, c := range report.Implemented {
		ids = append(ids, c.ControlID)
	}
	for _, c := range report.Missing {
		ids = append(ids, c.ControlID)
	}
	for _, c := range report.AutoHandled {
		ids = append(ids, c.ControlID)
	}
	return ids
}
