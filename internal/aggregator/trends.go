package aggregator

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/flowspectre/internal/models"
)

// TrendAnalyzer analyzes trends across multiple runs
type TrendAnalyzer struct {
	normalizer *Normalizer
}

// NewTrendAnalyzer creates a new trend analyzer
func NewTrendAnalyzer() *TrendAnalyzer {
	return &TrendAnalyzer{normalizer: NewNormalizer()}
}

// CalculateTrend compares the current result with a previous one. New and
// resolved counts compare issue identities (flow, kind, id, title), not totals.
func (t *TrendAnalyzer) CalculateTrend(current, previous *models.AnalysisResult) *models.Trend {
	if previous == nil {
		return nil
	}

	trend := &models.Trend{
		PreviousVulnerabilities: previous.Summary.Vulnerabilities,
		CurrentVulnerabilities:  current.Summary.Vulnerabilities,
		PreviousMissing:         previous.Summary.Missing,
		CurrentMissing:          current.Summary.Missing,
		ComparedWith:            previous.FinishedAt,
	}

	prevIssues := t.issueKeys(previous)
	currIssues := t.issueKeys(current)
	for key := range currIssues {
		if !prevIssues[key] {
			trend.NewFindings++
		}
	}
	for key := range prevIssues {
		if !currIssues[key] {
			trend.ResolvedFindings++
		}
	}

	prevTotal := len(prevIssues)
	change := len(currIssues) - prevTotal
	if prevTotal > 0 {
		trend.ChangePercent = float64(change) / float64(prevTotal) * 100.0
	}

	switch {
	case change < 0:
		trend.Direction = "improving"
	case change > 0:
		trend.Direction = "degrading"
	default:
		trend.Direction = "stable"
	}

	return trend
}

// AddTrend attaches trend information comparing current with previous
func (t *TrendAnalyzer) AddTrend(current, previous *models.AnalysisResult) {
	if previous == nil {
		return
	}
	current.Trend = t.CalculateTrend(current, previous)
}

func (t *TrendAnalyzer) issueKeys(result *models.AnalysisResult) map[string]bool {
	keys := make(map[string]bool)
	for _, f := range t.normalizer.Normalize(result) {
		if !f.IsIssue() {
			continue
		}
		keys[strings.Join([]string{f.FlowName, string(f.Kind), f.ID, f.Title}, "\x00")] = true
	}
	return keys
}

// AnalyzeLastNRuns analyzes trends across last N runs
func (t *TrendAnalyzer) AnalyzeLastNRuns(runs []*models.AnalysisResult) *models.TrendSummary {
	if len(runs) == 0 {
		return nil
	}

	summary := &models.TrendSummary{
		RunsAnalyzed: len(runs),
	}

	if len(runs) > 1 {
		earliest := runs[0].FinishedAt
		latest := runs[len(runs)-1].FinishedAt
		days := int(latest.Sub(earliest).Hours() / 24)
		summary.TimeRange = fmt.Sprintf("Last %d days", days)
	} else {
		summary.TimeRange = "Single run"
	}

	summary.VulnerabilitySparkline = make([]int, len(runs))
	summary.MissingSparkline = make([]int, len(runs))
	for i, run := range runs {
		summary.VulnerabilitySparkline[i] = run.Summary.Vulnerabilities
		summary.MissingSparkline[i] = run.Summary.Missing
	}

	return summary
}

// formatDate formats a timestamp for display
func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// DescribeTrend renders a one-line trend description
func DescribeTrend(trend *models.Trend) string {
	if trend == nil {
		return "No previous run to compare with"
	}
	return fmt.Sprintf("%s %s since %s: %d new, %d resolved (%+.1f%%)",
		GetTrendIndicator(trend.Direction), trend.Direction, formatDate(trend.ComparedWith),
		trend.NewFindings, trend.ResolvedFindings, trend.ChangePercent)
}

// GetTrendIndicator returns a visual indicator for trend direction
func GetTrendIndicator(direction string) string {
	switch direction {
	case "improving":
		return "↓"
	case "degrading":
		return "↑"
	case "stable":
		return "→"
	default:
		return "?"
	}
}
