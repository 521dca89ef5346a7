package reporter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ppiankov/flowspectre/internal/aggregator"
	"github.com/ppiankov/flowspectre/internal/models"
)

// TextReporter generates human-readable text reports
type TextReporter struct {
	writer io.Writer
}

// NewTextReporter creates a new text reporter
func NewTextReporter(writer io.Writer) *TextReporter {
	return &TextReporter{
		writer: writer,
	}
}

// Generate creates a text report from an analysis result
func (r *TextReporter) Generate(result *models.AnalysisResult) error {
	r.printHeader()
	r.printf("Job:       %s\n", result.JobID)
	r.printf("Model:     %s\n", result.Model)
	r.printf("Framework: %s (%.0f%%)\n", result.Framework.Name, result.Framework.Confidence*100)
	r.printf("Timestamp: %s (took %s)\n\n", formatTimestamp(result.FinishedAt), result.Elapsed.Round(time.Second))

	r.printOverallSummary(result)
	r.printEndpointBreakdown(result)

	if len(result.IntegrityWarnings) > 0 {
		r.printf("\nIntegrity Warnings:\n")
		r.printf("--------------------------------------------------\n")
		for _, w := range result.IntegrityWarnings {
			r.printf("  ! %s\n", w)
		}
	}

	if len(result.Recommendations) > 0 {
		r.printRecommendations(result.Recommendations)
	}

	if result.Trend != nil {
		r.printf("\n")
		r.printTrendInfo(result.Trend)
	}

	return nil
}

// printHeader prints the report header
func (r *TextReporter) printHeader() {
	r.printf("╔════════════════════════════════════════════╗\n")
	r.printf("║       flowspectre Security Analysis        ║\n")
	r.printf("╚════════════════════════════════════════════╝\n\n")
}

// printOverallSummary prints the overall summary section
func (r *TextReporter) printOverallSummary(result *models.AnalysisResult) {
	s := result.Summary
	r.printf("Overall Summary:\n")
	r.printf("--------------------------------------------------\n")
	r.printf("  Endpoints: %d (%d checklists, %d reports)\n", s.Endpoints, s.Checklists, s.Reports)
	r.printf("  Controls: %d (%d implemented, %d auto-handled, %d missing)\n",
		s.TotalControls, s.Implemented, s.AutoHandled, s.Missing)
	r.printf("  Vulnerabilities: %d\n", s.Vulnerabilities)
	r.printf("  Overall Severity: %s\n", strings.ToUpper(s.OverallSeverity))
	r.printf("  Posture: %s", strings.ToUpper(s.Posture))

	if s.PostureScore > 0 {
		r.printf(" (%.1f%%)", s.PostureScore)
	}

	if result.Trend != nil {
		indicator := aggregator.GetTrendIndicator(result.Trend.Direction)
		r.printf(" %s %.1f%% from previous run", indicator, result.Trend.ChangePercent)
	}

	r.printf("\n\n")

	if len(s.BySeverity) > 0 {
		r.printf("Vulnerabilities by Severity:\n")
		for _, severity := range severityOrder {
			if count := s.BySeverity[severity]; count > 0 {
				r.printf("  %s: %d\n", titleCase(severity), count)
			}
		}
		r.printf("\n")
	}
}

var severityOrder = []string{
	models.SeverityCritical,
	models.SeverityHigh,
	models.SeverityMedium,
	models.SeverityLow,
	models.SeverityInfo,
}

// printEndpointBreakdown prints one block per inspected endpoint
func (r *TextReporter) printEndpointBreakdown(result *models.AnalysisResult) {
	inspected := make(map[string]bool, len(result.Reports))
	for _, report := range result.Reports {
		inspected[report.FlowName] = true
		ep, _ := result.EndpointFor(report.FlowName)

		r.printf("\n%s\n", report.FlowName)
		r.printf("--------------------------------------------------\n")
		if ep.EntryPoint != "" {
			r.printf("  Entry Point: %s\n", ep.EntryPoint)
		}
		if ep.SensitivityLevel != "" {
			r.printf("  Sensitivity: %s\n", ep.SensitivityLevel)
		}
		r.printf("  Controls: %d implemented, %d auto-handled, %d missing of %d\n",
			report.Summary.ImplementedCount, report.Summary.AutoHandledCount,
			report.Summary.MissingCount, report.Summary.TotalControls)
		r.printf("  Severity: %s\n", strings.ToUpper(report.Summary.OverallSeverity))

		for _, v := range report.Vulnerabilities {
			r.printf("  [%s] %s", strings.ToUpper(v.Severity), v.Title)
			if v.CWE != "" {
				r.printf(" (%s)", v.CWE)
			}
			if v.Location != "" {
				r.printf(" at %s", v.Location)
			}
			r.printf("\n")
		}
		for _, m := range report.Missing {
			r.printf("  [MISSING] %s %s", m.ControlID, m.Name)
			if m.Risk != "" {
				r.printf(": %s", m.Risk)
			}
			r.printf("\n")
		}
	}

	for _, ep := range result.Endpoints {
		if !inspected[ep.FlowName] {
			r.printf("\n%s\n", ep.FlowName)
			r.printf("--------------------------------------------------\n")
			r.printf("  Status: NOT INSPECTED\n")
		}
	}
}

// printRecommendations prints the recommendations section
func (r *TextReporter) printRecommendations(recommendations []models.Recommendation) {
	r.printf("\n")
	r.printf("Recommended Actions:\n")
	r.printf("--------------------------------------------------\n")

	gen := aggregator.NewRecommendationGenerator()
	grouped := gen.GroupBySeverity(recommendations)

	n := 0
	for _, severity := range severityOrder {
		for _, rec := range grouped[severity] {
			n++
			r.printf("  %d. [%s] %s\n", n, strings.ToUpper(rec.Severity), rec.Action)
			r.printf("     Impact: %s\n", rec.Impact)
		}
	}
}

// printTrendInfo prints trend information
func (r *TextReporter) printTrendInfo(trend *models.Trend) {
	r.printf("Trend Analysis:\n")
	r.printf("--------------------------------------------------\n")
	r.printf("  Direction: %s %s\n", trend.Direction, aggregator.GetTrendIndicator(trend.Direction))
	r.printf("  Vulnerabilities: %d → %d\n", trend.PreviousVulnerabilities, trend.CurrentVulnerabilities)
	r.printf("  Missing Controls: %d → %d\n", trend.PreviousMissing, trend.CurrentMissing)
	r.printf("  Change: %.1f%%\n", trend.ChangePercent)

	if trend.NewFindings > 0 {
		r.printf("  New Findings: %d\n", trend.NewFindings)
	}
	if trend.ResolvedFindings > 0 {
		r.printf("  Resolved: %d\n", trend.ResolvedFindings)
	}

	r.printf("  Compared With: %s\n", formatTimestamp(trend.ComparedWith))
}

// printf is a helper to write formatted output
func (r *TextReporter) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.writer, format, args...)
}

// formatTimestamp formats a timestamp for display
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
