package reporter

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/owenrumney/go-sarif/v2/sarif"
	"github.com/ppiankov/flowspectre/internal/aggregator"
	"github.com/ppiankov/flowspectre/internal/models"
)

const (
	sarifToolName = "flowspectre"
	sarifToolURI  = "https://github.com/ppiankov/flowspectre"
)

// SARIFReporter writes vulnerabilities and missing controls as SARIF 2.1.0
type SARIFReporter struct {
	writer io.Writer
	pretty bool
}

// NewSARIFReporter creates a new SARIF reporter
func NewSARIFReporter(writer io.Writer, pretty bool) *SARIFReporter {
	return &SARIFReporter{writer: writer, pretty: pretty}
}

// Generate builds one rule per control or vulnerability class and one result
// per issue finding
func (r *SARIFReporter) Generate(result *models.AnalysisResult) error {
	report, err := BuildSARIF(result)
	if err != nil {
		return err
	}
	if r.pretty {
		return report.PrettyWrite(r.writer)
	}
	return report.Write(r.writer)
}

// BuildSARIF converts an analysis result into a SARIF report
func BuildSARIF(result *models.AnalysisResult) (*sarif.Report, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(sarifToolName, sarifToolURI)
	rules := make(map[string]bool)

	for _, f := range aggregator.NewNormalizer().Normalize(result) {
		if !f.IsIssue() {
			continue
		}

		ruleID := sarifRuleID(f)
		if !rules[ruleID] {
			rules[ruleID] = true
			rule := run.AddRule(ruleID).
				WithDescription(ruleDescription(f)).
				WithDefaultConfiguration(&sarif.ReportingConfiguration{
					Level: toSarifLevel(f.Severity),
				})
			name := f.Title
			rule.Name = &name
		}

		res := sarif.NewRuleResult(ruleID).
			WithMessage(sarif.NewTextMessage(resultMessage(f))).
			WithLevel(toSarifLevel(f.Severity))
		if loc := sarifLocation(f.Location); loc != nil {
			res.WithLocations([]*sarif.Location{loc})
		}
		run.AddResult(res)
	}

	report.AddRun(run)
	return report, nil
}

var nonRuleChars = regexp.MustCompile(`[^A-Za-z0-9]+`)

// sarifRuleID prefers the CWE or control id and falls back to a slug of the title
func sarifRuleID(f models.Finding) string {
	if f.ID != "" {
		return f.ID
	}
	slug := strings.Trim(nonRuleChars.ReplaceAllString(strings.ToLower(f.Title), "-"), "-")
	if slug == "" {
		slug = "unnamed"
	}
	return "vuln-" + slug
}

func ruleDescription(f models.Finding) string {
	if f.Kind == models.FindingMissing {
		kind := "Recommended"
		if f.Required {
			kind = "Required"
		}
		if f.Category != "" {
			return fmt.Sprintf("%s security control: %s (%s)", kind, f.Title, f.Category)
		}
		return fmt.Sprintf("%s security control: %s", kind, f.Title)
	}
	return f.Title
}

func resultMessage(f models.Finding) string {
	var b strings.Builder
	if f.Kind == models.FindingMissing {
		fmt.Fprintf(&b, "[%s] missing control %s", f.FlowName, f.Title)
	} else {
		fmt.Fprintf(&b, "[%s] %s", f.FlowName, f.Title)
	}
	if f.Detail != "" {
		b.WriteString(": " + f.Detail)
	}
	if f.Recommendation != "" {
		b.WriteString(" Recommendation: " + f.Recommendation)
	}
	return b.String()
}

// sarifLocation parses "path", "path:line" or "path:line-end" locations
func sarifLocation(location string) *sarif.Location {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil
	}

	path, line := location, 0
	if idx := strings.LastIndex(location, ":"); idx > 0 {
		span := location[idx+1:]
		if dash := strings.Index(span, "-"); dash > 0 {
			span = span[:dash]
		}
		if n, err := strconv.Atoi(span); err == nil && n > 0 {
			path, line = location[:idx], n
		}
	}

	physical := sarif.NewPhysicalLocation().
		WithArtifactLocation(sarif.NewArtifactLocation().WithUri(path))
	if line > 0 {
		physical.WithRegion(sarif.NewRegion().WithStartLine(line))
	}
	return sarif.NewLocation().WithPhysicalLocation(physical)
}

func toSarifLevel(severity string) string {
	switch strings.ToLower(severity) {
	case models.SeverityCritical, models.SeverityHigh:
		return "error"
	case models.SeverityMedium:
		return "warning"
	case models.SeverityLow, models.SeverityInfo:
		return "note"
	default:
		return "none"
	}
}
