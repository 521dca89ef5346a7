package reporter

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ppiankov/flowspectre/internal/aggregator"
	"github.com/ppiankov/flowspectre/internal/models"
)

var csvHeader = []string{
	"flow_name", "kind", "id", "title", "severity", "category", "required", "detail", "location", "recommendation",
}

// CSVReporter writes one row per finding
type CSVReporter struct {
	writer     io.Writer
	issuesOnly bool
}

// NewCSVReporter creates a new CSV reporter. With issuesOnly, implemented and
// auto-handled controls are left out.
func NewCSVReporter(writer io.Writer, issuesOnly bool) *CSVReporter {
	return &CSVReporter{writer: writer, issuesOnly: issuesOnly}
}

// Generate writes the findings of result
func (r *CSVReporter) Generate(result *models.AnalysisResult) error {
	w := csv.NewWriter(r.writer)
	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, f := range aggregator.NewNormalizer().Normalize(result) {
		if r.issuesOnly && !f.IsIssue() {
			continue
		}
		row := []string{
			f.FlowName,
			string(f.Kind),
			f.ID,
			f.Title,
			f.Severity,
			string(f.Category),
			strconv.FormatBool(f.Required),
			f.Detail,
			f.Location,
			f.Recommendation,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
