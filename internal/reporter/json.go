package reporter

import (
	"encoding/json"
	"io"

	"github.com/ppiankov/flowspectre/internal/models"
)

// JSONReporter generates machine-readable JSON reports
type JSONReporter struct {
	writer io.Writer
	pretty bool
}

// NewJSONReporter creates a new JSON reporter
func NewJSONReporter(writer io.Writer, pretty bool) *JSONReporter {
	return &JSONReporter{
		writer: writer,
		pretty: pretty,
	}
}

// Generate writes the full analysis result
func (r *JSONReporter) Generate(result *models.AnalysisResult) error {
	return r.write(result)
}

// GenerateSummaryOnly writes the summary without endpoint traces and checklists
func (r *JSONReporter) GenerateSummaryOnly(result *models.AnalysisResult) error {
	summary := struct {
		JobID             string                  `json:"job_id"`
		Timestamp         string                  `json:"timestamp"`
		Model             string                  `json:"model"`
		Framework         models.FrameworkInfo    `json:"framework"`
		Summary           models.AnalysisSummary  `json:"summary"`
		Trend             *models.Trend           `json:"trend,omitempty"`
		Recommendations   []models.Recommendation `json:"recommendations"`
		IntegrityWarnings []string                `json:"integrity_warnings,omitempty"`
	}{
		JobID:             result.JobID,
		Timestamp:         result.FinishedAt.Format("2006-01-02T15:04:05Z07:00"),
		Model:             result.Model,
		Framework:         result.Framework,
		Summary:           result.Summary,
		Trend:             result.Trend,
		Recommendations:   result.Recommendations,
		IntegrityWarnings: result.IntegrityWarnings,
	}
	if summary.Recommendations == nil {
		summary.Recommendations = []models.Recommendation{}
	}
	return r.write(summary)
}

func (r *JSONReporter) write(v interface{}) error {
	var data []byte
	var err error

	if r.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	if _, err := r.writer.Write(data); err != nil {
		return err
	}

	// Add trailing newline for terminal output
	_, err = r.writer.Write([]byte("\n"))
	return err
}
