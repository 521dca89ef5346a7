package reporter

import (
	"fmt"
	"io"

	"github.com/ppiankov/flowspectre/internal/models"
)

// Reporter renders an analysis result.
type Reporter interface {
	Generate(result *models.AnalysisResult) error
}

// Supported output formats
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatSARIF = "sarif"
	FormatCSV   = "csv"
)

// New returns the reporter for a format.
func New(format string, w io.Writer) (Reporter, error) {
	switch format {
	case FormatText, "":
		return NewTextReporter(w), nil
	case FormatJSON:
		return NewJSONReporter(w, true), nil
	case FormatSARIF:
		return NewSARIFReporter(w, true), nil
	case FormatCSV:
		return NewCSVReporter(w, false), nil
	default:
		return nil, fmt.Errorf("unsupported format %q (want text, json, sarif or csv)", format)
	}
}
