package reporter

import (
	"bytes"
	"testing"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	for _, format := range []string{"", FormatText, FormatJSON, FormatSARIF, FormatCSV} {
		r, err := New(format, &buf)
		if err != nil {
			t.Errorf("New(%q): %v", format, err)
			continue
		}
		if err := r.Generate(sampleResult()); err != nil {
			t.Errorf("%q Generate: %v", format, err)
		}
	}
	if _, err := New("xml", &buf); err == nil {
		t.Error("expected error for unsupported format")
	}
}
