package tui

import (
	"fmt"
	"strings"

	"github.com/ppiankov/flowspectre/internal/models"
)

// detailHeight is the fixed number of lines for the detail panel.
const detailHeight = 6

// renderDetail produces the detail view for a selected finding.
func renderDetail(f *models.Finding, width int) string {
	if f == nil {
		return styleDetailPanel.Width(width).Render("No finding selected")
	}

	var b strings.Builder

	sevStyled := severityStyle(f.Severity).Render(severityLabel(f.Severity))
	kindStyled := kindStyle(f.Kind).Render(kindLabel(f.Kind))
	b.WriteString(fmt.Sprintf("%s  %s  %s\n", sevStyled, kindStyled, f.FlowName))

	title := f.Title
	if f.ID != "" {
		title = fmt.Sprintf("%s (%s)", f.Title, f.ID)
	}
	meta := make([]string, 0, 2)
	if f.Category != "" {
		meta = append(meta, string(f.Category))
	}
	if f.Required {
		meta = append(meta, "required")
	}
	if len(meta) > 0 {
		title += "  [" + strings.Join(meta, ", ") + "]"
	}
	b.WriteString(title + "\n")

	if f.Detail != "" {
		b.WriteString(fmt.Sprintf("%s: %s\n", detailLabel(f.Kind), f.Detail))
	}
	if f.Location != "" {
		b.WriteString(fmt.Sprintf("Location: %s\n", f.Location))
	}
	if f.Recommendation != "" {
		b.WriteString(fmt.Sprintf("Fix: %s", f.Recommendation))
	}

	return styleDetailPanel.Width(width).Render(strings.TrimRight(b.String(), "\n"))
}

func detailLabel(k models.FindingKind) string {
	switch k {
	case models.FindingMissing:
		return "Risk"
	case models.FindingImplemented:
		return "Evidence"
	case models.FindingAutoHandled:
		return "Handled by"
	default:
		return "Details"
	}
}
