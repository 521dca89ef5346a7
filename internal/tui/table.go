package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/ppiankov/flowspectre/internal/models"
)

var tableColumns = []table.Column{
	{Title: "Severity", Width: 10},
	{Title: "Flow", Width: 24},
	{Title: "Kind", Width: 12},
	{Title: "ID", Width: 10},
	{Title: "Title", Width: 32},
}

// buildRows converts findings to table rows.
func buildRows(findings []models.Finding) []table.Row {
	rows := make([]table.Row, 0, len(findings))
	for _, f := range findings {
		rows = append(rows, table.Row{
			severityLabel(f.Severity),
			truncate(f.FlowName, tableColumns[1].Width),
			kindLabel(f.Kind),
			truncate(f.ID, tableColumns[3].Width),
			truncate(f.Title, tableColumns[4].Width),
		})
	}
	return rows
}

func severityLabel(s string) string {
	switch s {
	case models.SeverityNone, "":
		return "-"
	default:
		return strings.ToUpper(s)
	}
}

func kindLabel(k models.FindingKind) string {
	switch k {
	case models.FindingVulnerability:
		return "vuln"
	case models.FindingMissing:
		return "missing"
	case models.FindingImplemented:
		return "ok"
	case models.FindingAutoHandled:
		return "auto"
	default:
		return string(k)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	const ellipsis = "..."
	if maxLen <= len(ellipsis) {
		return s[:maxLen]
	}
	return s[:maxLen-len(ellipsis)] + ellipsis
}

// newTable creates a bubbles table with standard columns and styling.
func newTable(rows []table.Row, height int) table.Model {
	t := table.New(
		table.WithColumns(tableColumns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(colorAccent).
		Bold(false)
	t.SetStyles(s)

	return t
}
