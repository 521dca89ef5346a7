package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/ppiankov/flowspectre/internal/models"
)

var (
	colorRed    = lipgloss.Color("#E5484D")
	colorOrange = lipgloss.Color("#F76B15")
	colorYellow = lipgloss.Color("#FFC53D")
	colorGreen  = lipgloss.Color("#46A758")
	colorBlue   = lipgloss.Color("#0090FF")
	colorMuted  = lipgloss.Color("#8B8D98")
	colorAccent = lipgloss.Color("#6E56CF")
	colorBorder = lipgloss.Color("#3A3A3F")
)

var (
	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder)

	styleDetailPanel = lipgloss.NewStyle().
				Padding(0, 1).
				BorderStyle(lipgloss.NormalBorder()).
				BorderTop(true).
				BorderForeground(colorBorder)

	styleFooter = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)

	styleSearchPrompt = lipgloss.NewStyle().
				Foreground(colorAccent).Bold(true)
)

var severityStyles = map[string]lipgloss.Style{
	models.SeverityCritical: lipgloss.NewStyle().Foreground(colorRed).Bold(true),
	models.SeverityHigh:     lipgloss.NewStyle().Foreground(colorOrange).Bold(true),
	models.SeverityMedium:   lipgloss.NewStyle().Foreground(colorYellow),
	models.SeverityLow:      lipgloss.NewStyle().Foreground(colorBlue),
}

var postureStyles = map[string]lipgloss.Style{
	"excellent": lipgloss.NewStyle().Foreground(colorGreen).Bold(true),
	"good":      lipgloss.NewStyle().Foreground(colorGreen),
	"warning":   lipgloss.NewStyle().Foreground(colorYellow).Bold(true),
	"critical":  lipgloss.NewStyle().Foreground(colorOrange).Bold(true),
	"severe":    lipgloss.NewStyle().Foreground(colorRed).Bold(true),
}

// Controls that hold up are green, gaps use the severity palette.
var kindStyles = map[models.FindingKind]lipgloss.Style{
	models.FindingVulnerability: lipgloss.NewStyle().Foreground(colorRed),
	models.FindingMissing:       lipgloss.NewStyle().Foreground(colorOrange),
	models.FindingImplemented:   lipgloss.NewStyle().Foreground(colorGreen),
	models.FindingAutoHandled:   lipgloss.NewStyle().Foreground(colorBlue),
}

func severityStyle(severity string) lipgloss.Style {
	if s, ok := severityStyles[severity]; ok {
		return s
	}
	return lipgloss.NewStyle().Foreground(colorMuted)
}

func postureStyle(posture string) lipgloss.Style {
	if s, ok := postureStyles[posture]; ok {
		return s
	}
	return lipgloss.NewStyle()
}

func kindStyle(k models.FindingKind) lipgloss.Style {
	if s, ok := kindStyles[k]; ok {
		return s
	}
	return lipgloss.NewStyle().Foreground(colorMuted)
}
