package tui

import (
	"fmt"
	"strings"

	"github.com/ppiankov/flowspectre/internal/aggregator"
	"github.com/ppiankov/flowspectre/internal/models"
)

// headerHeight is the number of terminal lines the header occupies.
const headerHeight = 5

// renderHeader produces the header string from the analysis summary.
func renderHeader(result *models.AnalysisResult, sparkline []int, width int) string {
	summary := result.Summary
	var b strings.Builder

	// Line 1: title and posture
	posture := summary.Posture
	if posture == "" {
		posture = "unknown"
	}
	postureText := postureStyle(posture).Render(
		fmt.Sprintf("%s (%.0f%%)", strings.ToUpper(posture), summary.PostureScore),
	)
	b.WriteString(fmt.Sprintf("flowspectre  Posture: %s", postureText))

	if result.Trend != nil {
		indicator := aggregator.GetTrendIndicator(result.Trend.Direction)
		b.WriteString(fmt.Sprintf("  %s %.1f%%", indicator, result.Trend.ChangePercent))
	}
	b.WriteString("\n")

	// Line 2: framework and counts
	framework := result.Framework.Name
	if framework == "" {
		framework = "unknown"
	}
	b.WriteString(fmt.Sprintf("Framework: %s  Endpoints: %d  Controls: %d/%d  Vulnerabilities: %d",
		framework, summary.Endpoints, summary.Implemented+summary.AutoHandled, summary.TotalControls,
		summary.Vulnerabilities))
	b.WriteString("\n")

	// Line 3: severity breakdown
	sevParts := make([]string, 0, 5)
	for _, sev := range []string{
		models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow, models.SeverityInfo,
	} {
		if count := summary.BySeverity[sev]; count > 0 {
			label := fmt.Sprintf("%s:%d", strings.ToUpper(sev[:1]), count)
			sevParts = append(sevParts, severityStyle(sev).Render(label))
		}
	}
	if len(sevParts) > 0 {
		b.WriteString(strings.Join(sevParts, "  "))
	}
	b.WriteString("\n")

	// Line 4: sparkline
	if len(sparkline) > 0 {
		b.WriteString("Trend: ")
		b.WriteString(renderSparkline(sparkline))
	}

	return styleHeader.Width(width).Render(b.String())
}

// renderSparkline converts an int slice to a unicode sparkline string.
func renderSparkline(values []int) string {
	if len(values) == 0 {
		return ""
	}

	bars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	var b strings.Builder
	for _, v := range values {
		if max == min {
			b.WriteRune(bars[len(bars)/2])
		} else {
			normalized := float64(v-min) / float64(max-min)
			idx := int(normalized * float64(len(bars)-1))
			b.WriteRune(bars[idx])
		}
	}

	b.WriteString(fmt.Sprintf(" [%d→%d]", values[0], values[len(values)-1]))
	return b.String()
}
