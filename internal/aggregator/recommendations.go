package aggregator

import (
	"fmt"
	"sort"

	"github.com/ppiankov/flowspectre/internal/models"
)

// findingGroup is a set of findings sharing a kind and identity across flows
type findingGroup struct {
	kind     models.FindingKind
	id       string
	title    string
	severity string
	required bool
	flows    []string
}

// RecommendationGenerator creates actionable recommendations from findings
type RecommendationGenerator struct{}

// NewRecommendationGenerator creates a new recommendation generator
func NewRecommendationGenerator() *RecommendationGenerator {
	return &RecommendationGenerator{}
}

// GenerateRecommendations groups issue findings across endpoints and
// returns them most urgent first.
func (r *RecommendationGenerator) GenerateRecommendations(findings []models.Finding) []models.Recommendation {
	groups := make(map[string]*findingGroup)
	var order []string

	for _, f := range findings {
		if !f.IsIssue() {
			continue
		}
		key := groupKey(f)
		g, exists := groups[key]
		if !exists {
			g = &findingGroup{kind: f.Kind, id: f.ID, title: f.Title, severity: f.Severity, required: f.Required}
			groups[key] = g
			order = append(order, key)
		}
		if models.SeverityRank(f.Severity) > models.SeverityRank(g.severity) {
			g.severity = f.Severity
		}
		g.required = g.required || f.Required
		g.flows = append(g.flows, f.FlowName)
	}

	recommendations := make([]models.Recommendation, 0, len(order))
	for _, key := range order {
		g := groups[key]
		recommendations = append(recommendations, models.Recommendation{
			Severity: g.severity,
			ID:       g.id,
			Action:   r.generateAction(g),
			Impact:   r.generateImpact(g),
			Flows:    g.flows,
			Count:    len(g.flows),
		})
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		pi, pj := r.severityPriority(recommendations[i].Severity), r.severityPriority(recommendations[j].Severity)
		if pi != pj {
			return pi > pj
		}
		return recommendations[i].Count > recommendations[j].Count
	})

	return recommendations
}

func groupKey(f models.Finding) string {
	if f.Kind == models.FindingVulnerability {
		if f.ID != "" {
			return "vuln:" + f.ID
		}
		return "vuln:" + f.Title
	}
	return "missing:" + f.ID
}

// generateAction creates actionable text based on kind and count
func (r *RecommendationGenerator) generateAction(group *findingGroup) string {
	label := group.title
	if group.id != "" {
		label = fmt.Sprintf("%s (%s)", group.title, group.id)
	}

	switch group.kind {
	case models.FindingVulnerability:
		return fmt.Sprintf("Fix %s in %d endpoint(s)", label, len(group.flows))
	case models.FindingMissing:
		if group.required {
			return fmt.Sprintf("Implement required control %s on %d endpoint(s)", label, len(group.flows))
		}
		return fmt.Sprintf("Consider adding %s on %d endpoint(s)", label, len(group.flows))
	default:
		return fmt.Sprintf("Review %s", label)
	}
}

// generateImpact describes the potential impact based on severity and kind
func (r *RecommendationGenerator) generateImpact(group *findingGroup) string {
	switch group.severity {
	case models.SeverityCritical:
		if group.kind == models.FindingVulnerability {
			return "Exploitable weakness; immediate action required"
		}
		return "Endpoint is exposed without a critical safeguard"
	case models.SeverityHigh:
		if group.kind == models.FindingVulnerability {
			return "Significant risk of compromise or data exposure"
		}
		return "Important protection is absent"
	case models.SeverityMedium:
		return "Moderate risk; schedule a fix"
	case models.SeverityLow:
		return "Low priority hardening"
	default:
		return "Review and address as needed"
	}
}

// severityPriority returns numeric priority for sorting (higher = more urgent)
func (r *RecommendationGenerator) severityPriority(severity string) int {
	return models.SeverityRank(severity)
}

// GetTopRecommendations returns the top N most critical recommendations
func (r *RecommendationGenerator) GetTopRecommendations(recommendations []models.Recommendation, n int) []models.Recommendation {
	if n >= len(recommendations) {
		return recommendations
	}
	return recommendations[:n]
}

// GroupBySeverity groups recommendations by severity level
func (r *RecommendationGenerator) GroupBySeverity(recommendations []models.Recommendation) map[string][]models.Recommendation {
	grouped := make(map[string][]models.Recommendation)

	for _, rec := range recommendations {
		grouped[rec.Severity] = append(grouped[rec.Severity], rec)
	}

	return grouped
}
