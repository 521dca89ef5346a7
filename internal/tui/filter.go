package tui

import (
	"sort"
	"strings"

	"github.com/ppiankov/flowspectre/internal/models"
)

// filterState holds current active filters.
type filterState struct {
	Flow       string
	Severity   string
	IssuesOnly bool
	SearchText string
}

// sortField enumerates columns that can be sorted.
type sortField int

const (
	sortBySeverity sortField = iota
	sortByFlow
	sortByKind
	sortByID
	sortByCategory
)

// sortFieldCount is the total number of sortable columns.
const sortFieldCount = 5

// kindPriority puts actionable findings first.
var kindPriority = map[models.FindingKind]int{
	models.FindingVulnerability: 0,
	models.FindingMissing:       1,
	models.FindingImplemented:   2,
	models.FindingAutoHandled:   3,
}

// applyFilters returns findings matching all active filters.
func applyFilters(findings []models.Finding, f filterState) []models.Finding {
	result := make([]models.Finding, 0, len(findings))
	searchLower := strings.ToLower(f.SearchText)

	for _, finding := range findings {
		if f.Flow != "" && finding.FlowName != f.Flow {
			continue
		}
		if f.Severity != "" && finding.Severity != f.Severity {
			continue
		}
		if f.IssuesOnly && !finding.IsIssue() {
			continue
		}
		if searchLower != "" && !matchesSearch(finding, searchLower) {
			continue
		}
		result = append(result, finding)
	}
	return result
}

func matchesSearch(f models.Finding, searchLower string) bool {
	for _, field := range []string{
		f.FlowName, string(f.Kind), f.ID, f.Title, f.Severity,
		string(f.Category), f.Detail, f.Location, f.Recommendation,
	} {
		if strings.Contains(strings.ToLower(field), searchLower) {
			return true
		}
	}
	return false
}

// sortFindings sorts findings in place by the given field.
func sortFindings(findings []models.Finding, field sortField) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		switch field {
		case sortBySeverity:
			ra, rb := models.SeverityRank(a.Severity), models.SeverityRank(b.Severity)
			if ra != rb {
				return ra > rb
			}
			return kindPriority[a.Kind] < kindPriority[b.Kind]
		case sortByFlow:
			return a.FlowName < b.FlowName
		case sortByKind:
			return kindPriority[a.Kind] < kindPriority[b.Kind]
		case sortByID:
			return a.ID < b.ID
		case sortByCategory:
			return a.Category < b.Category
		default:
			return false
		}
	})
}

// uniqueFlows returns deduplicated, sorted flow names.
func uniqueFlows(findings []models.Finding) []string {
	seen := make(map[string]bool)
	var flows []string
	for _, f := range findings {
		if !seen[f.FlowName] {
			seen[f.FlowName] = true
			flows = append(flows, f.FlowName)
		}
	}
	sort.Strings(flows)
	return flows
}

// sortFieldName returns a human-readable name for the sort field.
func sortFieldName(f sortField) string {
	switch f {
	case sortBySeverity:
		return "severity"
	case sortByFlow:
		return "flow"
	case sortByKind:
		return "kind"
	case sortByID:
		return "id"
	case sortByCategory:
		return "category"
	default:
		return "unknown"
	}
}
