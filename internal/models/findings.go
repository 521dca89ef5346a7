package models

import "time"

// FindingKind classifies a flattened finding.
type FindingKind string

const (
	FindingVulnerability FindingKind = "vulnerability"
	FindingMissing       FindingKind = "missing"
	FindingImplemented   FindingKind = "implemented"
	FindingAutoHandled   FindingKind = "auto_handled"
)

// Finding is the atomic unit every report maps into.
// Exporters, the TUI and the policy gate all work on this flat list.
type Finding struct {
	FlowName       string          `json:"flow_name"`
	Kind           FindingKind     `json:"kind"`
	ID             string          `json:"id"`       // control id or CWE
	Title          string          `json:"title"`    // control name or vulnerability title
	Severity       string          `json:"severity"` // vulnerability severity or control importance
	Category       ControlCategory `json:"category,omitempty"`
	Required       bool            `json:"required,omitempty"`
	Detail         string          `json:"detail,omitempty"` // description, risk, evidence or handler
	Location       string          `json:"location,omitempty"`
	Recommendation string          `json:"recommendation,omitempty"`
}

// IsIssue reports whether the finding needs attention.
func (f Finding) IsIssue() bool {
	return f.Kind == FindingVulnerability || f.Kind == FindingMissing
}

// Trend represents change between the current and a previous run
type Trend struct {
	Direction               string    `json:"direction"`      // "improving", "degrading", "stable"
	ChangePercent           float64   `json:"change_percent"` // negative = improvement
	PreviousVulnerabilities int       `json:"previous_vulnerabilities"`
	CurrentVulnerabilities  int       `json:"current_vulnerabilities"`
	PreviousMissing         int       `json:"previous_missing"`
	CurrentMissing          int       `json:"current_missing"`
	ComparedWith            time.Time `json:"compared_with"`
	NewFindings             int       `json:"new_findings"`
	ResolvedFindings        int       `json:"resolved_findings"`
}

// Recommendation represents an actionable item to fix
type Recommendation struct {
	Severity string   `json:"severity"`
	ID       string   `json:"id"`
	Action   string   `json:"action"`
	Impact   string   `json:"impact"`
	Flows    []string `json:"flows"`
	Count    int      `json:"count"`
}

// CalculatePostureScore rates how many checklist controls are covered.
// covered is implemented plus auto-handled controls; the score is clamped 0-100.
func CalculatePostureScore(covered, total int) (string, float64) {
	if total == 0 {
		return "unknown", 0.0
	}

	score := float64(covered) / float64(total) * 100.0
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	var posture string
	switch {
	case score >= 95:
		posture = "excellent"
	case score >= 85:
		posture = "good"
	case score >= 70:
		posture = "warning"
	case score >= 50:
		posture = "critical"
	default:
		posture = "severe"
	}
	return posture, score
}

// TrendSummary provides historical trend analysis across stored runs
type TrendSummary struct {
	TimeRange              string `json:"time_range"` // e.g., "Last 7 days"
	RunsAnalyzed           int    `json:"runs_analyzed"`
	VulnerabilitySparkline []int  `json:"vulnerability_sparkline"`
	MissingSparkline       []int  `json:"missing_sparkline"`
}
