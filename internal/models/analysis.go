package models

import "time"

// FileEntry is one file of the in-memory codebase. Agents treat it as read-only.
type FileEntry struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Size    int    `json:"size"`
}

// FrameworkInfo is the detected web framework of a codebase.
type FrameworkInfo struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"` // 0-1
}

// Sensitivity levels for endpoints
const (
	SensitivityLow      = "low"
	SensitivityMedium   = "medium"
	SensitivityHigh     = "high"
	SensitivityCritical = "critical"
)

// Severity levels for vulnerabilities and control importance
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
	SeverityNone     = "none"
)

// severityRank orders severities from least to most severe.
var severityRank = map[string]int{
	SeverityNone:     0,
	SeverityInfo:     1,
	SeverityLow:      2,
	SeverityMedium:   3,
	SeverityHigh:     4,
	SeverityCritical: 5,
}

// SeverityRank returns the ordering weight of a severity. Unknown values rank as none.
func SeverityRank(severity string) int {
	return severityRank[severity]
}

// EndpointProfile is the terminal artifact of one discovery trace.
// FlowName is the join key used by every downstream stage.
type EndpointProfile struct {
	FlowName         string   `json:"flow_name"`
	Purpose          string   `json:"purpose"`
	EntryPoint       string   `json:"entry_point"`
	InputTypes       []string `json:"input_types"`
	OutputTypes      []string `json:"output_types"`
	SensitivityLevel string   `json:"sensitivity_level"`
	MarkDown         string   `json:"mark_down"`
}

// FlowProfile is an EndpointProfile without the raw code trace.
type FlowProfile struct {
	FlowName         string   `json:"flow_name"`
	Purpose          string   `json:"purpose"`
	EntryPoint       string   `json:"entry_point"`
	InputTypes       []string `json:"input_types"`
	OutputTypes      []string `json:"output_types"`
	SensitivityLevel string   `json:"sensitivity_level"`
}

// Flow returns the checklist-facing summary of the endpoint.
func (e EndpointProfile) Flow() FlowProfile {
	return FlowProfile{
		FlowName:         e.FlowName,
		Purpose:          e.Purpose,
		EntryPoint:       e.EntryPoint,
		InputTypes:       e.InputTypes,
		OutputTypes:      e.OutputTypes,
		SensitivityLevel: e.SensitivityLevel,
	}
}

// ControlCategory groups security controls.
type ControlCategory string

const (
	CategoryAuthentication       ControlCategory = "authentication"
	CategoryAuthorization        ControlCategory = "authorization"
	CategoryInputValidation      ControlCategory = "input_validation"
	CategoryOutputEncoding       ControlCategory = "output_encoding"
	CategoryCryptography         ControlCategory = "cryptography"
	CategorySessionManagement    ControlCategory = "session_management"
	CategoryErrorHandling        ControlCategory = "error_handling"
	CategoryLoggingMonitoring    ControlCategory = "logging_monitoring"
	CategoryDataProtection       ControlCategory = "data_protection"
	CategoryRateLimiting         ControlCategory = "rate_limiting"
	CategoryConfiguration        ControlCategory = "configuration"
	CategoryDependencyManagement ControlCategory = "dependency_management"
)

// ControlCategories lists every known category in display order.
var ControlCategories = []ControlCategory{
	CategoryAuthentication,
	CategoryAuthorization,
	CategoryInputValidation,
	CategoryOutputEncoding,
	CategoryCryptography,
	CategorySessionManagement,
	CategoryErrorHandling,
	CategoryLoggingMonitoring,
	CategoryDataProtection,
	CategoryRateLimiting,
	CategoryConfiguration,
	CategoryDependencyManagement,
}

// SecurityControl is a named, categorized security requirement.
type SecurityControl struct {
	ControlID    string          `json:"control_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Category     ControlCategory `json:"category"`
	Importance   string          `json:"importance"` // critical, high, medium, low
	OWASPMapping []string        `json:"owasp_mapping"`
}

// Reference is a documentation link attached to a checklist.
type Reference struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SecurityChecklist is the set of controls derived for one endpoint.
type SecurityChecklist struct {
	FlowName            string            `json:"flow_name"`
	RequiredControls    []SecurityControl `json:"required_controls"`
	RecommendedControls []SecurityControl `json:"recommended_controls"`
	References          []Reference       `json:"references"`
}

// Controls returns required controls followed by recommended ones.
func (c SecurityChecklist) Controls() []SecurityControl {
	all := make([]SecurityControl, 0, len(c.RequiredControls)+len(c.RecommendedControls))
	all = append(all, c.RequiredControls...)
	all = append(all, c.RecommendedControls...)
	return all
}

// ControlIDs returns the set of control ids in the checklist.
func (c SecurityChecklist) ControlIDs() map[string]bool {
	ids := make(map[string]bool, len(c.RequiredControls)+len(c.RecommendedControls))
	for _, ctrl := range c.Controls() {
		ids[ctrl.ControlID] = true
	}
	return ids
}

// ImplementedControl is a control with evidence in the code.
type ImplementedControl struct {
	ControlID string `json:"control_id"`
	Name      string `json:"name"`
	Evidence  string `json:"evidence"`
	Location  string `json:"location,omitempty"`
}

// MissingControl is a control the code does not implement.
type MissingControl struct {
	ControlID      string `json:"control_id"`
	Name           string `json:"name"`
	Risk           string `json:"risk"`
	Recommendation string `json:"recommendation,omitempty"`
}

// AutoHandledControl is satisfied by framework or library defaults.
type AutoHandledControl struct {
	ControlID string `json:"control_id"`
	Name      string `json:"name"`
	HandledBy string `json:"handled_by"`
}

// Vulnerability is a concrete weakness found during inspection.
type Vulnerability struct {
	Title          string `json:"title"`
	Severity       string `json:"severity"`
	Description    string `json:"description"`
	Location       string `json:"location,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
	CWE            string `json:"cwe,omitempty"`
}

// ReportSummary is the per-endpoint summary returned by the inspection agent.
type ReportSummary struct {
	TotalControls        int    `json:"total_controls"`
	ImplementedCount     int    `json:"implemented_count"`
	MissingCount         int    `json:"missing_count"`
	AutoHandledCount     int    `json:"auto_handled_count"`
	VulnerabilitiesCount int    `json:"vulnerabilities_count"`
	OverallSeverity      string `json:"overall_severity"`
}

// SecurityReport is the inspection result for one endpoint.
type SecurityReport struct {
	FlowName        string               `json:"flow_name"`
	Implemented     []ImplementedControl `json:"implemented"`
	Missing         []MissingControl     `json:"missing"`
	AutoHandled     []AutoHandledControl `json:"auto_handled"`
	Vulnerabilities []Vulnerability      `json:"vulnerabilities"`
	Summary         ReportSummary        `json:"summary"`
}

// AnalysisSummary aggregates counts across all endpoints of a job.
type AnalysisSummary struct {
	Endpoints       int            `json:"endpoints"`
	Checklists      int            `json:"checklists"`
	Reports         int            `json:"reports"`
	TotalControls   int            `json:"total_controls"`
	Implemented     int            `json:"implemented"`
	Missing         int            `json:"missing"`
	AutoHandled     int            `json:"auto_handled"`
	Vulnerabilities int            `json:"vulnerabilities"`
	BySeverity      map[string]int `json:"by_severity"`
	OverallSeverity string         `json:"overall_severity"`
	Posture         string         `json:"posture"`       // excellent, good, warning, critical, severe
	PostureScore    float64        `json:"posture_score"` // 0-100
}

// AnalysisResult is the final output of one analysis job.
type AnalysisResult struct {
	JobID             string              `json:"job_id"`
	Model             string              `json:"model"`
	Framework         FrameworkInfo       `json:"framework"`
	Endpoints         []EndpointProfile   `json:"endpoints"`
	Checklists        []SecurityChecklist `json:"checklists"`
	Reports           []SecurityReport    `json:"reports"`
	Summary           AnalysisSummary     `json:"summary"`
	IntegrityWarnings []string            `json:"integrity_warnings,omitempty"`
	Recommendations   []Recommendation    `json:"recommendations,omitempty"`
	Trend             *Trend              `json:"trend,omitempty"`
	StartedAt         time.Time           `json:"started_at"`
	FinishedAt        time.Time           `json:"finished_at"`
	Elapsed           time.Duration       `json:"elapsed"`
}

// ChecklistFor returns the checklist matching a flow name.
func (r *AnalysisResult) ChecklistFor(flowName string) (SecurityChecklist, bool) {
	for _, c := range r.Checklists {
		if c.FlowName == flowName {
			return c, true
		}
	}
	return SecurityChecklist{}, false
}

// EndpointFor returns the endpoint matching a flow name.
func (r *AnalysisResult) EndpointFor(flowName string) (EndpointProfile, bool) {
	for _, e := range r.Endpoints {
		if e.FlowName == flowName {
			return e, true
		}
	}
	return EndpointProfile{}, false
}
