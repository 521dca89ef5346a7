package tui

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ppiankov/flowspectre/internal/models"
)

func testResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		JobID:     "job-7",
		Framework: models.FrameworkInfo{Name: "flask", Confidence: 0.8},
		Endpoints: []models.EndpointProfile{
			{FlowName: "POST /login"},
			{FlowName: "GET /health"},
		},
		Checklists: []models.SecurityChecklist{
			{
				FlowName: "POST /login",
				RequiredControls: []models.SecurityControl{
					{ControlID: "AUTH-01", Name: "Authentication", Category: models.CategoryAuthentication, Importance: "critical"},
				},
				RecommendedControls: []models.SecurityControl{
					{ControlID: "LOG-01", Name: "Audit logging", Category: models.CategoryLoggingMonitoring, Importance: "low"},
				},
			},
			{
				FlowName: "GET /health",
				RecommendedControls: []models.SecurityControl{
					{ControlID: "RATE-01", Name: "Rate limiting", Category: models.CategoryRateLimiting, Importance: "medium"},
				},
			},
		},
		Reports: []models.SecurityReport{
			{
				FlowName:    "POST /login",
				Missing:     []models.MissingControl{{ControlID: "AUTH-01", Name: "Authentication", Risk: "credential stuffing", Recommendation: "add lockout"}},
				Implemented: []models.ImplementedControl{{ControlID: "LOG-01", Name: "Audit logging", Evidence: "logger.info on login"}},
				Vulnerabilities: []models.Vulnerability{
					{Title: "SQL injection", Severity: "critical", CWE: "CWE-89", Location: "routes/login.py:12", Description: "query concatenation"},
				},
			},
			{
				FlowName:        "GET /health",
				AutoHandled:     []models.AutoHandledControl{{ControlID: "RATE-01", Name: "Rate limiting", HandledBy: "nginx"}},
				Vulnerabilities: []models.Vulnerability{{Title: "Verbose errors", Severity: "low"}},
			},
		},
		Summary: models.AnalysisSummary{
			Endpoints:       2,
			TotalControls:   3,
			Implemented:     1,
			Missing:         1,
			AutoHandled:     1,
			Vulnerabilities: 2,
			BySeverity:      map[string]int{"critical": 1, "low": 1},
			Posture:         "critical",
			PostureScore:    60,
		},
		FinishedAt: time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC),
	}
}

func testFindings() []models.Finding {
	return []models.Finding{
		{FlowName: "POST /login", Kind: models.FindingVulnerability, ID: "CWE-89", Title: "SQL injection", Severity: "critical", Location: "routes/login.py:12"},
		{FlowName: "POST /login", Kind: models.FindingMissing, ID: "AUTH-01", Title: "Authentication", Severity: "critical", Category: models.CategoryAuthentication, Required: true},
		{FlowName: "POST /login", Kind: models.FindingImplemented, ID: "LOG-01", Title: "Audit logging", Severity: "none"},
		{FlowName: "GET /health", Kind: models.FindingVulnerability, Title: "Verbose errors", Severity: "low"},
		{FlowName: "GET /health", Kind: models.FindingAutoHandled, ID: "RATE-01", Title: "Rate limiting", Severity: "none", Detail: "nginx"},
	}
}

func newTestModel() Model {
	m := New(testResult(), nil)
	m.osc = &bytes.Buffer{}
	return m
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// --- Filter tests ---

func TestApplyFilters(t *testing.T) {
	tests := []struct {
		name    string
		filters filterState
		want    int
	}{
		{"none", filterState{}, 5},
		{"flow", filterState{Flow: "GET /health"}, 2},
		{"severity", filterState{Severity: "critical"}, 2},
		{"issues only", filterState{IssuesOnly: true}, 3},
		{"search id", filterState{SearchText: "cwe-89"}, 1},
		{"search detail", filterState{SearchText: "NGINX"}, 1},
		{"combined", filterState{Flow: "POST /login", IssuesOnly: true}, 2},
		{"no match", filterState{SearchText: "graphql"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyFilters(testFindings(), tt.filters)
			if len(got) != tt.want {
				t.Errorf("applyFilters(%+v) returned %d findings, want %d", tt.filters, len(got), tt.want)
			}
		})
	}
}

func TestSortFindingsBySeverity(t *testing.T) {
	findings := testFindings()
	sortFindings(findings, sortBySeverity)

	wantTitles := []string{"SQL injection", "Authentication", "Verbose errors", "Audit logging", "Rate limiting"}
	for i, want := range wantTitles {
		if findings[i].Title != want {
			t.Errorf("position %d: got %q, want %q", i, findings[i].Title, want)
		}
	}
}

func TestSortFindingsByFlow(t *testing.T) {
	findings := testFindings()
	sortFindings(findings, sortByFlow)
	if findings[0].FlowName != "GET /health" {
		t.Errorf("expected GET /health first, got %s", findings[0].FlowName)
	}
}

func TestSortFindingsByKind(t *testing.T) {
	findings := testFindings()
	sortFindings(findings, sortByKind)
	if findings[0].Kind != models.FindingVulnerability || findings[4].Kind != models.FindingAutoHandled {
		t.Errorf("unexpected kind order: first %s, last %s", findings[0].Kind, findings[4].Kind)
	}
}

func TestSortFindingsByID(t *testing.T) {
	findings := testFindings()
	sortFindings(findings, sortByID)
	// the unnamed vulnerability sorts first
	if findings[0].ID != "" || findings[1].ID != "AUTH-01" {
		t.Errorf("unexpected id order: %q, %q", findings[0].ID, findings[1].ID)
	}
}

func TestUniqueFlows(t *testing.T) {
	flows := uniqueFlows(testFindings())
	if len(flows) != 2 {
		t.Fatalf("expected 2 flows, got %d", len(flows))
	}
	if flows[0] != "GET /health" || flows[1] != "POST /login" {
		t.Errorf("expected sorted flows, got %v", flows)
	}
}

func TestUniqueFlowsEmpty(t *testing.T) {
	if flows := uniqueFlows(nil); len(flows) != 0 {
		t.Errorf("expected no flows, got %v", flows)
	}
}

func TestSortFieldName(t *testing.T) {
	tests := []struct {
		field sortField
		want  string
	}{
		{sortBySeverity, "severity"},
		{sortByFlow, "flow"},
		{sortByKind, "kind"},
		{sortByID, "id"},
		{sortByCategory, "category"},
		{sortField(99), "unknown"},
	}
	for _, tt := range tests {
		if got := sortFieldName(tt.field); got != tt.want {
			t.Errorf("sortFieldName(%d) = %q, want %q", tt.field, got, tt.want)
		}
	}
}

// --- Table tests ---

func TestBuildRows(t *testing.T) {
	rows := buildRows(testFindings())
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	first := rows[0]
	if first[0] != "CRITICAL" || first[1] != "POST /login" || first[2] != "vuln" || first[3] != "CWE-89" {
		t.Errorf("unexpected first row %v", first)
	}
	if rows[2][0] != "-" || rows[2][2] != "ok" {
		t.Errorf("implemented control row = %v", rows[2])
	}
	if rows[4][2] != "auto" {
		t.Errorf("auto-handled kind label = %q", rows[4][2])
	}
}

func TestBuildRowsEmpty(t *testing.T) {
	if rows := buildRows(nil); len(rows) != 0 {
		t.Errorf("expected 0 rows, got %d", len(rows))
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly-10", 10, "exactly-10"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestSeverityLabel(t *testing.T) {
	tests := map[string]string{
		"critical": "CRITICAL",
		"low":      "LOW",
		"none":     "-",
		"":         "-",
	}
	for in, want := range tests {
		if got := severityLabel(in); got != want {
			t.Errorf("severityLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

// --- Header tests ---

func TestRenderHeader(t *testing.T) {
	out := renderHeader(testResult(), nil, 120)

	for _, want := range []string{
		"flowspectre",
		"CRITICAL (60%)",
		"Framework: flask",
		"Endpoints: 2",
		"Controls: 2/3",
		"Vulnerabilities: 2",
		"C:1",
		"L:1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("header missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Trend:") {
		t.Error("no sparkline expected without history")
	}
}

func TestRenderHeaderUnknownFramework(t *testing.T) {
	result := testResult()
	result.Framework = models.FrameworkInfo{}
	result.Summary.Posture = ""
	out := renderHeader(result, nil, 120)
	if !strings.Contains(out, "Framework: unknown") {
		t.Errorf("expected unknown framework:\n%s", out)
	}
	if !strings.Contains(out, "UNKNOWN") {
		t.Errorf("expected unknown posture:\n%s", out)
	}
}

func TestRenderHeaderWithTrend(t *testing.T) {
	result := testResult()
	result.Trend = &models.Trend{Direction: "improving", ChangePercent: -20}
	out := renderHeader(result, []int{5, 3, 2}, 120)

	if !strings.Contains(out, "↓ -20.0%") {
		t.Errorf("expected trend indicator:\n%s", out)
	}
	if !strings.Contains(out, "Trend:") || !strings.Contains(out, "[5→2]") {
		t.Errorf("expected sparkline:\n%s", out)
	}
}

func TestRenderSparkline(t *testing.T) {
	if got := renderSparkline(nil); got != "" {
		t.Errorf("expected empty sparkline, got %q", got)
	}
	if got := renderSparkline([]int{4, 4, 4}); !strings.HasPrefix(got, "▅▅▅") {
		t.Errorf("constant values should render mid bars, got %q", got)
	}
	got := renderSparkline([]int{0, 7})
	if !strings.HasPrefix(got, "▁█") || !strings.HasSuffix(got, "[0→7]") {
		t.Errorf("unexpected sparkline %q", got)
	}
	if got := renderSparkline([]int{3}); !strings.HasSuffix(got, "[3→3]") {
		t.Errorf("single value sparkline = %q", got)
	}
}

// --- Detail tests ---

func TestRenderDetailNil(t *testing.T) {
	if out := renderDetail(nil, 80); !strings.Contains(out, "No finding selected") {
		t.Errorf("expected placeholder, got %q", out)
	}
}

func TestRenderDetailMissingControl(t *testing.T) {
	f := models.Finding{
		FlowName:       "POST /login",
		Kind:           models.FindingMissing,
		ID:             "AUTH-01",
		Title:          "Authentication",
		Severity:       "critical",
		Category:       models.CategoryAuthentication,
		Required:       true,
		Detail:         "credential stuffing",
		Recommendation: "add lockout",
	}
	out := renderDetail(&f, 120)

	for _, want := range []string{
		"CRITICAL",
		"missing",
		"POST /login",
		"Authentication (AUTH-01)",
		"[authentication, required]",
		"Risk: credential stuffing",
		"Fix: add lockout",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("detail missing %q:\n%s", want, out)
		}
	}
}

func TestRenderDetailVulnerability(t *testing.T) {
	f := models.Finding{
		FlowName: "POST /login",
		Kind:     models.FindingVulnerability,
		Title:    "Verbose errors",
		Severity: "low",
		Detail:   "stack traces returned",
		Location: "app.py:3",
	}
	out := renderDetail(&f, 120)
	if !strings.Contains(out, "Details: stack traces returned") {
		t.Errorf("expected details line:\n%s", out)
	}
	if !strings.Contains(out, "Location: app.py:3") {
		t.Errorf("expected location line:\n%s", out)
	}
	if strings.Contains(out, "Fix:") {
		t.Errorf("no fix line expected without a recommendation:\n%s", out)
	}
	if strings.Contains(out, "()") {
		t.Errorf("empty id should not render parentheses:\n%s", out)
	}
}

func TestDetailLabel(t *testing.T) {
	tests := map[models.FindingKind]string{
		models.FindingMissing:       "Risk",
		models.FindingImplemented:   "Evidence",
		models.FindingAutoHandled:   "Handled by",
		models.FindingVulnerability: "Details",
	}
	for kind, want := range tests {
		if got := detailLabel(kind); got != want {
			t.Errorf("detailLabel(%s) = %q, want %q", kind, got, want)
		}
	}
}

// --- Model state tests ---

func TestModelInit(t *testing.T) {
	if cmd := newTestModel().Init(); cmd != nil {
		t.Error("Init should return nil cmd")
	}
}

func TestModelInitialSort(t *testing.T) {
	m := newTestModel()
	if len(m.filteredFindings) != 5 {
		t.Fatalf("expected 5 findings, got %d", len(m.filteredFindings))
	}
	first := m.filteredFindings[0]
	if first.Severity != "critical" || first.Kind != models.FindingVulnerability {
		t.Errorf("expected critical vulnerability first, got %+v", first)
	}
	if len(m.flowChoices) != 2 {
		t.Errorf("expected 2 flow choices, got %v", m.flowChoices)
	}
}

func TestModelWindowResize(t *testing.T) {
	updated, _ := newTestModel().Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	model := updated.(Model)
	if model.width != 120 || model.height != 40 {
		t.Errorf("expected 120x40, got %dx%d", model.width, model.height)
	}
}

func TestModelWindowResizeSmall(t *testing.T) {
	updated, _ := newTestModel().Update(tea.WindowSizeMsg{Width: 40, Height: 10})
	model := updated.(Model)
	if model.width != 40 {
		t.Errorf("expected width 40, got %d", model.width)
	}
	if out := model.View(); !strings.Contains(out, "findings") {
		t.Error("footer should still render on a small terminal")
	}
}

func TestModelQuit(t *testing.T) {
	_, cmd := newTestModel().Update(runeKey('q'))
	if cmd == nil {
		t.Fatal("expected quit command, got nil")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestModelEnterSearch(t *testing.T) {
	updated, _ := newTestModel().Update(runeKey('/'))
	if model := updated.(Model); model.mode != modeSearch {
		t.Errorf("expected modeSearch, got %d", model.mode)
	}
}

func TestModelSearchEnter(t *testing.T) {
	m := newTestModel()
	m.mode = modeSearch
	m.searchInput.SetValue("login")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model := updated.(Model)
	if model.mode != modeNormal {
		t.Errorf("expected modeNormal after enter, got %d", model.mode)
	}
	if model.filters.SearchText != "login" {
		t.Errorf("expected search text 'login', got %q", model.filters.SearchText)
	}
	if len(model.filteredFindings) != 3 {
		t.Errorf("expected 3 findings for POST /login, got %d", len(model.filteredFindings))
	}
}

func TestModelSearchEscape(t *testing.T) {
	m := newTestModel()
	m.mode = modeSearch
	m.searchInput.SetValue("abc")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEscape})
	model := updated.(Model)
	if model.mode != modeNormal {
		t.Errorf("expected modeNormal after esc, got %d", model.mode)
	}
	if model.searchInput.Value() != "" {
		t.Errorf("expected search input cleared, got %q", model.searchInput.Value())
	}
}

func TestModelIssuesOnlyToggle(t *testing.T) {
	updated, _ := newTestModel().Update(runeKey('i'))
	model := updated.(Model)
	if !model.filters.IssuesOnly || len(model.filteredFindings) != 3 {
		t.Fatalf("expected 3 issues, got %d (issuesOnly=%v)", len(model.filteredFindings), model.filters.IssuesOnly)
	}
	if model.statusMsg != "Issues only" {
		t.Errorf("unexpected status %q", model.statusMsg)
	}

	updated, _ = model.Update(runeKey('i'))
	model = updated.(Model)
	if model.filters.IssuesOnly || len(model.filteredFindings) != 5 {
		t.Errorf("expected all 5 findings after second toggle, got %d", len(model.filteredFindings))
	}
}

func TestModelCycleSort(t *testing.T) {
	m := newTestModel()
	updated, _ := m.Update(runeKey('s'))
	model := updated.(Model)
	if model.sortBy != sortByFlow {
		t.Errorf("expected sort by flow after one cycle, got %d", model.sortBy)
	}
	if !strings.Contains(model.statusMsg, "flow") {
		t.Errorf("expected status to mention sort field, got %q", model.statusMsg)
	}

	for i := 0; i < sortFieldCount-1; i++ {
		updated, _ = model.Update(runeKey('s'))
		model = updated.(Model)
	}
	if model.sortBy != sortBySeverity {
		t.Errorf("expected sort to wrap to severity, got %d", model.sortBy)
	}
}

func TestModelClearFilter(t *testing.T) {
	m := newTestModel()
	m.filters = filterState{Flow: "GET /health", IssuesOnly: true}
	m.statusMsg = "Flow: GET /health"
	m.rebuildTable()
	if len(m.filteredFindings) != 1 {
		t.Fatalf("expected 1 filtered finding, got %d", len(m.filteredFindings))
	}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEscape})
	model := updated.(Model)
	if model.filters != (filterState{}) {
		t.Errorf("expected filters cleared, got %+v", model.filters)
	}
	if model.statusMsg != "" {
		t.Errorf("expected status cleared, got %q", model.statusMsg)
	}
	if len(model.filteredFindings) != 5 {
		t.Errorf("expected all 5 findings after clear, got %d", len(model.filteredFindings))
	}
}

func TestModelFilterFlowNavigate(t *testing.T) {
	updated, _ := newTestModel().Update(runeKey('f'))
	model := updated.(Model)
	if model.mode != modeFilterFlow {
		t.Fatalf("expected modeFilterFlow, got %d", model.mode)
	}

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model = updated.(Model)
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model = updated.(Model)
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model = updated.(Model)
	if model.flowCursor != 2 {
		t.Errorf("cursor should stop at the last flow, got %d", model.flowCursor)
	}

	for i := 0; i < 3; i++ {
		updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyUp})
		model = updated.(Model)
	}
	if model.flowCursor != 0 {
		t.Errorf("cursor should stop at All, got %d", model.flowCursor)
	}
}

func TestModelFilterFlowSelect(t *testing.T) {
	m := newTestModel()
	m.mode = modeFilterFlow
	m.flowCursor = 2

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model := updated.(Model)
	if model.mode != modeNormal {
		t.Errorf("expected modeNormal after enter, got %d", model.mode)
	}
	if model.filters.Flow != "POST /login" {
		t.Errorf("expected flow filter POST /login, got %q", model.filters.Flow)
	}
	if len(model.filteredFindings) != 3 {
		t.Errorf("expected 3 findings, got %d", len(model.filteredFindings))
	}
	if model.statusMsg != "Flow: POST /login" {
		t.Errorf("unexpected status %q", model.statusMsg)
	}
}

func TestModelFilterFlowSelectAll(t *testing.T) {
	m := newTestModel()
	m.filters.Flow = "GET /health"
	m.mode = modeFilterFlow
	m.flowCursor = 0

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if model := updated.(Model); model.filters.Flow != "" {
		t.Errorf("expected empty flow filter for All, got %q", model.filters.Flow)
	}
}

func TestModelFilterFlowEscape(t *testing.T) {
	m := newTestModel()
	m.mode = modeFilterFlow

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEscape})
	if model := updated.(Model); model.mode != modeNormal {
		t.Errorf("expected modeNormal after esc, got %d", model.mode)
	}
}

func TestModelCopySelected(t *testing.T) {
	m := New(testResult(), nil)
	var osc bytes.Buffer
	m.osc = &osc

	updated, _ := m.Update(runeKey('c'))
	model := updated.(Model)

	want := "[critical] POST /login vulnerability: SQL injection (CWE-89) at routes/login.py:12 -- query concatenation"
	if model.clipboard != want {
		t.Errorf("clipboard = %q\nwant %q", model.clipboard, want)
	}
	if model.statusMsg != "Copied!" {
		t.Errorf("unexpected status %q", model.statusMsg)
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(want))
	if osc.String() != "\033]52;c;"+encoded+"\a" {
		t.Errorf("unexpected OSC 52 sequence %q", osc.String())
	}
}

func TestModelCopyNoSelection(t *testing.T) {
	m := newTestModel()
	m.filteredFindings = nil
	m.table.SetRows(nil)

	m.copySelectedFinding()
	if m.statusMsg != "Nothing to copy" {
		t.Errorf("expected 'Nothing to copy', got %q", m.statusMsg)
	}
	if m.clipboard != "" {
		t.Errorf("clipboard should stay empty, got %q", m.clipboard)
	}
}

func TestModelView(t *testing.T) {
	m := newTestModel()
	m.width = 120
	m.height = 40
	out := m.View()

	for _, want := range []string{"flowspectre", "q:quit", "i:issues", "5/5 findings", "SQL injection"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModelViewSearchMode(t *testing.T) {
	m := newTestModel()
	m.mode = modeSearch
	if out := m.View(); !strings.Contains(out, "/ ") {
		t.Error("expected search prompt in view when in search mode")
	}
}

func TestModelViewFilterMode(t *testing.T) {
	m := newTestModel()
	m.mode = modeFilterFlow
	out := m.View()
	if !strings.Contains(out, "Filter by flow:") || !strings.Contains(out, "> All") {
		t.Errorf("expected flow picker in view:\n%s", out)
	}
}

func TestModelViewWithTrend(t *testing.T) {
	trend := &models.TrendSummary{
		TimeRange:              "Last 7 days",
		RunsAnalyzed:           4,
		VulnerabilitySparkline: []int{6, 4, 3, 2},
	}
	m := New(testResult(), trend)
	m.width = 120
	if out := m.View(); !strings.Contains(out, "Trend:") {
		t.Error("expected sparkline in view with trend data")
	}
}

func TestModelViewEmptyResult(t *testing.T) {
	m := New(&models.AnalysisResult{}, nil)
	m.width = 120
	out := m.View()
	if !strings.Contains(out, "0/0 findings") {
		t.Errorf("expected empty footer count:\n%s", out)
	}
	if !strings.Contains(out, "No finding selected") {
		t.Errorf("expected empty detail panel:\n%s", out)
	}
}

func TestModelDoesNotMutateResult(t *testing.T) {
	result := testResult()
	m := New(result, nil)
	m.filters = filterState{Flow: "GET /health"}
	m.rebuildTable()

	if len(m.allFindings) != 5 {
		t.Errorf("allFindings mutated: got %d", len(m.allFindings))
	}
	if len(result.Reports[0].Vulnerabilities) != 1 || result.Reports[0].FlowName != "POST /login" {
		t.Error("result reports mutated")
	}
}

func TestStylesRender(t *testing.T) {
	for _, sev := range []string{"critical", "high", "medium", "low", "info", "none"} {
		_ = severityStyle(sev).Render("x")
	}
	for _, p := range []string{"excellent", "good", "warning", "critical", "severe", "unknown"} {
		_ = postureStyle(p).Render("x")
	}
	for _, k := range []models.FindingKind{models.FindingVulnerability, models.FindingMissing, models.FindingImplemented, models.FindingAutoHandled, "other"} {
		_ = kindStyle(k).Render("x")
	}
}
