package cli

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/flowspectre/internal/models"
)

func TestWriteStatusTextNoRuns(t *testing.T) {
	out := captureStdout(t)
	result := statusResult{
		Config: statusConfig{
			Model:      "claude-test",
			Backend:    "anthropic",
			StorageDir: ".flowspectre",
		},
		ConfigFile: "/home/me/flowspectre.yaml",
	}

	if err := writeStatusText(result); err != nil {
		t.Fatalf("writeStatusText: %v", err)
	}
	text := out.String()
	for _, want := range []string{
		"claude-test (anthropic, API key missing)",
		".flowspectre",
		"/home/me/flowspectre.yaml",
		"No stored runs found.",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestWriteStatusTextRunsNewestFirst(t *testing.T) {
	out := captureStdout(t)
	older := time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	result := statusResult{
		Config: statusConfig{Model: "gpt-4o", Backend: "openai", HasKey: true},
		Runs: []statusRun{
			{FinishedAt: older, Framework: "express", Endpoints: 2, Vulnerabilities: 4, Missing: 3, Posture: "warning", PostureScore: 55},
			{FinishedAt: newer, Endpoints: 2, Vulnerabilities: 1, Missing: 1, Posture: "good", PostureScore: 80},
		},
		Trend: &models.TrendSummary{
			RunsAnalyzed:           2,
			TimeRange:              "2026-02-15 to 2026-02-15",
			VulnerabilitySparkline: []int{4, 1},
			MissingSparkline:       []int{3, 1},
		},
	}

	if err := writeStatusText(result); err != nil {
		t.Fatalf("writeStatusText: %v", err)
	}
	text := out.String()

	if !strings.Contains(text, "API key set") {
		t.Error("missing key status")
	}
	newerIdx := strings.Index(text, "2026-02-15 11:00:00")
	olderIdx := strings.Index(text, "2026-02-15 10:00:00")
	if newerIdx < 0 || olderIdx < 0 || newerIdx > olderIdx {
		t.Errorf("expected newest run listed first:\n%s", text)
	}
	if !strings.Contains(text, "GOOD (80.0%)") {
		t.Errorf("missing posture column:\n%s", text)
	}
	if !strings.Contains(text, "4 -> 1") || !strings.Contains(text, "3 -> 1") {
		t.Errorf("missing sparklines:\n%s", text)
	}
	// empty framework renders as a dash
	if !strings.Contains(text, " -  ") {
		t.Errorf("expected dash for unknown framework:\n%s", text)
	}
}

func TestJoinInts(t *testing.T) {
	if got := joinInts([]int{5, 3, 0}); got != "5 -> 3 -> 0" {
		t.Errorf("joinInts = %q", got)
	}
	if got := joinInts(nil); got != "" {
		t.Errorf("joinInts(nil) = %q", got)
	}
}

func TestRunStatusJSON(t *testing.T) {
	c := testConfig(t)
	c.AnthropicAPIKey = "sk-ant-test-key-1234567890"
	seedRuns(t, c, 3)
	out := captureStdout(t)
	setVar(t, &statusFormat, "json")
	setVar(t, &statusLastN, 2)

	if err := runStatus(statusCmd, nil); err != nil {
		t.Fatalf("runStatus: %v", err)
	}

	var got statusResult
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out.String())
	}
	if got.Config.Backend != "anthropic" || !got.Config.HasKey {
		t.Errorf("unexpected config %+v", got.Config)
	}
	if got.Config.MaxControl != 10 {
		t.Errorf("expected max_controls 10, got %d", got.Config.MaxControl)
	}
	if len(got.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(got.Runs))
	}
	if got.Runs[0].JobID != "job-2" || got.Runs[1].JobID != "job-3" {
		t.Errorf("expected last two runs oldest first, got %s, %s", got.Runs[0].JobID, got.Runs[1].JobID)
	}
	if got.Trend == nil || got.Trend.RunsAnalyzed != 2 {
		t.Errorf("expected trend over 2 runs, got %+v", got.Trend)
	}
	if got.Latest == nil {
		t.Error("expected latest trend")
	}
}

func TestRunStatusEmptyStorage(t *testing.T) {
	testConfig(t)
	out := captureStdout(t)
	setVar(t, &statusFormat, "text")
	setVar(t, &statusLastN, statusDefaultRuns)

	if err := runStatus(statusCmd, nil); err != nil {
		t.Fatalf("runStatus: %v", err)
	}
	if !strings.Contains(out.String(), "No stored runs found.") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestRunStatusBadFormat(t *testing.T) {
	testConfig(t)
	setVar(t, &statusFormat, "yaml")

	err := runStatus(statusCmd, nil)
	if HandleError(err) != ExitInvalidInput {
		t.Errorf("expected validation error, got %v", err)
	}
}
