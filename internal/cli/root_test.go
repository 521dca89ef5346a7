package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/ppiankov/flowspectre/internal/config"
	"github.com/ppiankov/flowspectre/internal/models"
	"github.com/ppiankov/flowspectre/internal/storage"
)

// --- Test helpers ---

// captureStdout redirects report output into a buffer for the test.
func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })
	return &buf
}

// captureLog installs a debug logger writing into a buffer for the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := logger
	logger = hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Debug})
	t.Cleanup(func() { logger = old })
	return &buf
}

// withTestConfig sets the global cfg for the duration of the test.
func withTestConfig(t *testing.T, c *config.Config) {
	t.Helper()
	old := cfg
	cfg = c
	t.Cleanup(func() { cfg = old })
}

// testConfig returns defaults with storage in a temp directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := config.DefaultConfig()
	c.Model = "claude-test"
	c.StorageDir = filepath.Join(t.TempDir(), "store")
	c.AnthropicAPIKey = ""
	c.OpenAIAPIKey = ""
	c.GeminiAPIKey = ""
	withTestConfig(t, c)
	return c
}

// setVar assigns a flag variable and restores it after the test.
func setVar[T any](t *testing.T, p *T, v T) {
	t.Helper()
	old := *p
	*p = v
	t.Cleanup(func() { *p = old })
}

// storedResult builds a minimal result finishing at the given time.
func storedResult(jobID string, finished time.Time, vulns, missing int) *models.AnalysisResult {
	return &models.AnalysisResult{
		JobID:      jobID,
		Model:      "claude-test",
		Framework:  models.FrameworkInfo{Name: "express", Confidence: 0.9},
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
		Elapsed:    time.Minute,
		Summary: models.AnalysisSummary{
			Endpoints:       1,
			Checklists:      1,
			Reports:         1,
			TotalControls:   missing + 1,
			Implemented:     1,
			Missing:         missing,
			Vulnerabilities: vulns,
			BySeverity:      map[string]int{models.SeverityHigh: vulns},
			OverallSeverity: models.SeverityHigh,
			Posture:         "warning",
			PostureScore:    62.5,
		},
	}
}

// seedRuns saves n results one hour apart and returns them oldest first.
func seedRuns(t *testing.T, c *config.Config, n int) []*models.AnalysisResult {
	t.Helper()
	st := storage.NewLocal(c.StorageDir)
	base := time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)
	var out []*models.AnalysisResult
	for i := 0; i < n; i++ {
		r := storedResult(fmt.Sprintf("job-%d", i+1), base.Add(time.Duration(i)*time.Hour), 3-i, 2)
		if _, err := st.SaveResult(r); err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
		out = append(out, r)
	}
	return out
}

// --- HandleError tests ---

func TestHandleErrorNil(t *testing.T) {
	if code := HandleError(nil); code != ExitOK {
		t.Errorf("HandleError(nil) = %d, want %d", code, ExitOK)
	}
}

func TestHandleErrorValidation(t *testing.T) {
	err := &ValidationError{Message: "bad input"}
	if code := HandleError(err); code != ExitInvalidInput {
		t.Errorf("HandleError(ValidationError) = %d, want %d", code, ExitInvalidInput)
	}
}

func TestHandleErrorWrappedValidation(t *testing.T) {
	err := fmt.Errorf("analyze: %w", &ValidationError{Message: "bad model"})
	if code := HandleError(err); code != ExitInvalidInput {
		t.Errorf("HandleError(wrapped ValidationError) = %d, want %d", code, ExitInvalidInput)
	}
}

func TestHandleErrorPolicy(t *testing.T) {
	err := &PolicyViolationError{Violations: 2}
	if code := HandleError(err); code != ExitPolicyFail {
		t.Errorf("HandleError(PolicyViolationError) = %d, want %d", code, ExitPolicyFail)
	}
}

func TestHandleErrorGeneric(t *testing.T) {
	if code := HandleError(errors.New("boom")); code != ExitRuntimeError {
		t.Errorf("HandleError(generic) = %d, want %d", code, ExitRuntimeError)
	}
	if code := HandleError(os.ErrPermission); code != ExitRuntimeError {
		t.Errorf("HandleError(permission) = %d, want %d", code, ExitRuntimeError)
	}
}

// --- Error messages ---

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Message: "unsupported model"}
	if err.Error() != "unsupported model" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestPolicyViolationErrorMessage(t *testing.T) {
	err := &PolicyViolationError{Violations: 3}
	want := "policy check failed with 3 violation(s)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// --- Version ---

func TestSetVersion(t *testing.T) {
	setVar(t, &Version, "0.1.0-dev")
	SetVersion("1.2.3")
	if Version != "1.2.3" {
		t.Errorf("Version = %q, want 1.2.3", Version)
	}
}

func TestSetVersionDevKeepsDefault(t *testing.T) {
	setVar(t, &Version, "0.1.0-dev")
	SetVersion("dev")
	SetVersion("")
	if Version != "0.1.0-dev" {
		t.Errorf("Version = %q, want default", Version)
	}
}

func TestVersionCommandViaRoot(t *testing.T) {
	out := captureStdout(t)
	setVar(t, &Version, "9.9.9")
	setVar(t, &configFile, "")
	old := cfg
	oldLogger := logger
	t.Cleanup(func() {
		cfg = old
		logger = oldLogger
		rootCmd.SetArgs(nil)
	})

	path := filepath.Join(t.TempDir(), "flowspectre.yaml")
	if err := os.WriteFile(path, []byte("model: gpt-4o\n"), 0600); err != nil {
		t.Fatal(err)
	}
	rootCmd.SetArgs([]string{"--config", path, "version"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "flowspectre v9.9.9") {
		t.Errorf("version output = %q", out.String())
	}
	if cfg == nil || cfg.Model != "gpt-4o" {
		t.Errorf("expected config loaded from --config, got %+v", cfg)
	}
}

// --- Logging helpers ---

func TestLogVerboseEnabled(t *testing.T) {
	c := testConfig(t)
	c.Verbose = true
	buf := captureLog(t)

	logVerbose("loaded %d files", 3)
	if !strings.Contains(buf.String(), "loaded 3 files") {
		t.Errorf("expected verbose message, got %q", buf.String())
	}
}

func TestLogVerboseDisabled(t *testing.T) {
	testConfig(t)
	buf := captureLog(t)

	logVerbose("should not appear")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestLogDebugAndError(t *testing.T) {
	buf := captureLog(t)

	logDebug("debug %s", "detail")
	logError("failed: %v", errors.New("disk full"))
	out := buf.String()
	if !strings.Contains(out, "[DEBUG]") || !strings.Contains(out, "debug detail") {
		t.Errorf("expected debug line, got %q", out)
	}
	if !strings.Contains(out, "[ERROR]") || !strings.Contains(out, "failed: disk full") {
		t.Errorf("expected error line, got %q", out)
	}
}
