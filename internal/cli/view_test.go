package cli

import (
	"strings"
	"testing"
)

func TestRunViewNoRuns(t *testing.T) {
	testConfig(t)
	setVar(t, &viewRun, "")
	setVar(t, &viewFile, "")
	out := captureStdout(t)

	if err := runView(viewCmd, nil); err != nil {
		t.Fatalf("runView: %v", err)
	}
	if !strings.Contains(out.String(), "No stored runs found") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestRunViewFallsBackToTextWithoutTerminal(t *testing.T) {
	c := testConfig(t)
	seedRuns(t, c, 2)
	setVar(t, &viewRun, "")
	setVar(t, &viewFile, "")
	setVar(t, &isTerminal, func() bool { return false })
	out := captureStdout(t)

	if err := runView(viewCmd, nil); err != nil {
		t.Fatalf("runView: %v", err)
	}
	if !strings.Contains(out.String(), "job-2") {
		t.Errorf("expected text report of the latest run:\n%s", out.String())
	}
}

func TestRunViewMissingRun(t *testing.T) {
	testConfig(t)
	setVar(t, &viewRun, "2026-01-01T00-00-00")
	setVar(t, &viewFile, "")
	captureStdout(t)

	if err := runView(viewCmd, nil); err == nil {
		t.Error("expected error for a run that does not exist")
	}
}
