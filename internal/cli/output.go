package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ppiankov/flowspectre/internal/models"
	"github.com/ppiankov/flowspectre/internal/policy"
	"github.com/ppiankov/flowspectre/internal/reporter"
	"github.com/ppiankov/flowspectre/internal/storage"
	"golang.org/x/term"
)

// stdout is where reports go unless -o is given. Tests replace it.
var stdout io.Writer = os.Stdout

// isTerminal reports whether stdout is an interactive terminal.
var isTerminal = func() bool {
	f, ok := stdout.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// generateOutput writes result in format to outputPath, or stdout when empty.
func generateOutput(result *models.AnalysisResult, format, outputPath string) error {
	writer := stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		writer = f
	}

	rep, err := reporter.New(format, writer)
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	return rep.Generate(result)
}

// openStorage returns local storage rooted at the configured directory.
func openStorage() (*storage.LocalStorage, error) {
	storagePath, err := cfg.GetStoragePath()
	if err != nil {
		return nil, fmt.Errorf("failed to get storage path: %w", err)
	}
	return storage.NewLocal(storagePath), nil
}

// enforcePolicy evaluates the nearest policy file above dir against result.
// A missing policy passes.
func enforcePolicy(result *models.AnalysisResult, dir, policyPath string) error {
	if policyPath == "" {
		policyPath = policy.FindPolicyFile(dir)
	}
	if policyPath == "" {
		logDebug("no policy file found")
		return nil
	}
	logVerbose("Found policy file: %s", policyPath)

	pol, err := policy.LoadFromFile(policyPath)
	if err != nil {
		return &ValidationError{Message: fmt.Sprintf("failed to load policy: %v", err)}
	}
	if pol == nil {
		return nil
	}

	res := pol.Evaluate(result)
	if res.Pass {
		logVerbose("Policy check passed")
		return nil
	}
	for _, v := range res.Violations {
		logError("Policy violation [%s]: %s", v.Rule, v.Message)
	}
	return &PolicyViolationError{Violations: len(res.Violations)}
}

// runTimestampLayouts are accepted by --run.
var runTimestampLayouts = []string{"2006-01-02T15-04-05", time.RFC3339, "2006-01-02 15:04:05"}

// selectRun loads a result from an explicit file, a stored run timestamp, or
// the latest stored run, in that order of preference.
func selectRun(st *storage.LocalStorage, run, file string) (*models.AnalysisResult, error) {
	if file != "" {
		return storage.LoadResultFile(file)
	}
	if run != "" {
		for _, layout := range runTimestampLayouts {
			if ts, err := time.Parse(layout, run); err == nil {
				return st.LoadResult(ts)
			}
		}
		return nil, &ValidationError{Message: fmt.Sprintf("invalid run timestamp %q (use 2006-01-02T15-04-05 as listed by status)", run)}
	}
	return st.GetLatestRun()
}
