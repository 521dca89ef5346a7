package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/flowspectre/internal/api"
	"github.com/ppiankov/flowspectre/internal/apiclient"
	"github.com/ppiankov/flowspectre/internal/config"
	"github.com/ppiankov/flowspectre/internal/llm"
	"github.com/ppiankov/flowspectre/internal/policy"
	"github.com/spf13/cobra"
)

var (
	doctorFormat       string
	doctorServer       string
	doctorSampleConfig bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check environment readiness and diagnose common problems",
	Long: `Doctor validates your flowspectre setup end-to-end:

  1. Config file - found and readable?
  2. Model - known identifier and routable backend?
  3. API key - present for the model's backend?
  4. Storage - directory writable?
  5. Policy - a policy file above the current directory?
  6. Server - reachable? (only with --server)

Fix the issues it reports, then run 'flowspectre analyze' with confidence.
With --sample-config it prints an annotated config file instead.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "text",
		"output format: text or json")
	doctorCmd.Flags().StringVar(&doctorServer, "server", "",
		"also check a remote flowspectre server (base URL)")
	doctorCmd.Flags().BoolVar(&doctorSampleConfig, "sample-config", false,
		"print a sample config file and exit")
}

type doctorCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok", "warn", "fail"
	Detail string `json:"detail,omitempty"`
}

type doctorResult struct {
	Checks  []doctorCheck `json:"checks"`
	Summary string        `json:"summary"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	if doctorSampleConfig {
		fmt.Fprint(stdout, config.GenerateSampleConfig())
		return nil
	}
	if doctorFormat != "text" && doctorFormat != "json" {
		return &ValidationError{Message: fmt.Sprintf("unsupported format: %s (use text or json)", doctorFormat)}
	}

	checks := []doctorCheck{
		checkConfig(),
		checkModel(),
		checkAPIKey(),
		checkStorage(),
		checkPolicy("."),
	}
	if doctorServer != "" {
		checks = append(checks, checkServer(cmd.Context(), doctorServer))
	}

	result := summarizeChecks(checks)

	if doctorFormat == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return writeDoctorText(result)
}

func summarizeChecks(checks []doctorCheck) doctorResult {
	fails, warns := 0, 0
	for _, c := range checks {
		switch c.Status {
		case "fail":
			fails++
		case "warn":
			warns++
		}
	}

	summary := "all checks passed"
	if fails > 0 {
		summary = fmt.Sprintf("%d issue(s) found", fails)
	} else if warns > 0 {
		summary = fmt.Sprintf("ok with %d warning(s)", warns)
	}
	return doctorResult{Checks: checks, Summary: summary}
}

func writeDoctorText(result doctorResult) error {
	icons := map[string]string{
		"ok":   "✓",
		"warn": "△",
		"fail": "✗",
	}

	for _, c := range result.Checks {
		icon := icons[c.Status]
		if c.Detail != "" {
			fmt.Fprintf(stdout, "  %s %-10s %s\n", icon, c.Name, c.Detail)
		} else {
			fmt.Fprintf(stdout, "  %s %s\n", icon, c.Name)
		}
	}

	fmt.Fprintf(stdout, "\n%s\n", result.Summary)
	return nil
}

func checkConfig() doctorCheck {
	path := config.ConfigPath()
	if configFile != "" {
		path = configFile
	}

	if _, err := os.Stat(path); err != nil {
		return doctorCheck{
			Name:   "config",
			Status: "warn",
			Detail: "no config file found (using defaults). Run: flowspectre configure",
		}
	}

	return doctorCheck{
		Name:   "config",
		Status: "ok",
		Detail: path,
	}
}

func checkModel() doctorCheck {
	if err := api.ValidateModel(cfg.Model); err != nil {
		return doctorCheck{
			Name:   "model",
			Status: "fail",
			Detail: err.Error(),
		}
	}
	backend, err := llm.BackendFor(cfg.Model)
	if err != nil {
		return doctorCheck{
			Name:   "model",
			Status: "fail",
			Detail: err.Error(),
		}
	}
	return doctorCheck{
		Name:   "model",
		Status: "ok",
		Detail: fmt.Sprintf("%s (%s)", cfg.Model, backend),
	}
}

func checkAPIKey() doctorCheck {
	backend, err := llm.BackendFor(cfg.Model)
	if err != nil {
		return doctorCheck{
			Name:   "api key",
			Status: "warn",
			Detail: "skipped (model has no known backend)",
		}
	}
	if cfg.APIKeyFor(backend) == "" {
		field, _ := config.APIKeyField(backend)
		return doctorCheck{
			Name:   "api key",
			Status: "fail",
			Detail: fmt.Sprintf("%[2]s not set. Set FLOWSPECTRE_%[1]s or run: flowspectre configure --backend %[3]s",
				strings.ToUpper(field), field, backend),
		}
	}
	return doctorCheck{
		Name:   "api key",
		Status: "ok",
		Detail: fmt.Sprintf("%s key set", backend),
	}
}

func checkStorage() doctorCheck {
	storagePath, err := cfg.GetStoragePath()
	if err != nil {
		return doctorCheck{
			Name:   "storage",
			Status: "fail",
			Detail: err.Error(),
		}
	}

	info, err := os.Stat(storagePath)
	if err != nil {
		// Created on first stored run
		return doctorCheck{
			Name:   "storage",
			Status: "ok",
			Detail: fmt.Sprintf("%s (will be created on first run)", storagePath),
		}
	}

	if !info.IsDir() {
		return doctorCheck{
			Name:   "storage",
			Status: "fail",
			Detail: fmt.Sprintf("%s exists but is not a directory", storagePath),
		}
	}

	tmpFile := filepath.Join(storagePath, ".doctor-check")
	if err := os.WriteFile(tmpFile, []byte("ok"), 0600); err != nil {
		return doctorCheck{
			Name:   "storage",
			Status: "fail",
			Detail: fmt.Sprintf("%s not writable: %v", storagePath, err),
		}
	}
	_ = os.Remove(tmpFile)

	return doctorCheck{
		Name:   "storage",
		Status: "ok",
		Detail: storagePath,
	}
}

func checkPolicy(dir string) doctorCheck {
	path := policy.FindPolicyFile(dir)
	if path == "" {
		return doctorCheck{
			Name:   "policy",
			Status: "ok",
			Detail: "none (analyze never fails on policy)",
		}
	}
	if _, err := policy.LoadFromFile(path); err != nil {
		return doctorCheck{
			Name:   "policy",
			Status: "fail",
			Detail: fmt.Sprintf("%s: %v", path, err),
		}
	}
	return doctorCheck{
		Name:   "policy",
		Status: "ok",
		Detail: path,
	}
}

func checkServer(ctx context.Context, baseURL string) doctorCheck {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	version, err := apiclient.New(baseURL, logger).Health(ctx)
	if err != nil {
		return doctorCheck{
			Name:   "server",
			Status: "fail",
			Detail: fmt.Sprintf("unreachable (%v)", err),
		}
	}
	return doctorCheck{
		Name:   "server",
		Status: "ok",
		Detail: fmt.Sprintf("%s (v%s)", baseURL, version),
	}
}
