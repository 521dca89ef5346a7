package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/ppiankov/flowspectre/internal/config"
	"github.com/ppiankov/flowspectre/internal/logging"
	"github.com/spf13/cobra"
)

const (
	ExitOK           = 0 // Success
	ExitPolicyFail   = 1 // Policy violated
	ExitInvalidInput = 2 // Bad arguments, unreadable codebase or invalid model
	ExitRuntimeError = 3 // I/O, model backend or runtime error
)

// Version is reported by `flowspectre version` and the server health endpoint.
var Version = "0.1.0-dev"

// SetVersion overrides Version with the build-time value from main.
func SetVersion(v string) {
	if v != "" && v != "dev" {
		Version = v
	}
}

var (
	// Global config instance
	cfg *config.Config

	// Process logger, built from cfg
	logger hclog.Logger = hclog.NewNullLogger()

	// Global flags
	configFile string
	verbose    bool
	debug      bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "flowspectre",
	Short: "flowspectre - agent-driven security posture analysis of web codebases",
	Long: `flowspectre analyzes a codebase with three language-model agents:

  1. Discovery  - find HTTP endpoints and trace their code flows
  2. Checklist  - derive the security controls each endpoint needs
  3. Inspection - compare the code against each checklist

Results are stored for trend tracking, exported as text, JSON, SARIF or CSV,
and can gate CI through a .flowspectre-policy.yaml file.

Quick start:
  flowspectre configure --backend anthropic --api-key sk-ant-...
  flowspectre doctor
  flowspectre analyze ./my-service
  flowspectre view

Other commands:
  flowspectre serve --addr :8080
  flowspectre analyze ./my-service --server http://localhost:8080
  flowspectre export --format sarif -o results.sarif
  flowspectre status`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return &ValidationError{Message: fmt.Sprintf("failed to load config: %v", err)}
		}

		if verbose {
			cfg.Verbose = true
		}
		if debug {
			cfg.Debug = true
		}
		if cfg.Verbose && !cfg.Debug && cfg.LogLevel != "" && logging.ParseLevel(cfg.LogLevel) > hclog.Info {
			cfg.LogLevel = "info"
		}

		logger = logging.New(cfg, "flowspectre")
		return nil
	},
}

// Execute runs the root command and exits with the mapped exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error
		os.Exit(HandleError(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default: ./flowspectre.yaml or ~/flowspectre.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"debug mode (very verbose)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(stdout, "flowspectre v%s\n", Version)
		fmt.Fprintln(stdout, "Agent-driven security posture analysis")
	},
}

// HandleError determines the appropriate exit code for an error
func HandleError(err error) int {
	if err == nil {
		return ExitOK
	}

	var validationErr *ValidationError
	var policyErr *PolicyViolationError
	switch {
	case errors.As(err, &validationErr):
		return ExitInvalidInput
	case errors.As(err, &policyErr):
		return ExitPolicyFail
	default:
		return ExitRuntimeError
	}
}

// ValidationError represents invalid user input
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// PolicyViolationError reports a failed policy gate
type PolicyViolationError struct {
	Violations int
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("policy check failed with %d violation(s)", e.Violations)
}

// logVerbose logs at info level when verbose output is enabled
func logVerbose(format string, args ...interface{}) {
	if cfg != nil && (cfg.Verbose || cfg.Debug) {
		logger.Info(fmt.Sprintf(format, args...))
	}
}

// logDebug logs at debug level
func logDebug(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(format, args...))
}

// logError logs an error
func logError(format string, args ...interface{}) {
	logger.Error(fmt.Sprintf(format, args...))
}
