package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/ppiankov/flowspectre/internal/config"
)

// EnvLogLevel overrides the configured log level when set.
const EnvLogLevel = "FLOWSPECTRE_LOG_LEVEL"

// New creates an hclog.Logger from the configuration. Output goes to stderr so
// that stdout stays clean for reports.
func New(cfg *config.Config, name string) hclog.Logger {
	return NewWithOutput(cfg, name, os.Stderr)
}

// NewWithOutput is New with an explicit writer.
func NewWithOutput(cfg *config.Config, name string, out io.Writer) hclog.Logger {
	jsonFormat := false
	if cfg != nil {
		jsonFormat = cfg.LogJSON
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      determineLogLevel(cfg),
		JSONFormat: jsonFormat,
		Output:     out,
		Color:      hclog.AutoColor,
	})
}

// determineLogLevel prefers the environment, then config, then debug/verbose flags.
func determineLogLevel(cfg *config.Config) hclog.Level {
	if env := os.Getenv(EnvLogLevel); env != "" {
		return ParseLevel(env)
	}
	if cfg == nil {
		return hclog.Info
	}
	if cfg.Debug {
		return hclog.Debug
	}
	if cfg.LogLevel != "" {
		return ParseLevel(cfg.LogLevel)
	}
	return hclog.Info
}

// ParseLevel converts a level name to hclog.Level, defaulting to INFO.
func ParseLevel(levelStr string) hclog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return hclog.Trace
	case "DEBUG":
		return hclog.Debug
	case "INFO":
		return hclog.Info
	case "WARN", "WARNING":
		return hclog.Warn
	case "ERROR":
		return hclog.Error
	default:
		hclog.New(&hclog.LoggerOptions{
			Level:       hclog.Warn,
			DisableTime: true,
			Output:      os.Stderr,
		}).Warn("unrecognized log level, defaulting to INFO", "provided", levelStr)
		return hclog.Info
	}
}
