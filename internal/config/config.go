package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for flowspectre
type Config struct {
	// Model selection; the gateway routes by this identifier's prefix
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`

	// Backend credentials (from config or FLOWSPECTRE_*_API_KEY)
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	GeminiAPIKey    string `mapstructure:"gemini_api_key"`

	// Backend endpoints (change only for proxies or self-hosted gateways)
	AnthropicBaseURL string `mapstructure:"anthropic_base_url"`
	OpenAIBaseURL    string `mapstructure:"openai_base_url"`
	GeminiBaseURL    string `mapstructure:"gemini_base_url"`

	// HTTP transport
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Proxy          string        `mapstructure:"proxy"`

	// Agent budgets
	DiscoveryMaxDepth    int `mapstructure:"discovery_max_depth"`
	DiscoveryMaxRetries  int `mapstructure:"discovery_max_retries"`
	DiscoveryMaxTraces   int `mapstructure:"discovery_max_traces"`
	ChecklistMaxRetries  int `mapstructure:"checklist_max_retries"`
	InspectionMaxRetries int `mapstructure:"inspection_max_retries"`
	TreeDepth            int `mapstructure:"tree_depth"`

	// Hard cap on controls per checklist (0 disables)
	MaxControls int `mapstructure:"max_controls"`

	// Codebase size limits
	MaxFileSize  int64 `mapstructure:"max_file_size"`
	MaxTotalSize int64 `mapstructure:"max_total_size"`

	// Storage configuration
	StorageDir      string `mapstructure:"storage_dir"`
	SaveTranscripts bool   `mapstructure:"save_transcripts"`

	// HTTP server
	ServerAddr      string        `mapstructure:"server_addr"`
	JobTTL          time.Duration `mapstructure:"job_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	RateLimit       int           `mapstructure:"rate_limit"`

	// Output format (text, json, sarif, csv)
	Format string `mapstructure:"format"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`

	// Verbose output
	Verbose bool `mapstructure:"verbose"`

	// Debug mode
	Debug bool `mapstructure:"debug"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Model:                "claude-3-5-sonnet-latest",
		MaxTokens:            8192,
		Temperature:          0,
		AnthropicBaseURL:     "https://api.anthropic.com",
		OpenAIBaseURL:        "https://api.openai.com",
		GeminiBaseURL:        "https://generativelanguage.googleapis.com",
		RequestTimeout:       5 * time.Minute,
		DiscoveryMaxDepth:    20,
		DiscoveryMaxRetries:  3,
		DiscoveryMaxTraces:   0,
		ChecklistMaxRetries:  3,
		InspectionMaxRetries: 3,
		TreeDepth:            4,
		MaxControls:          10,
		MaxFileSize:          1 << 20,  // 1 MiB
		MaxTotalSize:         50 << 20, // 50 MiB
		StorageDir:           ".flowspectre",
		SaveTranscripts:      true,
		ServerAddr:           ":8080",
		JobTTL:               time.Hour,
		CleanupInterval:      5 * time.Minute,
		RateLimit:            60,
		Format:               "text",
		LogLevel:             "info",
	}
}

// Load loads configuration with the following precedence (lowest to highest):
// 1. Default values
// 2. Config file (~/flowspectre.yaml or ./flowspectre.yaml)
// 3. Environment variables (FLOWSPECTRE_*)
// 4. CLI flags (handled by caller)
func Load() (*Config, error) {
	return LoadFromFile("")
}

// LoadFromFile loads configuration from a specific file path
// If path is empty, it searches for config in standard locations
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("model", defaults.Model)
	v.SetDefault("max_tokens", defaults.MaxTokens)
	v.SetDefault("temperature", defaults.Temperature)
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("anthropic_base_url", defaults.AnthropicBaseURL)
	v.SetDefault("openai_base_url", defaults.OpenAIBaseURL)
	v.SetDefault("gemini_base_url", defaults.GeminiBaseURL)
	v.SetDefault("request_timeout", defaults.RequestTimeout)
	v.SetDefault("proxy", "")
	v.SetDefault("discovery_max_depth", defaults.DiscoveryMaxDepth)
	v.SetDefault("discovery_max_retries", defaults.DiscoveryMaxRetries)
	v.SetDefault("discovery_max_traces", defaults.DiscoveryMaxTraces)
	v.SetDefault("checklist_max_retries", defaults.ChecklistMaxRetries)
	v.SetDefault("inspection_max_retries", defaults.InspectionMaxRetries)
	v.SetDefault("tree_depth", defaults.TreeDepth)
	v.SetDefault("max_controls", defaults.MaxControls)
	v.SetDefault("max_file_size", defaults.MaxFileSize)
	v.SetDefault("max_total_size", defaults.MaxTotalSize)
	v.SetDefault("storage_dir", defaults.StorageDir)
	v.SetDefault("save_transcripts", defaults.SaveTranscripts)
	v.SetDefault("server_addr", defaults.ServerAddr)
	v.SetDefault("job_ttl", defaults.JobTTL)
	v.SetDefault("cleanup_interval", defaults.CleanupInterval)
	v.SetDefault("rate_limit", defaults.RateLimit)
	v.SetDefault("format", defaults.Format)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_json", defaults.LogJSON)
	v.SetDefault("verbose", defaults.Verbose)
	v.SetDefault("debug", defaults.Debug)

	v.SetConfigName("flowspectre")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}

		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			v.AddConfigPath(filepath.Join(xdgConfig, "flowspectre"))
		}
	}

	v.SetEnvPrefix("FLOWSPECTRE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Conventional provider variables fill in missing keys
	if cfg.AnthropicAPIKey == "" {
		cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validFormats := map[string]bool{
		"text":  true,
		"json":  true,
		"sarif": true,
		"csv":   true,
	}
	if !validFormats[c.Format] {
		return fmt.Errorf("invalid format: %s (must be text, json, sarif, or csv)", c.Format)
	}

	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if c.DiscoveryMaxDepth <= 0 {
		return fmt.Errorf("discovery_max_depth must be positive")
	}

	budgets := map[string]int{
		"discovery_max_retries":  c.DiscoveryMaxRetries,
		"checklist_max_retries":  c.ChecklistMaxRetries,
		"inspection_max_retries": c.InspectionMaxRetries,
		"discovery_max_traces":   c.DiscoveryMaxTraces,
		"max_controls":           c.MaxControls,
		"tree_depth":             c.TreeDepth,
	}
	for name, value := range budgets {
		if value < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}

	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}

	if err := validateDuration(c.RequestTimeout, "request_timeout", 30*time.Minute); err != nil {
		return err
	}
	if err := validateDuration(c.JobTTL, "job_ttl", 7*24*time.Hour); err != nil {
		return err
	}
	if err := validateDuration(c.CleanupInterval, "cleanup_interval", 24*time.Hour); err != nil {
		return err
	}

	if c.MaxFileSize <= 0 || c.MaxTotalSize <= 0 {
		return fmt.Errorf("max_file_size and max_total_size must be positive")
	}
	if c.MaxFileSize > c.MaxTotalSize {
		return fmt.Errorf("max_file_size cannot exceed max_total_size")
	}

	if c.StorageDir == "" {
		return fmt.Errorf("storage_dir cannot be empty")
	}

	return nil
}

// validateDuration checks that a time.Duration is valid and within a specified maximum duration.
func validateDuration(d time.Duration, name string, max time.Duration) error {
	if d < 0 {
		return fmt.Errorf("invalid duration for %s: %v cannot be negative", name, d)
	}
	if d > max {
		return fmt.Errorf("%s duration is too long: %v exceeds maximum of %v", name, d, max)
	}
	return nil
}

// GetStoragePath returns the absolute path to the storage directory
func (c *Config) GetStoragePath() (string, error) {
	if len(c.StorageDir) >= 2 && c.StorageDir[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, c.StorageDir[2:]), nil
	}

	absPath, err := filepath.Abs(c.StorageDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	return absPath, nil
}

// GenerateSampleConfig generates a sample configuration file content
func GenerateSampleConfig() string {
	return `# flowspectre configuration
# Save this file as ~/flowspectre.yaml or ./flowspectre.yaml

# Model identifier; the prefix selects the backend
# (claude-* -> Anthropic, gpt-*/o1-*/o3-* -> OpenAI, gemini-* -> Google)
model: claude-3-5-sonnet-latest
max_tokens: 8192
temperature: 0

# API keys (or FLOWSPECTRE_ANTHROPIC_API_KEY / ANTHROPIC_API_KEY, etc.)
# anthropic_api_key: sk-ant-...
# openai_api_key: sk-...
# gemini_api_key: ...

# Per-request timeout for model calls
request_timeout: 5m
# proxy: http://127.0.0.1:3128

# Discovery: maximum turns per endpoint trace and malformed-reply retries
discovery_max_depth: 20
discovery_max_retries: 3
# Optional cap on endpoint traces per job; 0 keeps tracing until the model
# reports nothing left
discovery_max_traces: 0

# Checklist and inspection retries per endpoint
checklist_max_retries: 3
inspection_max_retries: 3

# Directory tree depth shown to the discovery agent
tree_depth: 4

# Controls kept per checklist (0 keeps everything the model returns)
max_controls: 10

# Codebase limits in bytes
max_file_size: 1048576
max_total_size: 52428800

# Directory for stored results and debug transcripts
storage_dir: .flowspectre
save_transcripts: true

# HTTP server (flowspectre serve)
server_addr: ":8080"
job_ttl: 1h
cleanup_interval: 5m
rate_limit: 60

# Output format: text, json, sarif, or csv
format: text

# Logging: trace, debug, info, warn, error
log_level: info
log_json: false
`
}
