package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigPath returns the default location for a user config file.
func ConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "flowspectre", "flowspectre.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "flowspectre.yaml")
	}
	return "flowspectre.yaml"
}

// WriteSettings merges the given keys into the YAML config file at path,
// preserving every other key already present. The file is written with 0600
// permissions because it may hold API keys.
func WriteSettings(path string, settings map[string]interface{}) error {
	existing := map[string]interface{}{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("parse existing config: %w", err)
		}
		if existing == nil {
			existing = map[string]interface{}{}
		}
	case os.IsNotExist(err):
	default:
		return fmt.Errorf("read existing config: %w", err)
	}

	for k, v := range settings {
		existing[k] = v
	}

	out, err := yaml.Marshal(existing)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	// WriteFile keeps the mode of an existing file
	return os.Chmod(path, 0o600)
}

// APIKeyField maps a backend name to its config key.
func APIKeyField(backend string) (string, error) {
	switch backend {
	case "anthropic":
		return "anthropic_api_key", nil
	case "openai":
		return "openai_api_key", nil
	case "gemini":
		return "gemini_api_key", nil
	default:
		return "", fmt.Errorf("unknown backend %q (use anthropic, openai, or gemini)", backend)
	}
}

// APIKeyFor returns the configured key for a backend name.
func (c *Config) APIKeyFor(backend string) string {
	switch backend {
	case "anthropic":
		return c.AnthropicAPIKey
	case "openai":
		return c.OpenAIAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return ""
	}
}
