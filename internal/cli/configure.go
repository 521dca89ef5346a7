package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"

	"github.com/ppiankov/flowspectre/internal/api"
	"github.com/ppiankov/flowspectre/internal/config"
	"github.com/ppiankov/flowspectre/internal/llm"
	"github.com/spf13/cobra"
)

var (
	configureBackend string
	configureAPIKey  string
	configureModel   string
	configureFormat  string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Store an API key and default model in the config file",
	Long: `Configure writes backend credentials and the default model to your
config file, keeping every other setting already there. The file is written
with 0600 permissions.

When --backend is omitted it is derived from --model.

Example:
  flowspectre configure --backend anthropic --api-key sk-ant-...
  flowspectre configure --model gpt-4o --api-key sk-...`,
	Args: cobra.NoArgs,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureBackend, "backend", "",
		"backend the key belongs to: anthropic, openai, or gemini")
	configureCmd.Flags().StringVar(&configureAPIKey, "api-key", "",
		"API key for the backend")
	configureCmd.Flags().StringVarP(&configureModel, "model", "m", "",
		"default model identifier")
	configureCmd.Flags().StringVar(&configureFormat, "format", "text",
		"output format: text or json")
}

// keyPattern accepts printable keys without whitespace.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_\-.]{16,256}$`)

// maskKey masks an API key for safe display: sk-ant-api...x9Qz
func maskKey(key string) string {
	if len(key) < 16 {
		return "****"
	}
	return key[:10] + "..." + key[len(key)-4:]
}

type configureResult struct {
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	Backend    string `json:"backend,omitempty"`
	Model      string `json:"model,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
	ConfigPath string `json:"config_path,omitempty"`
}

func runConfigure(cmd *cobra.Command, args []string) error {
	if configureFormat != "text" && configureFormat != "json" {
		return &ValidationError{Message: fmt.Sprintf("unsupported format: %s (use text or json)", configureFormat)}
	}

	settings, res, err := buildSettings(configureBackend, configureAPIKey, configureModel)
	if err != nil {
		if configureFormat == "json" {
			_ = writeConfigureJSON(stdout, configureResult{Status: "error", Error: err.Error()})
		}
		return &ValidationError{Message: err.Error()}
	}

	configPath := config.ConfigPath()
	if configFile != "" {
		configPath = configFile
	}
	res.ConfigPath = configPath

	if err := config.WriteSettings(configPath, settings); err != nil {
		if configureFormat == "json" {
			_ = writeConfigureJSON(stdout, configureResult{Status: "error", Error: err.Error()})
		}
		return fmt.Errorf("failed to write config: %w", err)
	}
	logVerbose("Wrote %d setting(s) to %s", len(settings), configPath)

	res.Status = "configured"
	if configureFormat == "json" {
		return writeConfigureJSON(stdout, res)
	}

	if res.Model != "" {
		fmt.Fprintf(stdout, "Default model: %s\n", res.Model)
	}
	if res.APIKey != "" {
		fmt.Fprintf(stdout, "API key for %s: %s\n", res.Backend, res.APIKey)
	}
	fmt.Fprintf(stdout, "Config written to %s\n", configPath)
	return nil
}

// buildSettings validates the flags and returns the config keys to write.
func buildSettings(backend, key, model string) (map[string]interface{}, configureResult, error) {
	var res configureResult
	settings := map[string]interface{}{}

	if backend == "" && key == "" && model == "" {
		return nil, res, fmt.Errorf("nothing to configure (use --api-key, --model, or both)")
	}

	if model != "" {
		if err := api.ValidateModel(model); err != nil {
			return nil, res, err
		}
		settings["model"] = model
		res.Model = model
	}

	if key == "" {
		if backend != "" {
			return nil, res, fmt.Errorf("--backend requires --api-key")
		}
		return settings, res, nil
	}

	if backend == "" {
		if model == "" {
			return nil, res, fmt.Errorf("--api-key requires --backend or --model")
		}
		b, err := llm.BackendFor(model)
		if err != nil {
			return nil, res, err
		}
		backend = b
	}
	field, err := config.APIKeyField(backend)
	if err != nil {
		return nil, res, err
	}
	if !keyPattern.MatchString(key) {
		return nil, res, fmt.Errorf("invalid API key format")
	}

	settings[field] = key
	res.Backend = backend
	res.APIKey = maskKey(key)
	return settings, res, nil
}

func writeConfigureJSON(w io.Writer, res configureResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
