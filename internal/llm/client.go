package llm

import (
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/ppiankov/flowspectre/internal/config"
)

// HclogAdapter forwards resty log output to an hclog.Logger.
type HclogAdapter struct {
	logger hclog.Logger
}

// NewHclogAdapter creates a resty.Logger backed by hclog.
func NewHclogAdapter(logger hclog.Logger) resty.Logger {
	return &HclogAdapter{logger: logger}
}

// Errorf logs a message at error level.
func (a *HclogAdapter) Errorf(format string, v ...interface{}) {
	a.logger.Error(fmt.Sprintf(format, v...))
}

// Warnf logs a message at warning level.
func (a *HclogAdapter) Warnf(format string, v ...interface{}) {
	a.logger.Warn(fmt.Sprintf(format, v...))
}

// Debugf logs a message at debug level.
func (a *HclogAdapter) Debugf(format string, v ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, v...))
}

// NewRestyClient builds the HTTP client shared by all backends.
// Retries are disabled: the conversation driver owns the retry budget.
func NewRestyClient(cfg *config.Config, logger hclog.Logger) *resty.Client {
	client := resty.New().
		SetRetryCount(0).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if logger != nil {
		client.SetLogger(NewHclogAdapter(logger))
	}
	if cfg.Proxy != "" {
		client.SetProxy(cfg.Proxy)
	}
	client.SetDebug(cfg.Debug)
	return client
}

// Options tune completion requests for every backend.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// NewGateway wires a Router with every backend that has credentials.
func NewGateway(cfg *config.Config, logger hclog.Logger) *Router {
	client := NewRestyClient(cfg, logger)
	opts := Options{MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature}

	router := NewRouter()
	if cfg.AnthropicAPIKey != "" {
		router.Register(BackendAnthropic, NewAnthropic(client, cfg.AnthropicBaseURL, cfg.AnthropicAPIKey, opts))
	}
	if cfg.OpenAIAPIKey != "" {
		router.Register(BackendOpenAI, NewOpenAI(client, cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, opts))
	}
	if cfg.GeminiAPIKey != "" {
		router.Register(BackendGemini, NewGemini(client, cfg.GeminiBaseURL, cfg.GeminiAPIKey, opts))
	}
	return router
}
