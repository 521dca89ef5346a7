package llm

import (
	"context"
	"fmt"
	"strings"
)

// Roles used in conversation history
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Backend names
const (
	BackendAnthropic = "anthropic"
	BackendOpenAI    = "openai"
	BackendGemini    = "gemini"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion request.
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []Message
}

// Gateway completes a chat given a system prompt and message history.
// Implementations must not retry; retries belong to the caller.
type Gateway interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f GatewayFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// APIError is a non-2xx response from a model backend.
type APIError struct {
	Backend    string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Backend, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Backend, e.StatusCode, e.Message)
}

// BackendFor maps a model identifier to a backend name by naming convention.
func BackendFor(model string) (string, error) {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "claude"):
		return BackendAnthropic, nil
	case strings.HasPrefix(m, "gpt"),
		strings.HasPrefix(m, "o1"),
		strings.HasPrefix(m, "o3"),
		strings.HasPrefix(m, "o4"),
		strings.HasPrefix(m, "chatgpt"):
		return BackendOpenAI, nil
	case strings.HasPrefix(m, "gemini"):
		return BackendGemini, nil
	default:
		return "", fmt.Errorf("unsupported model %q: expected a claude*, gpt*, o1/o3/o4*, chatgpt* or gemini* identifier", model)
	}
}

// Router dispatches requests to the backend that serves the model.
type Router struct {
	backends map[string]Gateway
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{backends: make(map[string]Gateway)}
}

// Register installs the gateway for a backend name.
func (r *Router) Register(backend string, gw Gateway) *Router {
	r.backends[backend] = gw
	return r
}

// Complete routes the request by its model identifier.
func (r *Router) Complete(ctx context.Context, req Request) (string, error) {
	backend, err := BackendFor(req.Model)
	if err != nil {
		return "", err
	}
	gw, ok := r.backends[backend]
	if !ok {
		return "", fmt.Errorf("no %s backend configured for model %q", backend, req.Model)
	}
	return gw.Complete(ctx, req)
}

// ctxErr prefers the context error over a transport error so that callers can
// recognise cancellation.
func ctxErr(ctx context.Context, backend string, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%s request aborted: %w", backend, cerr)
	}
	return fmt.Errorf("%s request failed: %w", backend, err)
}
