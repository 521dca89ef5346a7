package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// OpenAI talks to the chat completions API.
type OpenAI struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	opts    Options
}

// NewOpenAI creates an OpenAI backend.
func NewOpenAI(client *resty.Client, baseURL, apiKey string, opts Options) *OpenAI {
	return &OpenAI{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, opts: opts}
}

type openAIRequest struct {
	Model               string    `json:"model"`
	Messages            []Message `json:"messages"`
	MaxCompletionTokens int       `json:"max_completion_tokens,omitempty"`
	Temperature         *float64  `json:"temperature,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// reasoningModel reports whether the model rejects a temperature parameter.
func reasoningModel(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4")
}

// Complete sends the system prompt as the first message followed by history.
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, req.Messages...)

	body := openAIRequest{
		Model:               req.Model,
		Messages:            messages,
		MaxCompletionTokens: o.opts.MaxTokens,
	}
	if !reasoningModel(req.Model) {
		t := o.opts.Temperature
		body.Temperature = &t
	}

	var out openAIResponse
	var apiErr openAIError
	resp, err := o.client.R().
		SetContext(ctx).
		SetAuthToken(o.apiKey).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post(o.baseURL + "/v1/chat/completions")
	if err != nil {
		return "", ctxErr(ctx, BackendOpenAI, err)
	}
	if resp.IsError() {
		return "", &APIError{Backend: BackendOpenAI, StatusCode: resp.StatusCode(), Message: apiErr.Error.Message}
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai: empty completion")
	}
	return out.Choices[0].Message.Content, nil
}
