package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const anthropicVersion = "2023-06-01"

// Anthropic talks to the Messages API.
type Anthropic struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	opts    Options
}

// NewAnthropic creates an Anthropic backend.
func NewAnthropic(client *resty.Client, baseURL, apiKey string, opts Options) *Anthropic {
	return &Anthropic{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, opts: opts}
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the conversation and concatenates the returned text blocks.
func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	var out anthropicResponse
	var apiErr anthropicError

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", a.apiKey).
		SetHeader("anthropic-version", anthropicVersion).
		SetBody(anthropicRequest{
			Model:       req.Model,
			MaxTokens:   a.opts.MaxTokens,
			System:      req.SystemPrompt,
			Messages:    req.Messages,
			Temperature: a.opts.Temperature,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post(a.baseURL + "/v1/messages")
	if err != nil {
		return "", ctxErr(ctx, BackendAnthropic, err)
	}
	if resp.IsError() {
		return "", &APIError{Backend: BackendAnthropic, StatusCode: resp.StatusCode(), Message: apiErr.Error.Message}
	}

	var b strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("anthropic: empty completion (stop_reason=%s)", out.StopReason)
	}
	return b.String(), nil
}
