package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

// Gemini talks to the generateContent API.
type Gemini struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	opts    Options
}

// NewGemini creates a Gemini backend.
func NewGemini(client *resty.Client, baseURL, apiKey string, opts Options) *Gemini {
	return &Gemini{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, opts: opts}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
		Temperature     float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Complete maps assistant turns to the "model" role.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	var body geminiRequest
	if req.SystemPrompt != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}
	for _, m := range req.Messages {
		role := m.Role
		if role == RoleAssistant {
			role = "model"
		}
		body.Contents = append(body.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	body.GenerationConfig.MaxOutputTokens = g.opts.MaxTokens
	body.GenerationConfig.Temperature = g.opts.Temperature

	var out geminiResponse
	var apiErr geminiError
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", g.apiKey).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post(fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, url.PathEscape(req.Model)))
	if err != nil {
		return "", ctxErr(ctx, BackendGemini, err)
	}
	if resp.IsError() {
		return "", &APIError{Backend: BackendGemini, StatusCode: resp.StatusCode(), Message: apiErr.Error.Message}
	}

	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no candidates returned")
	}
	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("gemini: empty completion (finishReason=%s)", out.Candidates[0].FinishReason)
	}
	return b.String(), nil
}
