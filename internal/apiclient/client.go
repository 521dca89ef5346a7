package apiclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/ppiankov/flowspectre/internal/api"
	"github.com/ppiankov/flowspectre/internal/llm"
	"github.com/ppiankov/flowspectre/internal/models"
)

// DefaultTimeout bounds non-streaming requests.
const DefaultTimeout = 30 * time.Second

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// Client talks to a remote `flowspectre serve`.
type Client struct {
	baseURL string
	http    *resty.Client
	stream  *resty.Client
}

// New creates an API client for baseURL.
func New(baseURL string, logger hclog.Logger) *Client {
	newClient := func() *resty.Client {
		c := resty.New().
			SetRetryCount(0).
			SetHeader("Accept", "application/json")
		if logger != nil {
			c.SetLogger(llm.NewHclogAdapter(logger.Named("apiclient")))
		}
		return c
	}

	// event streams stay open for the whole job, so only the context bounds them
	stream := newClient()
	stream.SetHeader("Accept", "text/event-stream")

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newClient().SetTimeout(DefaultTimeout),
		stream:  stream,
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("API error (HTTP %d): %s", e.StatusCode, e.Message)
}

func responseError(resp *resty.Response, body *errorBody) error {
	if resp.StatusCode() == http.StatusNotFound {
		return ErrJobNotFound
	}
	return &APIError{StatusCode: resp.StatusCode(), Message: body.Error}
}

// SubmitResponse is returned by SubmitJob.
type SubmitResponse struct {
	ID     string           `json:"id"`
	Status models.JobStatus `json:"status"`
}

// SubmitJob uploads a codebase and starts a job.
func (c *Client) SubmitJob(ctx context.Context, req api.JobRequest) (*SubmitResponse, error) {
	var out SubmitResponse
	var apiErr errorBody

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post(c.baseURL + "/v1/jobs")
	if err != nil {
		return nil, fmt.Errorf("submit job: %w", err)
	}
	if resp.StatusCode() != http.StatusAccepted {
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: apiErr.Error}
	}
	return &out, nil
}

// GetJob returns the current snapshot of a job.
func (c *Client) GetJob(ctx context.Context, id string) (*models.JobSnapshot, error) {
	var out models.JobSnapshot
	var apiErr errorBody

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&apiErr).
		Get(c.baseURL + "/v1/jobs/" + id)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if resp.IsError() {
		return nil, responseError(resp, &apiErr)
	}
	return &out, nil
}

// CancelJob asks the server to cancel a job and reports whether it ended cancelled.
func (c *Client) CancelJob(ctx context.Context, id string) (bool, error) {
	var out struct {
		Cancelled bool `json:"cancelled"`
	}
	var apiErr errorBody

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&apiErr).
		Post(c.baseURL + "/v1/jobs/" + id + "/cancel")
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	if resp.IsError() {
		return false, responseError(resp, &apiErr)
	}
	return out.Cancelled, nil
}

// Health checks that the server is reachable.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get(c.baseURL + "/v1/health")
	if err != nil {
		return "", fmt.Errorf("health check: %w", err)
	}
	if resp.IsError() {
		return "", &APIError{StatusCode: resp.StatusCode()}
	}
	return out.Version, nil
}

// Event is one streamed job event with its payload left encoded.
type Event struct {
	Type      models.EventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Data      json.RawMessage  `json:"data"`
}

// Log decodes a log payload.
func (e Event) Log() (models.LogEntry, error) {
	var v models.LogEntry
	return v, json.Unmarshal(e.Data, &v)
}

// Progress decodes a progress payload.
func (e Event) Progress() (models.Progress, error) {
	var v models.Progress
	return v, json.Unmarshal(e.Data, &v)
}

// Status decodes a status payload.
func (e Event) Status() (models.StatusData, error) {
	var v models.StatusData
	return v, json.Unmarshal(e.Data, &v)
}

// Result decodes a result payload.
func (e Event) Result() (*models.AnalysisResult, error) {
	var v models.AnalysisResult
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Failure decodes an error payload.
func (e Event) Failure() (models.ErrorData, error) {
	var v models.ErrorData
	return v, json.Unmarshal(e.Data, &v)
}

// StreamEvents reads the job's event stream and calls fn for each event until
// the server closes the stream, fn returns an error or ctx is done.
func (c *Client) StreamEvents(ctx context.Context, id string, fn func(Event) error) error {
	resp, err := c.stream.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(c.baseURL + "/v1/jobs/" + id + "/events")
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}
	body := resp.RawBody()
	defer func() { _ = body.Close() }()

	if resp.IsError() {
		var apiErr errorBody
		_ = json.NewDecoder(body).Decode(&apiErr)
		return responseError(resp, &apiErr)
	}

	if err := readEvents(body, fn); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// readEvents parses a text/event-stream body. Comment lines are heartbeats.
func readEvents(r io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), 64<<20)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var ev Event
			if err := json.Unmarshal([]byte(data.String()), &ev); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			data.Reset()
			if err := fn(ev); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	return nil
}
