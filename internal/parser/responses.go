package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/flowspectre/internal/models"
)

// Discovery statuses
const (
	StatusPickEndpoint    = "pick_endpoint"
	StatusTracingEndpoint = "tracing_endpoint"
	StatusCompleted       = "completed"
	StatusNotFound        = "not_found"
	StatusError           = "error"
)

// DiscoveryResponse is one reply of the discovery conversation.
type DiscoveryResponse struct {
	Status         string                  `json:"status"`
	Reasoning      string                  `json:"reasoning,omitempty"`
	FileToReadNext string                  `json:"file_to_read_next,omitempty"`
	ReadLater      []string                `json:"read_later,omitempty"`
	Result         *models.EndpointProfile `json:"result,omitempty"`
}

// ParseDiscovery decodes a discovery reply.
func ParseDiscovery(text string) (DiscoveryResponse, error) {
	var resp DiscoveryResponse
	env, raw, err := decodeEnvelope(text, StatusPickEndpoint, StatusTracingEndpoint, StatusCompleted, StatusNotFound)
	if err != nil {
		return resp, err
	}
	if env.Status == StatusCompleted {
		fields, err := requireObject("result", env.Result)
		if err != nil {
			return resp, err
		}
		if err := requireString("result.", fields, "flow_name"); err != nil {
			return resp, err
		}
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return resp, &Error{Reason: fmt.Sprintf("invalid discovery response: %v", err)}
	}

	switch env.Status {
	case StatusPickEndpoint, StatusTracingEndpoint:
		resp.FileToReadNext = strings.TrimSpace(resp.FileToReadNext)
		if resp.FileToReadNext == "" {
			return resp, fieldErr("file_to_read_next", "required for status %s", env.Status)
		}
		resp.Result = nil
	case StatusNotFound:
		resp.Result = nil
	}
	return resp, nil
}

// ChecklistResponse is one reply of the checklist conversation.
type ChecklistResponse struct {
	Status  string                    `json:"status"`
	Message string                    `json:"message,omitempty"`
	Result  *models.SecurityChecklist `json:"result,omitempty"`
}

// ParseChecklist decodes a checklist reply. An "error" status is returned as a
// valid response; the caller decides how to treat it.
func ParseChecklist(text string) (ChecklistResponse, error) {
	var resp ChecklistResponse
	env, raw, err := decodeEnvelope(text, StatusCompleted, StatusError)
	if err != nil {
		return resp, err
	}
	if env.Status == StatusError {
		resp.Status = StatusError
		resp.Message = env.Message
		if resp.Message == "" {
			resp.Message = "model reported an error without a message"
		}
		return resp, nil
	}

	fields, err := requireObject("result", env.Result)
	if err != nil {
		return resp, err
	}
	if err := requireString("result.", fields, "flow_name"); err != nil {
		return resp, err
	}
	for _, name := range []string{"required_controls", "recommended_controls", "references"} {
		if err := requireArray("result.", fields, name); err != nil {
			return resp, err
		}
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return resp, &Error{Reason: fmt.Sprintf("invalid checklist: %v", err)}
	}
	return resp, nil
}

// InspectionResponse is one reply of the inspection conversation.
type InspectionResponse struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Result  *models.SecurityReport `json:"result,omitempty"`
}

// ParseInspection decodes an inspection reply.
func ParseInspection(text string) (InspectionResponse, error) {
	var resp InspectionResponse
	env, raw, err := decodeEnvelope(text, StatusCompleted, StatusError)
	if err != nil {
		return resp, err
	}
	if env.Status == StatusError {
		resp.Status = StatusError
		resp.Message = env.Message
		if resp.Message == "" {
			resp.Message = "model reported an error without a message"
		}
		return resp, nil
	}

	fields, err := requireObject("result", env.Result)
	if err != nil {
		return resp, err
	}
	if err := requireString("result.", fields, "flow_name"); err != nil {
		return resp, err
	}
	for _, name := range []string{"implemented", "missing", "auto_handled", "vulnerabilities"} {
		if err := requireArray("result.", fields, name); err != nil {
			return resp, err
		}
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return resp, &Error{Reason: fmt.Sprintf("invalid report: %v", err)}
	}
	return resp, nil
}
