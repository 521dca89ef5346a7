// Package parser decodes model replies into typed, tagged responses.
// Every decoder fails closed: an unknown status or a missing required field is an error.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when a reply contains no JSON object.
var ErrNoJSON = errors.New("no JSON object found in response")

// Error describes why a reply was rejected. It is shown back to the model in
// the corrective re-prompt.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func fieldErr(field, format string, args ...interface{}) *Error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ExtractJSON returns the first balanced {...} span in text. Braces inside
// JSON strings are ignored.
func ExtractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end := matchBrace(text, start); end > 0 {
			return text[start : end+1], nil
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSON
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// envelope is the shared shape of every reply.
type envelope struct {
	Status    string          `json:"status"`
	Reasoning string          `json:"reasoning,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// decodeEnvelope extracts and decodes the JSON object and validates status
// against the allowed set.
func decodeEnvelope(text string, allowed ...string) (envelope, []byte, error) {
	var env envelope
	raw, err := ExtractJSON(text)
	if err != nil {
		return env, nil, &Error{Reason: err.Error()}
	}
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return env, nil, &Error{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if env.Status == "" {
		return env, nil, fieldErr("status", "missing")
	}
	for _, s := range allowed {
		if env.Status == s {
			return env, []byte(raw), nil
		}
	}
	return env, nil, fieldErr("status", "unknown value %q (expected one of %s)", env.Status, strings.Join(allowed, ", "))
}

// requireObject checks that raw is a JSON object and returns its fields.
func requireObject(field string, raw json.RawMessage) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fieldErr(field, "missing")
	}
	if trimmed[0] != '{' {
		return nil, fieldErr(field, "must be an object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fieldErr(field, "invalid object: %v", err)
	}
	return fields, nil
}

// requireString checks that fields[name] is a non-empty string.
func requireString(prefix string, fields map[string]json.RawMessage, name string) error {
	raw, ok := fields[name]
	if !ok {
		return fieldErr(prefix+name, "missing")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fieldErr(prefix+name, "must be a string")
	}
	if strings.TrimSpace(s) == "" {
		return fieldErr(prefix+name, "must not be empty")
	}
	return nil
}

// requireArray checks that fields[name] is present and array-typed.
func requireArray(prefix string, fields map[string]json.RawMessage, name string) error {
	raw, ok := fields[name]
	if !ok {
		return fieldErr(prefix+name, "missing")
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return fieldErr(prefix+name, "must be an array")
	}
	return nil
}
