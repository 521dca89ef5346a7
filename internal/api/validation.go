package api

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/flowspectre/internal/codebase"
	"github.com/ppiankov/flowspectre/internal/llm"
	"github.com/ppiankov/flowspectre/internal/models"
)

const (
	// MaxModelLength bounds model identifiers.
	MaxModelLength = 128

	// MaxPathLength bounds a single file path.
	MaxPathLength = 1024

	// MaxFiles bounds the number of files in one submission.
	MaxFiles = 100_000

	maxFrameworkLength = 64
)

var (
	modelPattern     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:/-]*$`)
	frameworkPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
)

// FileInput is one uploaded source file.
type FileInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// JobRequest is the body of POST /v1/jobs.
type JobRequest struct {
	Model     string      `json:"model,omitempty"`
	Framework string      `json:"framework,omitempty"`
	Files     []FileInput `json:"files"`
}

// ValidateModel checks the identifier format and that a backend serves it.
func ValidateModel(model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("model is required")
	}
	if len(model) > MaxModelLength {
		return fmt.Errorf("model exceeds %d characters", MaxModelLength)
	}
	if !modelPattern.MatchString(model) {
		return fmt.Errorf("model contains invalid characters")
	}
	if _, err := llm.BackendFor(model); err != nil {
		return err
	}
	return nil
}

// ValidatePath rejects empty, absolute-escaping and traversal paths.
func ValidatePath(p string) error {
	if strings.TrimSpace(p) == "" {
		return fmt.Errorf("path is required")
	}
	if len(p) > MaxPathLength {
		return fmt.Errorf("path exceeds %d characters", MaxPathLength)
	}
	if strings.ContainsRune(p, 0) {
		return fmt.Errorf("path %q contains a NUL byte", p)
	}
	for _, seg := range strings.Split(strings.ReplaceAll(p, "\\", "/"), "/") {
		if seg == ".." {
			return fmt.Errorf("path %q escapes the codebase root", p)
		}
	}
	if codebase.NormalizePath(p) == "" {
		return fmt.Errorf("path %q does not name a file", p)
	}
	return nil
}

// ValidateJobRequest checks a submission against the codebase limits.
// An empty model is allowed; the server default applies.
func ValidateJobRequest(req JobRequest, limits codebase.Limits) error {
	if req.Model != "" {
		if err := ValidateModel(req.Model); err != nil {
			return err
		}
	}

	if req.Framework != "" {
		if len(req.Framework) > maxFrameworkLength || !frameworkPattern.MatchString(req.Framework) {
			return fmt.Errorf("unsupported framework name %q", req.Framework)
		}
	}

	if len(req.Files) > MaxFiles {
		return fmt.Errorf("files exceeds %d entries", MaxFiles)
	}

	seen := make(map[string]bool, len(req.Files))
	var total int64
	for _, f := range req.Files {
		if err := ValidatePath(f.Path); err != nil {
			return err
		}
		key := codebase.NormalizePath(f.Path)
		if seen[key] {
			return fmt.Errorf("duplicate path %q", key)
		}
		seen[key] = true

		size := int64(len(f.Content))
		if limits.MaxFileSize > 0 && size > limits.MaxFileSize {
			return fmt.Errorf("file %q is %d bytes, limit is %d", key, size, limits.MaxFileSize)
		}
		total += size
		if limits.MaxTotalSize > 0 && total > limits.MaxTotalSize {
			return fmt.Errorf("codebase exceeds %d bytes", limits.MaxTotalSize)
		}
	}

	return nil
}

// toFileEntries converts validated input into codebase entries.
func toFileEntries(files []FileInput) []models.FileEntry {
	entries := make([]models.FileEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, models.FileEntry{Path: f.Path, Content: f.Content, Size: len(f.Content)})
	}
	return entries
}
