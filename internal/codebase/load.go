package codebase

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ppiankov/flowspectre/internal/models"
)

// Limits bounds what LoadDir will read.
type Limits struct {
	MaxFileSize  int64
	MaxTotalSize int64
}

// LoadStats describes what LoadDir skipped.
type LoadStats struct {
	Loaded       int   `json:"loaded"`
	SkippedLarge int   `json:"skipped_large"`
	SkippedBin   int   `json:"skipped_binary"`
	Truncated    bool  `json:"truncated"`
	TotalBytes   int64 `json:"total_bytes"`
}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"coverage":     true,
	".next":        true,
	".nuxt":        true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	".idea":        true,
	".vscode":      true,
	".flowspectre": true,
}

// LoadDir reads the text files under root into a Set.
func LoadDir(root string, limits Limits) (*Set, LoadStats, error) {
	var stats LoadStats

	info, err := os.Stat(root)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, stats, fmt.Errorf("%s is not a directory", root)
	}

	var files []models.FileEntry
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		if limits.MaxFileSize > 0 && fi.Size() > limits.MaxFileSize {
			stats.SkippedLarge++
			return nil
		}
		if limits.MaxTotalSize > 0 && stats.TotalBytes+fi.Size() > limits.MaxTotalSize {
			stats.Truncated = true
			return filepath.SkipAll
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		if isBinary(data) {
			stats.SkippedBin++
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, models.FileEntry{
			Path:    filepath.ToSlash(rel),
			Content: string(data),
			Size:    len(data),
		})
		stats.TotalBytes += int64(len(data))
		stats.Loaded++
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return NewSet(files), stats, nil
}

// isBinary treats a NUL byte in the first 8000 bytes as binary content.
func isBinary(data []byte) bool {
	head := data
	if len(head) > 8000 {
		head = head[:8000]
	}
	return bytes.IndexByte(head, 0) >= 0
}
