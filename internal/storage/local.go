package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/flowspectre/internal/models"
)

const (
	runSuffix       = "-analysis.json"
	timestampLayout = "2006-01-02T15-04-05"
)

// LocalStorage implements Storage and ArtifactWriter on the local filesystem
type LocalStorage struct {
	baseDir string
}

// NewLocal creates a new local storage instance
func NewLocal(baseDir string) *LocalStorage {
	return &LocalStorage{
		baseDir: baseDir,
	}
}

// SaveResult stores an analysis result under runs/, named by its finish time
func (s *LocalStorage) SaveResult(result *models.AnalysisResult) (string, error) {
	runsDir := filepath.Join(s.baseDir, "runs")
	if err := os.MkdirAll(runsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create runs directory: %w", err)
	}

	ts := result.FinishedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	path := filepath.Join(runsDir, s.formatTimestamp(ts)+runSuffix)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return path, nil
}

// LoadResult loads a result from a specific timestamp
func (s *LocalStorage) LoadResult(timestamp time.Time) (*models.AnalysisResult, error) {
	path := filepath.Join(s.baseDir, "runs", s.formatTimestamp(timestamp)+runSuffix)
	return LoadResultFile(path)
}

// GetLatestRun retrieves the most recent analysis result
func (s *LocalStorage) GetLatestRun() (*models.AnalysisResult, error) {
	timestamps, err := s.ListRuns()
	if err != nil {
		return nil, err
	}
	if len(timestamps) == 0 {
		return nil, fmt.Errorf("no runs found")
	}
	return s.LoadResult(timestamps[len(timestamps)-1])
}

// GetLastNRuns retrieves the last N analysis results
func (s *LocalStorage) GetLastNRuns(n int) ([]*models.AnalysisResult, error) {
	timestamps, err := s.ListRuns()
	if err != nil {
		return nil, err
	}
	if len(timestamps) == 0 {
		return nil, fmt.Errorf("no runs found")
	}

	start := len(timestamps) - n
	if start < 0 {
		start = 0
	}

	results := make([]*models.AnalysisResult, 0, len(timestamps)-start)
	for _, timestamp := range timestamps[start:] {
		result, err := s.LoadResult(timestamp)
		if err != nil {
			// Skip results that fail to load but continue with others
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// ListRuns returns all available run timestamps sorted chronologically
func (s *LocalStorage) ListRuns() ([]time.Time, error) {
	runsDir := filepath.Join(s.baseDir, "runs")
	if _, err := os.Stat(runsDir); os.IsNotExist(err) {
		return []time.Time{}, nil
	}

	entries, err := os.ReadDir(runsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var timestamps []time.Time
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), runSuffix) {
			continue
		}
		// Format: 2006-01-02T15-04-05-analysis.json
		timestamp, err := s.parseTimestamp(strings.TrimSuffix(entry.Name(), runSuffix))
		if err != nil {
			continue
		}
		timestamps = append(timestamps, timestamp)
	}

	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i].Before(timestamps[j])
	})
	return timestamps, nil
}

// SaveArtifact writes a debug artifact to debug/<agent>/<agent>_<timestamp>.json.
// The timestamp is ISO-8601 with ':' and '.' replaced; a numeric suffix avoids collisions.
func (s *LocalStorage) SaveArtifact(artifact *Artifact) (string, error) {
	if artifact.Agent == "" {
		return "", errors.New("artifact agent is required")
	}
	dir := filepath.Join(s.baseDir, "debug", artifact.Agent)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug directory: %w", err)
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now()
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal artifact: %w", err)
	}

	base := artifact.Agent + "_" + SafeTimestamp(artifact.CreatedAt)
	for i := 0; ; i++ {
		name := base + ".json"
		if i > 0 {
			name = fmt.Sprintf("%s-%d.json", base, i)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create artifact: %w", err)
		}
		_, werr := f.Write(data)
		cerr := f.Close()
		if werr != nil {
			return "", fmt.Errorf("failed to write artifact: %w", werr)
		}
		if cerr != nil {
			return "", fmt.Errorf("failed to close artifact: %w", cerr)
		}
		return path, nil
	}
}

// SafeTimestamp formats t as ISO-8601 with filesystem-unsafe separators replaced.
func SafeTimestamp(t time.Time) string {
	return strings.NewReplacer(":", "-", ".", "-").Replace(t.UTC().Format(time.RFC3339Nano))
}

// LoadResultFile reads an analysis result from any path
func LoadResultFile(path string) (*models.AnalysisResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("result not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// formatTimestamp converts a time.Time to filename-safe format
func (s *LocalStorage) formatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// parseTimestamp converts filename format back to time.Time
func (s *LocalStorage) parseTimestamp(str string) (time.Time, error) {
	return time.Parse(timestampLayout, str)
}

// GetStoragePath returns the full path to the storage directory
func (s *LocalStorage) GetStoragePath() string {
	return s.baseDir
}

// EnsureDirectoryExists creates the storage directory if it doesn't exist
func (s *LocalStorage) EnsureDirectoryExists() error {
	return os.MkdirAll(filepath.Join(s.baseDir, "runs"), 0755)
}
