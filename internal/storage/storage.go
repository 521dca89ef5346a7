package storage

import (
	"time"

	"github.com/ppiankov/flowspectre/internal/conversation"
	"github.com/ppiankov/flowspectre/internal/models"
)

// Storage defines the interface for persisting analysis results
type Storage interface {
	// SaveResult stores a complete analysis result and returns its path
	SaveResult(result *models.AnalysisResult) (string, error)

	// LoadResult loads a result from a specific timestamp
	LoadResult(timestamp time.Time) (*models.AnalysisResult, error)

	// GetLatestRun retrieves the most recent analysis result
	GetLatestRun() (*models.AnalysisResult, error)

	// GetLastNRuns retrieves the last N analysis results
	GetLastNRuns(n int) ([]*models.AnalysisResult, error)

	// ListRuns returns all available run timestamps
	ListRuns() ([]time.Time, error)
}

// ArtifactWriter persists per-stage debug artifacts.
type ArtifactWriter interface {
	SaveArtifact(artifact *Artifact) (string, error)
}

// Artifact is the debug record of one stage run: its parameters, what it
// produced, and the transcript of every unit of work.
type Artifact struct {
	Agent       string                     `json:"agent"`
	JobID       string                     `json:"job_id,omitempty"`
	CreatedAt   time.Time                  `json:"created_at"`
	Params      map[string]interface{}     `json:"params"`
	Artifacts   interface{}                `json:"artifacts"`
	Transcripts []*conversation.Transcript `json:"transcripts"`
}
