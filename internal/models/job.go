package models

import "time"

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// CanTransition reports whether the status machine allows from -> to.
// pending -> running -> {completed, failed, cancelled}; pending may also end directly.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobPending:
		return to == JobRunning || to.IsTerminal()
	case JobRunning:
		return to.IsTerminal()
	default:
		return false
	}
}

// Log levels used in the job log stream
const (
	LevelInfo    = "info"
	LevelWarn    = "warn"
	LevelError   = "error"
	LevelDebug   = "debug"
	LevelSuccess = "success"
)

// LogEntry is one line of the job log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// Progress is the unified progress of a job.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Stage   string `json:"stage"`
}

// EventType identifies the payload of a job event.
type EventType string

const (
	EventLog      EventType = "log"
	EventProgress EventType = "progress"
	EventStatus   EventType = "status"
	EventResult   EventType = "result"
	EventError    EventType = "error"
)

// Event is delivered to job subscribers in emission order.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// StatusData is the payload of a status event.
type StatusData struct {
	Status      JobStatus  `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Message string `json:"message"`
}

// JobSnapshot is a read-only copy of a job's state.
type JobSnapshot struct {
	ID          string          `json:"id"`
	Status      JobStatus       `json:"status"`
	Model       string          `json:"model,omitempty"`
	Source      string          `json:"source,omitempty"`
	Logs        []LogEntry      `json:"logs"`
	Progress    Progress        `json:"progress"`
	Result      *AnalysisResult `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Subscribers int             `json:"subscribers"`
}
