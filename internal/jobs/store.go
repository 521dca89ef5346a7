package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/ppiankov/flowspectre/internal/models"
)

var (
	// ErrNotFound is returned for unknown job ids.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when the status machine rejects a change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadySet is returned when a result or error is set twice.
	ErrAlreadySet = errors.New("already set")
)

// Subscriber receives job events. It is called synchronously with the job
// locked and must not block or call back into the store for the same job.
type Subscriber func(models.Event)

// Job is one analysis job. All state is guarded by mu.
type Job struct {
	mu sync.Mutex

	id     string
	model  string
	source string

	status      models.JobStatus
	logs        []models.LogEntry
	progress    models.Progress
	result      *models.AnalysisResult
	err         string
	errSet      bool
	createdAt   time.Time
	startedAt   *time.Time
	completedAt *time.Time

	subscribers map[int]Subscriber
	nextSub     int
	cancel      context.CancelFunc
}

// ID returns the job id.
func (j *Job) ID() string {
	return j.id
}

// snapshot copies the job state. Callers hold j.mu.
func (j *Job) snapshot() models.JobSnapshot {
	logs := make([]models.LogEntry, len(j.logs))
	copy(logs, j.logs)
	return models.JobSnapshot{
		ID:          j.id,
		Status:      j.status,
		Model:       j.model,
		Source:      j.source,
		Logs:        logs,
		Progress:    j.progress,
		Result:      j.result,
		Error:       j.err,
		CreatedAt:   j.createdAt,
		StartedAt:   copyTime(j.startedAt),
		CompletedAt: copyTime(j.completedAt),
		Subscribers: len(j.subscribers),
	}
}

// CreateOptions describes a new job.
type CreateOptions struct {
	Model  string
	Source string
}

// Option configures a Store.
type Option func(*Store)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator replaces uuid job ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

// WithLogger sets the logger used for subscriber failures and sweeps.
func WithLogger(logger hclog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store is an in-memory registry of jobs with per-job event fan-out.
type Store struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	now    func() time.Time
	newID  func() string
	logger hclog.Logger
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		jobs:   make(map[string]*Job),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("jobs")
	return s
}

// Create registers a pending job.
func (s *Store) Create(opts CreateOptions) *Job {
	j := &Job{
		id:          s.newID(),
		model:       opts.Model,
		source:      opts.Source,
		status:      models.JobPending,
		logs:        []models.LogEntry{},
		createdAt:   s.now(),
		subscribers: make(map[int]Subscriber),
	}

	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()

	s.logger.Debug("job created", "job", j.id, "model", opts.Model)
	return j
}

func (s *Store) job(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

// Get returns a snapshot of a job.
func (s *Store) Get(id string) (models.JobSnapshot, bool) {
	j, ok := s.job(id)
	if !ok {
		return models.JobSnapshot{}, false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshot(), true
}

// List returns snapshots of every job, newest first.
func (s *Store) List() []models.JobSnapshot {
	s.mu.RLock()
	all := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		all = append(all, j)
	}
	s.mu.RUnlock()

	snaps := make([]models.JobSnapshot, 0, len(all))
	for _, j := range all {
		j.mu.Lock()
		snaps = append(snaps, j.snapshot())
		j.mu.Unlock()
	}
	sort.Slice(snaps, func(a, b int) bool {
		if snaps[a].CreatedAt.Equal(snaps[b].CreatedAt) {
			return snaps[a].ID < snaps[b].ID
		}
		return snaps[a].CreatedAt.After(snaps[b].CreatedAt)
	})
	return snaps
}

// Delete removes a job. A running job is cancelled first.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	j, ok := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()
	if !ok {
		return false
	}

	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true
}

// Subscribe registers fn for future events of a job after replaying its
// current state: status, logs, progress, then result or error when set.
// Replay and registration happen under the job lock, so fn sees every event
// exactly once and in order.
func (s *Store) Subscribe(id string, fn Subscriber) (func(), error) {
	j, ok := s.job(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	now := s.now()
	replay := []models.Event{{Type: models.EventStatus, Timestamp: now, Data: j.statusData()}}
	for _, entry := range j.logs {
		replay = append(replay, models.Event{Type: models.EventLog, Timestamp: entry.Timestamp, Data: entry})
	}
	replay = append(replay, models.Event{Type: models.EventProgress, Timestamp: now, Data: j.progress})
	if j.result != nil {
		replay = append(replay, models.Event{Type: models.EventResult, Timestamp: now, Data: j.result})
	}
	if j.errSet {
		replay = append(replay, models.Event{Type: models.EventError, Timestamp: now, Data: models.ErrorData{Message: j.err}})
	}
	for _, ev := range replay {
		s.deliver(j.id, fn, ev)
	}

	key := j.nextSub
	j.nextSub++
	j.subscribers[key] = fn

	return func() {
		j.mu.Lock()
		delete(j.subscribers, key)
		j.mu.Unlock()
	}, nil
}

// AddLog appends a log entry to a job.
func (s *Store) AddLog(id, level, message string) {
	j, ok := s.job(id)
	if !ok {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := models.LogEntry{Timestamp: s.now(), Level: level, Message: message}
	j.logs = append(j.logs, entry)
	s.emit(j, models.Event{Type: models.EventLog, Timestamp: entry.Timestamp, Data: entry})
}

// UpdateProgress records job progress. Regressions are clamped to the
// current value; unchanged progress emits nothing.
func (s *Store) UpdateProgress(id string, progress models.Progress) {
	j, ok := s.job(id)
	if !ok {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if progress.Current < j.progress.Current {
		progress.Current = j.progress.Current
	}
	if progress == j.progress {
		return
	}
	j.progress = progress
	s.emit(j, models.Event{Type: models.EventProgress, Timestamp: s.now(), Data: progress})
}

// UpdateStatus moves a job through the status machine. Setting the current
// status again is a no-op.
func (s *Store) UpdateStatus(id string, status models.JobStatus) error {
	j, ok := s.job(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status == status {
		return nil
	}
	if !models.CanTransition(j.status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.status, status)
	}
	s.setStatus(j, status)
	return nil
}

// SetResult stores the final result and completes the job. It succeeds once.
func (s *Store) SetResult(id string, result *models.AnalysisResult) error {
	j, ok := s.job(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.result != nil {
		return fmt.Errorf("result %w for job %s", ErrAlreadySet, id)
	}
	if !models.CanTransition(j.status, models.JobCompleted) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.status, models.JobCompleted)
	}
	j.result = result
	s.emit(j, models.Event{Type: models.EventResult, Timestamp: s.now(), Data: result})
	s.setStatus(j, models.JobCompleted)
	return nil
}

// SetError records a failure and moves a pending or running job to failed.
// It succeeds once and never touches a job that already reached a terminal
// status.
func (s *Store) SetError(id, message string) error {
	j, ok := s.job(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.errSet {
		return fmt.Errorf("error %w for job %s", ErrAlreadySet, id)
	}
	if j.status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.status, models.JobFailed)
	}
	j.err = message
	j.errSet = true
	s.emit(j, models.Event{Type: models.EventError, Timestamp: s.now(), Data: models.ErrorData{Message: message}})
	s.setStatus(j, models.JobFailed)
	return nil
}

// Cancel marks a job cancelled and stops its run. It is idempotent: it
// reports true for a job that is cancelled after the call, and false for
// unknown, completed or failed jobs, which are left untouched.
func (s *Store) Cancel(id string) bool {
	j, ok := s.job(id)
	if !ok {
		return false
	}
	j.mu.Lock()
	if j.status == models.JobCancelled {
		j.mu.Unlock()
		return true
	}
	if j.status.IsTerminal() {
		j.mu.Unlock()
		return false
	}
	cancel := j.cancel
	// the log goes out first: streams close on the terminal status
	entry := models.LogEntry{Timestamp: s.now(), Level: models.LevelWarn, Message: "[runner] cancellation requested"}
	j.logs = append(j.logs, entry)
	s.emit(j, models.Event{Type: models.EventLog, Timestamp: entry.Timestamp, Data: entry})
	s.setStatus(j, models.JobCancelled)
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.logger.Info("job cancelled", "job", id)
	return true
}

// AttachCancel stores the function that stops a job's run. If the job was
// cancelled already, cancel is called immediately and false is returned.
func (s *Store) AttachCancel(id string, cancel context.CancelFunc) bool {
	j, ok := s.job(id)
	if !ok {
		cancel()
		return false
	}
	j.mu.Lock()
	if j.status == models.JobCancelled {
		j.mu.Unlock()
		cancel()
		return false
	}
	j.cancel = cancel
	j.mu.Unlock()
	return true
}

// Sweep removes terminal jobs that completed more than maxAge ago and have
// no subscribers left. It returns how many were removed.
func (s *Store) Sweep(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, j := range s.jobs {
		j.mu.Lock()
		expired := j.status.IsTerminal() && j.completedAt != nil && j.completedAt.Before(cutoff) &&
			len(j.subscribers) == 0
		j.mu.Unlock()
		if expired {
			delete(s.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("swept jobs", "removed", removed)
	}
	return removed
}

// RunJanitor sweeps expired jobs every interval until ctx is done.
func (s *Store) RunJanitor(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(maxAge)
		}
	}
}

// setStatus applies a status and stamps timestamps once. Callers hold j.mu.
func (s *Store) setStatus(j *Job, status models.JobStatus) {
	now := s.now()
	j.status = status
	if status == models.JobRunning && j.startedAt == nil {
		j.startedAt = &now
	}
	if status.IsTerminal() {
		if j.completedAt == nil {
			j.completedAt = &now
		}
		j.cancel = nil
	}
	s.emit(j, models.Event{Type: models.EventStatus, Timestamp: now, Data: j.statusData()})
}

func (j *Job) statusData() models.StatusData {
	return models.StatusData{
		Status:      j.status,
		StartedAt:   copyTime(j.startedAt),
		CompletedAt: copyTime(j.completedAt),
	}
}

// emit fans an event out to every subscriber in registration order.
// Callers hold j.mu.
func (s *Store) emit(j *Job, ev models.Event) {
	keys := make([]int, 0, len(j.subscribers))
	for k := range j.subscribers {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		s.deliver(j.id, j.subscribers[k], ev)
	}
}

func (s *Store) deliver(id string, fn Subscriber, ev models.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Warn("subscriber panicked", "job", id, "event", ev.Type, "panic", rec)
		}
	}()
	fn(ev)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
