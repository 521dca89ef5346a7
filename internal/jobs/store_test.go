package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/flowspectre/internal/models"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(clock *fakeClock) *Store {
	n := 0
	return NewStore(
		WithClock(clock.Now),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("job-%d", n)
		}),
	)
}

// recorder collects events delivered to a subscriber.
type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) fn(ev models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func equalTypes(a, b []models.EventType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCreateUsesUUID(t *testing.T) {
	s := NewStore()
	a := s.Create(CreateOptions{Model: "claude-test"})
	b := s.Create(CreateOptions{})
	if len(a.ID()) != 36 || a.ID() == b.ID() {
		t.Fatalf("expected distinct uuids, got %q and %q", a.ID(), b.ID())
	}
	snap, ok := s.Get(a.ID())
	if !ok || snap.Status != models.JobPending || snap.Model != "claude-test" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestGetUnknown(t *testing.T) {
	s := newTestStore(newFakeClock())
	if _, ok := s.Get("nope"); ok {
		t.Fatal("expected unknown job")
	}
	if err := s.UpdateStatus("nope", models.JobRunning); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Subscribe("nope", func(models.Event) {}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatusMachineAndTimestamps(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	id := s.Create(CreateOptions{}).ID()

	clock.Advance(time.Second)
	if err := s.UpdateStatus(id, models.JobRunning); err != nil {
		t.Fatalf("pending -> running: %v", err)
	}
	started := clock.Now()

	clock.Advance(time.Second)
	if err := s.UpdateStatus(id, models.JobRunning); err != nil {
		t.Fatalf("repeating a status should be a no-op: %v", err)
	}
	if err := s.UpdateStatus(id, models.JobPending); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	snap, _ := s.Get(id)
	if snap.StartedAt == nil || !snap.StartedAt.Equal(started) {
		t.Fatalf("startedAt should be stamped once, got %v", snap.StartedAt)
	}

	if err := s.UpdateStatus(id, models.JobFailed); err != nil {
		t.Fatalf("running -> failed: %v", err)
	}
	if err := s.UpdateStatus(id, models.JobRunning); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("terminal jobs must not move, got %v", err)
	}
	snap, _ = s.Get(id)
	if snap.CompletedAt == nil {
		t.Fatal("expected completedAt")
	}
}

func TestSetResultOnce(t *testing.T) {
	s := newTestStore(newFakeClock())
	id := s.Create(CreateOptions{}).ID()
	_ = s.UpdateStatus(id, models.JobRunning)

	rec := &recorder{}
	unsub, err := s.Subscribe(id, rec.fn)
	if err != nil {
		t.Fatal(err)
	}
	defer unsub()

	result := &models.AnalysisResult{JobID: id}
	if err := s.SetResult(id, result); err != nil {
		t.Fatalf("SetResult: %v", err)
	}
	if err := s.SetResult(id, &models.AnalysisResult{}); !errors.Is(err, ErrAlreadySet) {
		t.Fatalf("expected ErrAlreadySet, got %v", err)
	}
	if err := s.SetError(id, "late failure"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("completed job must not fail, got %v", err)
	}

	snap, _ := s.Get(id)
	if snap.Status != models.JobCompleted || snap.Result != result {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	want := []models.EventType{models.EventStatus, models.EventProgress, models.EventResult, models.EventStatus}
	if got := rec.types(); !equalTypes(got, want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
}

func TestSetErrorForcesFailed(t *testing.T) {
	s := newTestStore(newFakeClock())
	id := s.Create(CreateOptions{}).ID()

	if err := s.SetError(id, "boom"); err != nil {
		t.Fatalf("SetError: %v", err)
	}
	if err := s.SetError(id, "again"); !errors.Is(err, ErrAlreadySet) {
		t.Fatalf("expected ErrAlreadySet, got %v", err)
	}
	snap, _ := s.Get(id)
	if snap.Status != models.JobFailed || snap.Error != "boom" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	id := s.Create(CreateOptions{}).ID()
	_ = s.UpdateStatus(id, models.JobRunning)

	calls := 0
	if !s.AttachCancel(id, func() { calls++ }) {
		t.Fatal("expected cancel to attach")
	}

	rec := &recorder{}
	unsub, _ := s.Subscribe(id, rec.fn)
	defer unsub()
	before := len(rec.types())

	if !s.Cancel(id) {
		t.Fatal("expected first cancel to succeed")
	}
	first, _ := s.Get(id)

	clock.Advance(time.Minute)
	if !s.Cancel(id) {
		t.Fatal("expected repeated cancel to report cancelled")
	}
	second, _ := s.Get(id)

	if calls != 1 {
		t.Errorf("expected cancel func called once, got %d", calls)
	}
	if !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Errorf("completedAt moved on repeated cancel: %v -> %v", first.CompletedAt, second.CompletedAt)
	}
	want := []models.EventType{models.EventLog, models.EventStatus}
	if got := rec.types()[before:]; !equalTypes(got, want) {
		t.Errorf("events after cancel = %v, want %v", got, want)
	}
	if second.Status != models.JobCancelled {
		t.Errorf("expected cancelled, got %s", second.Status)
	}
}

func TestSetErrorAfterCancel(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	id := s.Create(CreateOptions{}).ID()
	_ = s.UpdateStatus(id, models.JobRunning)
	s.Cancel(id)
	before, _ := s.Get(id)

	rec := &recorder{}
	unsub, _ := s.Subscribe(id, rec.fn)
	defer unsub()
	replayed := len(rec.types())

	clock.Advance(time.Minute)
	if err := s.SetError(id, "boom"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	snap, _ := s.Get(id)
	if snap.Status != models.JobCancelled || snap.Error != "" {
		t.Errorf("cancelled job changed: %+v", snap)
	}
	if !snap.CompletedAt.Equal(*before.CompletedAt) {
		t.Errorf("completedAt moved: %v -> %v", before.CompletedAt, snap.CompletedAt)
	}
	if got := rec.types()[replayed:]; len(got) != 0 {
		t.Errorf("expected no events, got %v", got)
	}
}

func TestSetErrorAfterCompletion(t *testing.T) {
	s := newTestStore(newFakeClock())
	id := s.Create(CreateOptions{}).ID()
	_ = s.UpdateStatus(id, models.JobRunning)
	_ = s.SetResult(id, &models.AnalysisResult{})

	if err := s.SetError(id, "late"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if snap, _ := s.Get(id); snap.Status != models.JobCompleted {
		t.Errorf("expected completed, got %s", snap.Status)
	}
}

func TestCancelLogsBeforeStatus(t *testing.T) {
	s := newTestStore(newFakeClock())
	id := s.Create(CreateOptions{}).ID()
	_ = s.UpdateStatus(id, models.JobRunning)

	rec := &recorder{}
	unsub, _ := s.Subscribe(id, rec.fn)
	defer unsub()
	replayed := len(rec.events)

	s.Cancel(id)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	live := rec.events[replayed:]
	if len(live) != 2 {
		t.Fatalf("expected log and status events, got %d", len(live))
	}
	entry, ok := live[0].Data.(models.LogEntry)
	if !ok || entry.Message != "[runner] cancellation requested" {
		t.Errorf("first event = %+v, want cancellation log", live[0])
	}
	if live[1].Type != models.EventStatus {
		t.Errorf("second event = %s, want status", live[1].Type)
	}
}

func TestCancelTerminalJobIsNoop(t *testing.T) {
	s := newTestStore(newFakeClock())
	id := s.Create(CreateOptions{}).ID()
	_ = s.UpdateStatus(id, models.JobRunning)
	_ = s.SetResult(id, &models.AnalysisResult{})

	if s.Cancel(id) {
		t.Fatal("expected cancel of completed job to be refused")
	}
	if s.Cancel("unknown") {
		t.Fatal("expected cancel of unknown job to be refused")
	}
	snap, _ := s.Get(id)
	if snap.Status != models.JobCompleted {
		t.Fatalf("expected completed, got %s", snap.Status)
	}
}

func TestAttachCancelAfterCancel(t *testing.T) {
	s := newTestStore(newFakeClock())
	id := s.Create(CreateOptions{}).ID()
	s.Cancel(id)

	called := false
	if s.AttachCancel(id, func() { called = true }) {
		t.Fatal("expected attach to report false for cancelled job")
	}
	if !called {
		t.Fatal("expected cancel func to be called immediately")
	}
}

func TestProgressIsClamped(t *testing.T) {
	s := newTestStore(newFakeClock())
	id := s.Create(CreateOptions{}).ID()

	rec := &recorder{}
	unsub, _ := s.Subscribe(id, rec.fn)
	defer unsub()

	s.UpdateProgress(id, models.Progress{Current: 40, Total: 100, Stage: "checklist"})
	s.UpdateProgress(id, models.Progress{Current: 20, Total: 100, Stage: "checklist"})
	s.UpdateProgress(id, models.Progress{Current: 20, Total: 100, Stage: "inspection"})

	snap, _ := s.Get(id)
	if snap.Progress.Current != 40 || snap.Progress.Stage != "inspection" {
		t.Fatalf("unexpected progress %+v", snap.Progress)
	}
	// replay status + progress, then 40/checklist and 40/inspection
	if got := len(rec.types()); got != 4 {
		t.Fatalf("expected 4 events, got %d", got)
	}
}

func TestSubscribeReplaysState(t *testing.T) {
	s := newTestStore(newFakeClock())
	id := s.Create(CreateOptions{}).ID()
	_ = s.UpdateStatus(id, models.JobRunning)
	s.AddLog(id, models.LevelInfo, "one")
	s.AddLog(id, models.LevelWarn, "two")
	s.UpdateProgress(id, models.Progress{Current: 50, Total: 100, Stage: "checklist"})
	_ = s.SetError(id, "broken")

	rec := &recorder{}
	unsub, err := s.Subscribe(id, rec.fn)
	if err != nil {
		t.Fatal(err)
	}
	defer unsub()

	want := []models.EventType{
		models.EventStatus, models.EventLog, models.EventLog, models.EventProgress, models.EventError,
	}
	if got := rec.types(); !equalTypes(got, want) {
		t.Fatalf("expected replay %v, got %v", want, got)
	}
	status := rec.events[0].Data.(models.StatusData)
	if status.Status != models.JobFailed || status.StartedAt == nil || status.CompletedAt == nil {
		t.Errorf("unexpected replayed status %+v", status)
	}
	if rec.events[2].Data.(models.LogEntry).Message != "two" {
		t.Errorf("logs replayed out of order")
	}

	snap, _ := s.Get(id)
	if snap.Subscribers != 1 {
		t.Errorf("expected 1 subscriber, got %d", snap.Subscribers)
	}
	unsub()
	snap, _ = s.Get(id)
	if snap.Subscribers != 0 {
		t.Errorf("expected 0 subscribers after unsubscribe, got %d", snap.Subscribers)
	}
}

func TestSubscriberPanicIsRecovered(t *testing.T) {
	s := newTestStore(newFakeClock())
	id := s.Create(CreateOptions{}).ID()

	unsubBad, _ := s.Subscribe(id, func(ev models.Event) {
		if ev.Type == models.EventLog {
			panic("subscriber bug")
		}
	})
	defer unsubBad()
	rec := &recorder{}
	unsub, _ := s.Subscribe(id, rec.fn)
	defer unsub()

	s.AddLog(id, models.LevelInfo, "hello")

	got := rec.types()
	if got[len(got)-1] != models.EventLog {
		t.Fatalf("second subscriber should still receive the log, got %v", got)
	}
}

func TestConcurrentEventsKeepOrder(t *testing.T) {
	s := NewStore()
	id := s.Create(CreateOptions{}).ID()

	rec := &recorder{}
	unsub, _ := s.Subscribe(id, rec.fn)
	defer unsub()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.AddLog(id, models.LevelInfo, fmt.Sprintf("%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()

	snap, _ := s.Get(id)
	if len(snap.Logs) != 200 {
		t.Fatalf("expected 200 logs, got %d", len(snap.Logs))
	}
	var delivered []string
	for _, ev := range rec.events {
		if ev.Type == models.EventLog {
			delivered = append(delivered, ev.Data.(models.LogEntry).Message)
		}
	}
	for i, entry := range snap.Logs {
		if delivered[i] != entry.Message {
			t.Fatalf("event %d out of order: %s vs %s", i, delivered[i], entry.Message)
		}
	}
}

func TestSweep(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	done := s.Create(CreateOptions{}).ID()
	_ = s.UpdateStatus(done, models.JobRunning)
	_ = s.SetResult(done, &models.AnalysisResult{})

	running := s.Create(CreateOptions{}).ID()
	_ = s.UpdateStatus(running, models.JobRunning)

	clock.Advance(30 * time.Minute)
	if n := s.Sweep(time.Hour); n != 0 {
		t.Fatalf("expected nothing swept yet, got %d", n)
	}

	clock.Advance(time.Hour)
	if n := s.Sweep(time.Hour); n != 1 {
		t.Fatalf("expected 1 job swept, got %d", n)
	}
	if _, ok := s.Get(done); ok {
		t.Error("expected completed job removed")
	}
	if _, ok := s.Get(running); !ok {
		t.Error("running job must survive sweeps")
	}
}

func TestSweepKeepsSubscribedJobs(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	watched := s.Create(CreateOptions{}).ID()
	_ = s.UpdateStatus(watched, models.JobRunning)
	_ = s.SetResult(watched, &models.AnalysisResult{})
	unsub, err := s.Subscribe(watched, func(models.Event) {})
	if err != nil {
		t.Fatal(err)
	}

	clock.Advance(2 * time.Hour)
	if n := s.Sweep(time.Hour); n != 0 {
		t.Fatalf("expected subscribed job kept, swept %d", n)
	}
	if _, ok := s.Get(watched); !ok {
		t.Fatal("subscribed job removed")
	}

	unsub()
	if n := s.Sweep(time.Hour); n != 1 {
		t.Fatalf("expected job swept after unsubscribe, got %d", n)
	}
}

func TestRunJanitor(t *testing.T) {
	s := NewStore()
	id := s.Create(CreateOptions{}).ID()
	_ = s.SetError(id, "failed")

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		s.RunJanitor(ctx, 5*time.Millisecond, 0)
		close(finished)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := s.Get(id); !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("janitor did not sweep the job")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-finished
}

func TestDeleteCancelsRun(t *testing.T) {
	s := newTestStore(newFakeClock())
	id := s.Create(CreateOptions{}).ID()
	called := false
	s.AttachCancel(id, func() { called = true })

	if !s.Delete(id) {
		t.Fatal("expected delete to succeed")
	}
	if !called {
		t.Error("expected running job to be cancelled on delete")
	}
	if s.Delete(id) {
		t.Error("expected second delete to report false")
	}
}

func TestListNewestFirst(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	s.Create(CreateOptions{})
	clock.Advance(time.Second)
	s.Create(CreateOptions{})

	list := s.List()
	if len(list) != 2 || list[0].ID != "job-2" {
		t.Fatalf("unexpected order %+v", list)
	}
}
