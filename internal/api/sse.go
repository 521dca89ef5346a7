package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ppiankov/flowspectre/internal/models"
)

// eventQueue buffers store events for one stream. push is called under the
// job lock and never blocks.
type eventQueue struct {
	mu     sync.Mutex
	events []models.Event
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{signal: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev models.Event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []models.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.events
	q.events = nil
	return out
}

// isTerminal reports whether ev moves the job into a final status.
func isTerminal(ev models.Event) bool {
	if ev.Type != models.EventStatus {
		return false
	}
	switch data := ev.Data.(type) {
	case models.StatusData:
		return data.Status.IsTerminal()
	case *models.StatusData:
		return data != nil && data.Status.IsTerminal()
	}
	return false
}

// writeEvent writes one Server-Sent Event.
func writeEvent(w io.Writer, ev models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", ev.Type, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	q := newEventQueue()
	unsubscribe, err := s.store.Subscribe(id, q.push)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(s.opts.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-q.signal:
			// A finished job replays its terminal status before its logs, so
			// the whole batch is written before the stream ends.
			finished := false
			for _, ev := range q.drain() {
				if err := writeEvent(w, ev); err != nil {
					s.logger.Debug("event stream closed", "job", id, "error", err)
					return
				}
				if isTerminal(ev) {
					finished = true
				}
			}
			flusher.Flush()
			if finished {
				return
			}
		}
	}
}
