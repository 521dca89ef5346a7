package discovery

import (
	"context"

	"github.com/ppiankov/flowspectre/internal/codebase"
	"github.com/ppiankov/flowspectre/internal/conversation"
	"github.com/ppiankov/flowspectre/internal/models"
	"github.com/ppiankov/flowspectre/internal/parser"
)

// tracer holds the per-trace exploration state: exploring until an entry point
// is picked, tracing afterwards.
type tracer struct {
	set     *codebase.Set
	tracing bool
	read    map[string]bool
	queue   []string
}

func newTracer(set *codebase.Set) *tracer {
	return &tracer{set: set, read: make(map[string]bool)}
}

func (t *tracer) handle(ctx context.Context, st conversation.State, resp parser.DiscoveryResponse) (conversation.Step, error) {
	var next string
	switch resp.Status {
	case parser.StatusCompleted, parser.StatusNotFound:
		return conversation.Step{Done: true}, nil
	case parser.StatusPickEndpoint:
		next = t.pick(resp.FileToReadNext)
	case parser.StatusTracingEndpoint:
		next = t.follow(resp.FileToReadNext, resp.ReadLater)
	}

	if st.Remaining() == 1 {
		next = concludeWarning + next
	}
	return conversation.Step{NextPrompt: next}, nil
}

func (t *tracer) pick(requested string) string {
	f, ok := t.set.Lookup(requested)
	if !ok {
		return candidatesPrompt(requested, t.set.Candidates(requested, codebase.MaxCandidates), t.tracing)
	}
	t.tracing = true
	t.read[f.Path] = true
	return entryPointPrompt(f)
}

func (t *tracer) follow(requested string, readLater []string) string {
	t.enqueue(readLater)
	t.tracing = true

	if f, ok := t.set.Lookup(requested); ok {
		if t.read[f.Path] {
			return cachedPrompt(f)
		}
		t.read[f.Path] = true
		return tracePrompt(f)
	}

	if f, ok := t.popQueued(); ok {
		t.read[f.Path] = true
		return fallbackPrompt(requested, f)
	}
	return candidatesPrompt(requested, t.set.Candidates(requested, codebase.MaxCandidates), true)
}

func (t *tracer) enqueue(paths []string) {
	for _, p := range paths {
		norm := codebase.NormalizePath(p)
		if norm == "" || t.read[norm] {
			continue
		}
		dup := false
		for _, q := range t.queue {
			if q == norm {
				dup = true
				break
			}
		}
		if !dup {
			t.queue = append(t.queue, norm)
		}
	}
}

// popQueued returns the first queued file that exists and has not been read.
func (t *tracer) popQueued() (models.FileEntry, bool) {
	for len(t.queue) > 0 {
		p := t.queue[0]
		t.queue = t.queue[1:]
		if t.read[p] {
			continue
		}
		if f, ok := t.set.Lookup(p); ok {
			return f, true
		}
	}
	return models.FileEntry{}, false
}
