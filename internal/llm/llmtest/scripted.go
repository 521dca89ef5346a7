// Package llmtest provides a scripted llm.Gateway for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ppiankov/flowspectre/internal/llm"
)

// Reply is one scripted completion. If Err is set it is returned instead of Text.
// Hook runs before the reply is returned.
type Reply struct {
	Text string
	Err  error
	Hook func()
}

// Scripted replays replies in order and records every request.
type Scripted struct {
	mu       sync.Mutex
	replies  []Reply
	requests []llm.Request
}

// New creates a gateway that returns the given texts in order.
func New(texts ...string) *Scripted {
	s := &Scripted{}
	for _, t := range texts {
		s.replies = append(s.replies, Reply{Text: t})
	}
	return s
}

// Add appends replies to the script.
func (s *Scripted) Add(replies ...Reply) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
	return s
}

// Complete implements llm.Gateway.
func (s *Scripted) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	idx := len(s.requests)
	s.requests = append(s.requests, req)
	var r Reply
	if idx < len(s.replies) {
		r = s.replies[idx]
	}
	s.mu.Unlock()

	if idx >= len(s.replies) {
		return "", fmt.Errorf("llmtest: script exhausted at call %d", idx)
	}
	if r.Hook != nil {
		r.Hook()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r.Err != nil {
		return "", r.Err
	}
	return r.Text, nil
}

// Calls returns the number of requests received.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Request returns the i-th recorded request.
func (s *Scripted) Request(i int) llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

// LastPrompt returns the final user message of the i-th request.
func (s *Scripted) LastPrompt(i int) string {
	req := s.Request(i)
	if len(req.Messages) == 0 {
		return ""
	}
	return req.Messages[len(req.Messages)-1].Content
}
