package conversation

import "time"

// Transcript outcomes
const (
	OutcomeCompleted        = "completed"
	OutcomeRetriesExhausted = "retries_exhausted"
	OutcomeDepthExhausted   = "depth_exhausted"
	OutcomeCancelled        = "cancelled"
	OutcomeError            = "error"
)

// Turn is one message exchanged with the model.
type Turn struct {
	Index      int       `json:"index"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Discarded  bool      `json:"discarded,omitempty"`
	ParseError string    `json:"parse_error,omitempty"`
}

// Transcript is the full record of one unit of work. Discarded turns are kept
// so that failed replies can be inspected offline.
type Transcript struct {
	UnitID     string    `json:"unit_id"`
	Agent      string    `json:"agent"`
	Model      string    `json:"model"`
	Turns      []Turn    `json:"turns"`
	Depth      int       `json:"depth"`
	MaxDepth   int       `json:"max_depth"`
	Retries    int       `json:"retries"`
	MaxRetries int       `json:"max_retries"`
	Success    bool      `json:"success"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (t *Transcript) add(role, content string, ts time.Time) {
	t.Turns = append(t.Turns, Turn{Index: len(t.Turns), Role: role, Content: content, Timestamp: ts})
}

// discardLast marks the last n turns as dropped from the live history.
func (t *Transcript) discardLast(n int, reason string) {
	for i := len(t.Turns) - n; i < len(t.Turns); i++ {
		if i < 0 {
			continue
		}
		t.Turns[i].Discarded = true
	}
	if len(t.Turns) > 0 {
		t.Turns[len(t.Turns)-1].ParseError = reason
	}
}

// Exchanges returns the number of completions that were kept.
func (t *Transcript) Exchanges() int {
	n := 0
	for _, turn := range t.Turns {
		if turn.Role == "assistant" && !turn.Discarded {
			n++
		}
	}
	return n
}
