package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/ppiankov/flowspectre/internal/llm"
	"github.com/ppiankov/flowspectre/internal/models"
)

var (
	// ErrCancelled aborts the whole job. It is never retried.
	ErrCancelled = errors.New("cancelled")
	// ErrRetriesExhausted means the unit produced too many unusable replies.
	ErrRetriesExhausted = errors.New("retry budget exhausted")
	// ErrDepthExhausted means the unit used every turn without finishing.
	ErrDepthExhausted = errors.New("turn budget exhausted")
)

// IsCancelled reports whether err represents cancellation of the job.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// State is the budget view handed to a response handler.
type State struct {
	UnitID   string
	Depth    int
	MaxDepth int
	Retries  int
}

// Remaining returns how many successful turns are left.
func (s State) Remaining() int {
	return s.MaxDepth - s.Depth
}

// Step tells the driver what to do after a handled reply.
type Step struct {
	Done       bool
	NextPrompt string
}

// ParseFunc decodes a raw completion. A non-nil error consumes retry budget.
type ParseFunc[R any] func(text string) (R, error)

// HandleFunc acts on a parsed reply. A returned error ends the unit.
type HandleFunc[R any] func(ctx context.Context, st State, resp R) (Step, error)

// Driver runs one bounded conversation per unit of work.
type Driver[R any] struct {
	Gateway      llm.Gateway
	Model        string
	Agent        string
	SystemPrompt string
	MaxDepth     int
	MaxRetries   int
	Parse        ParseFunc[R]
	Handle       HandleFunc[R]
	Observer     Observer
	Logger       hclog.Logger
	Now          func() time.Time
}

func (d *Driver[R]) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Driver[R]) observer() Observer {
	if d.Observer == nil {
		return NopObserver{}
	}
	return d.Observer
}

func (d *Driver[R]) logger() hclog.Logger {
	if d.Logger == nil {
		return hclog.NewNullLogger()
	}
	return d.Logger
}

// Run drives the conversation for unitID starting from prompt. The transcript
// is returned on every path, including errors.
func (d *Driver[R]) Run(ctx context.Context, unitID, prompt string) (R, *Transcript, error) {
	var zero R
	log := d.logger().With("unit", unitID)
	obs := d.observer()

	tr := &Transcript{
		UnitID:     unitID,
		Agent:      d.Agent,
		Model:      d.Model,
		MaxDepth:   d.MaxDepth,
		MaxRetries: d.MaxRetries,
		StartedAt:  d.now(),
	}
	finish := func(outcome string, err error) {
		tr.Outcome = outcome
		tr.Success = outcome == OutcomeCompleted
		if err != nil {
			tr.Error = err.Error()
		}
		tr.FinishedAt = d.now()
	}
	cancelled := func() (R, *Transcript, error) {
		err := fmt.Errorf("%s %s: %w", d.Agent, unitID, ErrCancelled)
		finish(OutcomeCancelled, err)
		return zero, tr, err
	}

	var history []llm.Message
	basePrompt := prompt

	// rejected drops the last exchange and counts a retry. A malformed reply
	// gets a corrective note; a failed request re-sends the same prompt.
	rejected := func(reason string, drop int, corrective bool) error {
		history = history[:len(history)-drop]
		tr.discardLast(drop, reason)
		tr.Retries++
		if tr.Retries > d.MaxRetries {
			return ErrRetriesExhausted
		}
		obs.Log(models.LevelWarn, fmt.Sprintf("[%s] %s: unusable reply (%s), retry %d/%d", d.Agent, unitID, reason, tr.Retries, d.MaxRetries))
		log.Warn("retrying unusable reply", "reason", reason, "retries", tr.Retries)
		if corrective {
			prompt = correctivePrompt(basePrompt, reason)
		}
		return nil
	}

	for {
		if ctx.Err() != nil {
			return cancelled()
		}
		if tr.Depth >= d.MaxDepth {
			err := fmt.Errorf("%s %s: %w after %d turns", d.Agent, unitID, ErrDepthExhausted, tr.Depth)
			finish(OutcomeDepthExhausted, err)
			return zero, tr, err
		}

		history = append(history, llm.Message{Role: llm.RoleUser, Content: prompt})
		tr.add(llm.RoleUser, prompt, d.now())

		if ctx.Err() != nil {
			return cancelled()
		}
		text, err := d.Gateway.Complete(ctx, llm.Request{
			Model:        d.Model,
			SystemPrompt: d.SystemPrompt,
			Messages:     append([]llm.Message(nil), history...),
		})
		if err != nil {
			if ctx.Err() != nil || IsCancelled(err) {
				return cancelled()
			}
			if rerr := rejected(fmt.Sprintf("model request failed: %v", err), 1, false); rerr != nil {
				err = fmt.Errorf("%s %s: %w: %v", d.Agent, unitID, rerr, err)
				finish(OutcomeRetriesExhausted, err)
				return zero, tr, err
			}
			continue
		}

		history = append(history, llm.Message{Role: llm.RoleAssistant, Content: text})
		tr.add(llm.RoleAssistant, text, d.now())

		resp, perr := d.Parse(text)
		if perr != nil {
			if rerr := rejected(perr.Error(), 2, true); rerr != nil {
				err := fmt.Errorf("%s %s: %w: %v", d.Agent, unitID, rerr, perr)
				finish(OutcomeRetriesExhausted, err)
				return zero, tr, err
			}
			continue
		}

		tr.Depth++
		st := State{UnitID: unitID, Depth: tr.Depth, MaxDepth: d.MaxDepth, Retries: tr.Retries}
		step, herr := d.Handle(ctx, st, resp)
		if herr != nil {
			if IsCancelled(herr) {
				return cancelled()
			}
			err := fmt.Errorf("%s %s: %w", d.Agent, unitID, herr)
			finish(OutcomeError, err)
			return zero, tr, err
		}
		if step.Done {
			finish(OutcomeCompleted, nil)
			log.Debug("unit completed", "depth", tr.Depth, "retries", tr.Retries)
			return resp, tr, nil
		}
		basePrompt = step.NextPrompt
		prompt = step.NextPrompt
	}
}

func correctivePrompt(base, reason string) string {
	return base + "\n\n---\nYour previous reply could not be used: " + reason +
		".\nRespond with exactly one JSON object that follows the required format."
}
