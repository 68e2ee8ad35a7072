// Package evaluate defines the async dialogue evaluator hook. The
// engine queues stored turn pairs here fire-and-forget; scoring them
// is someone else's job.
package evaluate

import (
	"context"

	"go.uber.org/zap"
)

// Dialogue is one stored exchange handed to the evaluator.
type Dialogue struct {
	UserInput       string
	AIResponse      string
	SessionID       string
	ContextMemories []string // record ids that shaped the response
}

// Evaluator receives dialogues for background evaluation. QueueDialogue
// must never block and its failures must never reach the caller.
type Evaluator interface {
	QueueDialogue(d Dialogue)
}

// Noop discards every dialogue.
type Noop struct{}

func (Noop) QueueDialogue(Dialogue) {}

// Async hands dialogues to a worker goroutine over a bounded channel.
// A full queue drops the dialogue with a log line rather than block
// the conversational turn.
type Async struct {
	ch  chan Dialogue
	log *zap.Logger
}

// NewAsync starts a worker that calls fn for each queued dialogue.
// The worker stops when ctx is cancelled.
func NewAsync(ctx context.Context, buffer int, fn func(context.Context, Dialogue), log *zap.Logger) *Async {
	if buffer <= 0 {
		buffer = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	a := &Async{ch: make(chan Dialogue, buffer), log: log}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d := <-a.ch:
				fn(ctx, d)
			}
		}
	}()

	return a
}

func (a *Async) QueueDialogue(d Dialogue) {
	select {
	case a.ch <- d:
	default:
		a.log.Warn("evaluator queue full, dropping dialogue",
			zap.String("session_id", d.SessionID))
	}
}
