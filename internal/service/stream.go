package service

import (
	"context"
	"sync"

	"github.com/agent0/runner/internal/domain/event"
	"github.com/agent0/runner/internal/domain/message"
	"github.com/agent0/runner/internal/domain/run"
	"github.com/agent0/runner/internal/domain/transcript"
)

// Outcome is the concluded state of a run after it was recorded.
type Outcome struct {
	RunID  string
	Result transcript.Result
	// Err is the run failure, nil on success.
	Err error
}

// Response builds the non-streaming response body.
func (o *Outcome) Response() *run.Result {
	msgs := o.Result.Messages
	if msgs == nil {
		msgs = []message.Message{}
	}
	return &run.Result{Messages: msgs, Text: o.Result.Text()}
}

// RunStream is the open event sequence of a running generation. Events are
// delivered in generation order through an unbuffered channel; the channel
// is closed when generation concludes.
type RunStream struct {
	runID   string
	events  chan event.Event
	done    chan struct{}
	cancel  context.CancelFunc
	once    sync.Once
	outcome Outcome
}

func newRunStream(runID string, cancel context.CancelFunc) *RunStream {
	return &RunStream{
		runID:  runID,
		events: make(chan event.Event),
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// RunID returns the id the run will be recorded under.
func (s *RunStream) RunID() string { return s.runID }

// Events returns the event channel.
func (s *RunStream) Events() <-chan event.Event { return s.events }

// Cancel stops the generation, typically because the caller went away.
// The run is still recorded with whatever was produced.
func (s *RunStream) Cancel() { s.once.Do(s.cancel) }

// Wait blocks until the run has concluded and been recorded.
func (s *RunStream) Wait() *Outcome {
	<-s.done
	return &s.outcome
}

// Done is closed after the run has been recorded.
func (s *RunStream) Done() <-chan struct{} { return s.done }
