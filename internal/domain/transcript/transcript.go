// Package transcript rebuilds structured messages from a run's event stream.
//
// The same Reconstructor runs on both sides of the wire: the server feeds it
// every emitted event to build the persisted steps, and clients feed it the
// decoded frames to obtain display-ready messages.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/event"
	"github.com/agent0/runner/internal/domain/message"
)

// Flags marks recoverable anomalies found during reconstruction.
type Flags struct {
	IncompleteToolCall bool `json:"incompleteToolCall,omitempty"`
	IncompleteStream   bool `json:"incompleteStream,omitempty"`
	MalformedStream    bool `json:"malformedStream,omitempty"`
}

// Err converts the flags into the matching sentinel errors.
func (f Flags) Err() error {
	var errs []error
	if f.IncompleteToolCall {
		errs = append(errs, domain.ErrIncompleteToolCall)
	}
	if f.IncompleteStream {
		errs = append(errs, domain.ErrIncompleteStream)
	}
	if f.MalformedStream {
		errs = append(errs, domain.ErrMalformedStream)
	}
	return errors.Join(errs...)
}

// Step is one assistant turn and the tool messages it produced.
type Step struct {
	Messages     []message.Message `json:"messages"`
	FinishReason string            `json:"finishReason,omitempty"`
	Usage        *event.Usage      `json:"usage,omitempty"`
	Warnings     []string          `json:"warnings,omitempty"`
}

// Result is the reconstructed transcript.
type Result struct {
	Messages     []message.Message    `json:"messages"`
	Flags        Flags                `json:"flags"`
	Errors       []event.ErrorPayload `json:"errors,omitempty"`
	FinishReason string               `json:"finishReason,omitempty"`
	Usage        *event.Usage         `json:"usage,omitempty"`
}

// Text returns the text of the last assistant message.
func (r Result) Text() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == message.RoleAssistant {
			return r.Messages[i].PlainText()
		}
	}
	return ""
}

type stepState struct {
	start        int
	finishReason string
	usage        *event.Usage
	warnings     []string
}

// Reconstructor is a state machine over events. It is not safe for
// concurrent use; each run owns its own instance.
type Reconstructor struct {
	messages  []message.Message
	steps     []stepState
	current   int
	closed    bool
	finished  bool
	errors    []event.ErrorPayload
	finish    string
	usage     *event.Usage
	toolCalls map[string]bool
	results   map[string]bool
	malformed bool
}

// New returns an empty Reconstructor.
func New() *Reconstructor {
	return &Reconstructor{
		current:   -1,
		toolCalls: make(map[string]bool),
		results:   make(map[string]bool),
	}
}

// Feed applies one event. A returned error wraps domain.ErrMalformedStream
// and sets Flags.MalformedStream; the state stays usable and later events
// are still applied.
func (r *Reconstructor) Feed(ev event.Event) error {
	if err := r.apply(ev); err != nil {
		r.malformed = true
		return err
	}
	return nil
}

func (r *Reconstructor) apply(ev event.Event) error {
	if r.closed {
		return fmt.Errorf("%w: %s after end of stream", domain.ErrMalformedStream, ev.Type)
	}

	switch ev.Type {
	case event.Start, event.TextEnd, event.ReasoningEnd:
		// no state

	case event.StartStep:
		r.openStep(ev.Warnings)

	case event.TextStart:
		r.append(&message.TextPart{})

	case event.TextDelta:
		part, ok := r.lastPart().(*message.TextPart)
		if !ok {
			return fmt.Errorf("%w: text-delta without open text part", domain.ErrMalformedStream)
		}
		part.Text += ev.Text

	case event.ReasoningStart:
		r.append(&message.ReasoningPart{})

	case event.ReasoningDelta:
		part, ok := r.lastPart().(*message.ReasoningPart)
		if !ok {
			return fmt.Errorf("%w: reasoning-delta without open reasoning part", domain.ErrMalformedStream)
		}
		part.Text += ev.Text

	case event.ToolCall:
		if ev.ToolCallID == "" {
			return fmt.Errorf("%w: tool-call without toolCallId", domain.ErrMalformedStream)
		}
		input := ev.Input
		if len(input) == 0 {
			input = json.RawMessage(`{}`)
		}
		r.append(&message.ToolCallPart{
			ToolCallID:      ev.ToolCallID,
			ToolName:        ev.ToolName,
			Input:           input,
			ProviderOptions: ev.ProviderMetadata,
		})
		r.toolCalls[ev.ToolCallID] = true

	case event.ToolResult:
		r.pushTool(ev, message.ToolOutput{Type: message.OutputJSON, Value: orNull(ev.Output)}, false)

	case event.ToolError:
		value, err := json.Marshal(ev.Error)
		if err != nil {
			value = json.RawMessage(`null`)
		}
		r.pushTool(ev, message.ToolOutput{Type: message.OutputErrorJSON, Value: value}, true)

	case event.FinishStep:
		if len(r.steps) > 0 {
			s := &r.steps[len(r.steps)-1]
			s.finishReason = ev.FinishReason
			s.usage = ev.Usage
		}

	case event.Finish:
		r.closed = true
		r.finished = true
		r.finish = ev.FinishReason
		r.usage = ev.TotalUsage

	case event.Error:
		if ev.Error != nil {
			r.errors = append(r.errors, *ev.Error)
		} else {
			r.errors = append(r.errors, event.ErrorPayload{Name: "UnknownError"})
		}

	case event.Abort:
		r.closed = true

	default:
		return fmt.Errorf("%w: unknown event type %q", domain.ErrMalformedStream, ev.Type)
	}
	return nil
}

// Result returns the messages built so far. Empty assistant messages are
// dropped; it may be called at any time and always returns the partial list.
func (r *Reconstructor) Result() Result {
	return Result{
		Messages:     message.Compact(r.messages),
		Flags:        r.flags(),
		Errors:       append([]event.ErrorPayload(nil), r.errors...),
		FinishReason: r.finish,
		Usage:        r.usage,
	}
}

// Steps groups the messages by the step that produced them.
func (r *Reconstructor) Steps() []Step {
	out := make([]Step, 0, len(r.steps))
	for i, s := range r.steps {
		end := len(r.messages)
		if i+1 < len(r.steps) {
			end = r.steps[i+1].start
		}
		out = append(out, Step{
			Messages:     message.Compact(r.messages[s.start:end]),
			FinishReason: s.finishReason,
			Usage:        s.usage,
			Warnings:     s.warnings,
		})
	}
	return out
}

// Finished reports whether a finish event was applied.
func (r *Reconstructor) Finished() bool { return r.finished }

func (r *Reconstructor) flags() Flags {
	var f Flags
	for id := range r.toolCalls {
		if !r.results[id] {
			f.IncompleteToolCall = true
			break
		}
	}
	f.IncompleteStream = !r.finished
	f.MalformedStream = r.malformed
	return f
}

func (r *Reconstructor) openStep(warnings []string) {
	r.messages = append(r.messages, message.Message{Role: message.RoleAssistant})
	r.current = len(r.messages) - 1
	r.steps = append(r.steps, stepState{start: r.current, warnings: warnings})
}

// assistant returns the current assistant message, opening an implicit
// step when content arrives before any start-step.
func (r *Reconstructor) assistant() *message.Message {
	if r.current < 0 {
		r.openStep(nil)
	}
	return &r.messages[r.current]
}

func (r *Reconstructor) append(p message.Part) {
	m := r.assistant()
	m.Content = append(m.Content, p)
}

// lastPart returns the newest part of the current assistant message, or nil
// when no step is open.
func (r *Reconstructor) lastPart() message.Part {
	if r.current < 0 {
		return nil
	}
	m := &r.messages[r.current]
	if len(m.Content) == 0 {
		return nil
	}
	return m.Content[len(m.Content)-1]
}

func (r *Reconstructor) pushTool(ev event.Event, out message.ToolOutput, isError bool) {
	if len(r.steps) == 0 {
		r.openStep(nil)
	}
	r.messages = append(r.messages, message.Tool(&message.ToolResultPart{
		ToolCallID:      ev.ToolCallID,
		ToolName:        ev.ToolName,
		Output:          out,
		IsError:         isError,
		ProviderOptions: ev.ProviderMetadata,
	}))
	r.results[ev.ToolCallID] = true
}

// Reconstruct feeds every event to a fresh Reconstructor. Feed errors are
// joined; the result is returned regardless.
func Reconstruct(events []event.Event) (Result, []Step, error) {
	r := New()
	var errs []error
	for _, ev := range events {
		if err := r.Feed(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return r.Result(), r.Steps(), errors.Join(errs...)
}

func orNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`null`)
	}
	return raw
}
