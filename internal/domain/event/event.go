// Package event defines the streaming event protocol emitted during a run.
//
// Events are transient: they are produced in strict generation order,
// forwarded to the caller, fed to a transcript reconstructor and then
// discarded. The JSON field names follow the AI SDK stream-part shape so
// that existing consumers can decode frames without translation.
package event

import "encoding/json"

// Type discriminates events.
type Type string

const (
	Start          Type = "start"
	StartStep      Type = "start-step"
	TextStart      Type = "text-start"
	TextDelta      Type = "text-delta"
	TextEnd        Type = "text-end"
	ReasoningStart Type = "reasoning-start"
	ReasoningDelta Type = "reasoning-delta"
	ReasoningEnd   Type = "reasoning-end"
	ToolCall       Type = "tool-call"
	ToolResult     Type = "tool-result"
	ToolError      Type = "tool-error"
	FinishStep     Type = "finish-step"
	Finish         Type = "finish"
	Error          Type = "error"
	Abort          Type = "abort"
)

// Terminal reports whether the type ends an event sequence.
func (t Type) Terminal() bool {
	return t == Finish || t == Error || t == Abort
}

// Content reports whether the type carries model output. The first
// content event marks time-to-first-token.
func (t Type) Content() bool {
	return t == TextDelta || t == ReasoningDelta || t == ToolCall
}

// Usage is token accounting for a step or a whole run.
type Usage struct {
	InputTokens     int64 `json:"inputTokens"`
	OutputTokens    int64 `json:"outputTokens"`
	TotalTokens     int64 `json:"totalTokens"`
	ReasoningTokens int64 `json:"reasoningTokens,omitempty"`
}

// Add returns the sum of two usages.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:     u.InputTokens + o.InputTokens,
		OutputTokens:    u.OutputTokens + o.OutputTokens,
		TotalTokens:     u.TotalTokens + o.TotalTokens,
		ReasoningTokens: u.ReasoningTokens + o.ReasoningTokens,
	}
}

// ErrorPayload describes a failure carried by error and tool-error events.
type ErrorPayload struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Event is one unit of the streaming protocol. Only the fields relevant to
// Type are populated.
type Event struct {
	Type Type `json:"type"`

	// text-*, reasoning-*
	ID   string `json:"id,omitempty"`
	Text string `json:"text,omitempty"`

	// tool-call, tool-result, tool-error
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`

	// start-step
	Warnings []string `json:"warnings,omitempty"`

	// finish-step, finish
	FinishReason string `json:"finishReason,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
	TotalUsage   *Usage `json:"totalUsage,omitempty"`

	// error, tool-error
	Error *ErrorPayload `json:"error,omitempty"`

	ProviderMetadata map[string]any `json:"providerMetadata,omitempty"`
}

// MarshalJSON encodes the event. start-step always carries a warnings array.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	if e.Type != StartStep {
		return json.Marshal(plain(e))
	}
	warnings := e.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return json.Marshal(struct {
		plain
		Warnings []string `json:"warnings"`
	}{plain(e), warnings})
}

func NewStart() Event { return Event{Type: Start} }

// NewStartStep opens a step. Warnings is always encoded as an array.
func NewStartStep(warnings []string) Event {
	if warnings == nil {
		warnings = []string{}
	}
	return Event{Type: StartStep, Warnings: warnings}
}

func NewTextStart(id string) Event { return Event{Type: TextStart, ID: id} }

func NewTextDelta(id, text string) Event { return Event{Type: TextDelta, ID: id, Text: text} }

func NewTextEnd(id string) Event { return Event{Type: TextEnd, ID: id} }

func NewReasoningStart(id string) Event { return Event{Type: ReasoningStart, ID: id} }

func NewReasoningDelta(id, text string) Event {
	return Event{Type: ReasoningDelta, ID: id, Text: text}
}

func NewReasoningEnd(id string) Event { return Event{Type: ReasoningEnd, ID: id} }

// NewToolCall reports a complete tool invocation. An empty input becomes {}.
func NewToolCall(id, name string, input json.RawMessage) Event {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	return Event{Type: ToolCall, ToolCallID: id, ToolName: name, Input: input}
}

func NewToolResult(id, name string, input, output json.RawMessage) Event {
	if len(output) == 0 {
		output = json.RawMessage(`null`)
	}
	return Event{Type: ToolResult, ToolCallID: id, ToolName: name, Input: input, Output: output}
}

func NewToolError(id, name string, input json.RawMessage, err error) Event {
	return Event{Type: ToolError, ToolCallID: id, ToolName: name, Input: input, Error: payload("ToolExecutionError", err)}
}

func NewFinishStep(reason string, usage Usage) Event {
	return Event{Type: FinishStep, FinishReason: reason, Usage: &usage}
}

func NewFinish(reason string, total Usage) Event {
	return Event{Type: Finish, FinishReason: reason, TotalUsage: &total}
}

// NewError reports a failure with the given taxonomy name.
func NewError(name string, err error) Event {
	return Event{Type: Error, Error: payload(name, err)}
}

func NewAbort() Event { return Event{Type: Abort} }

func payload(name string, err error) *ErrorPayload {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &ErrorPayload{Name: name, Message: msg}
}
