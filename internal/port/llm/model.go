// Package llm defines the generation backend port and the vendor registry.
package llm

import (
	"context"
	"encoding/json"

	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/domain/event"
	"github.com/agent0/runner/internal/domain/message"
	"github.com/agent0/runner/internal/domain/provider"
)

// ToolSpec describes a tool the model may call.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// StepRequest is the input of one generation step.
type StepRequest struct {
	Messages        []message.Message
	MaxOutputTokens *int
	Temperature     *float64
	OutputFormat    agent.OutputFormat
	ProviderOptions *agent.ProviderOptions
	Tools           []ToolSpec
}

// StepResult is what one step produced.
type StepResult struct {
	// Content holds the assistant parts in emission order.
	Content      message.Content
	FinishReason string
	Usage        event.Usage
}

// ToolCalls returns the tool-call parts of the step.
func (r *StepResult) ToolCalls() []*message.ToolCallPart {
	var out []*message.ToolCallPart
	for _, p := range r.Content {
		if c, ok := p.(*message.ToolCallPart); ok {
			out = append(out, c)
		}
	}
	return out
}

// Emit receives in-step events (text-*, reasoning-*, tool-call) in
// generation order. A non-nil error aborts the step.
type Emit func(event.Event) error

// Model is a handle to one model of a vendor.
type Model interface {
	// Name returns the vendor model identifier.
	Name() string

	// Stream runs one generation step, emitting events as they arrive.
	// Vendor failures are wrapped in domain.ErrGeneration.
	Stream(ctx context.Context, req StepRequest, emit Emit) (*StepResult, error)
}

// Provider is a configured vendor client.
type Provider interface {
	// Type returns the vendor type this provider serves.
	Type() provider.Type

	// Model returns a handle for the named model.
	Model(name string) (Model, error)
}
