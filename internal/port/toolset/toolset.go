// Package toolset defines the port for resolving and invoking agent tools.
package toolset

import (
	"context"
	"encoding/json"

	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/port/llm"
)

// Set is the bound tool set of one run.
type Set interface {
	// Specs describes the tools offered to the model.
	Specs() []llm.ToolSpec

	// Call invokes a tool by name and returns its JSON result.
	Call(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error)

	// Close releases the connections held by the set.
	Close() error
}

// Resolver binds tool references to a callable Set.
type Resolver interface {
	Resolve(ctx context.Context, workspaceID string, refs []agent.ToolRef) (Set, error)
}

// Empty is a Set without tools.
type Empty struct{}

func (Empty) Specs() []llm.ToolSpec { return nil }

func (Empty) Call(context.Context, string, json.RawMessage) (json.RawMessage, error) {
	return nil, ErrUnknownTool
}

func (Empty) Close() error { return nil }
