package agent

import (
	"fmt"
	"time"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/message"
)

// DefaultMaxStepCount applies when a version sets no step limit.
const DefaultMaxStepCount = 1

// OutputFormat constrains the model's response format.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// Version is an immutable snapshot of an agent's configuration. Editing an
// agent inserts a new Version.
type Version struct {
	ID        string      `json:"id"`
	AgentID   string      `json:"agent_id"`
	CreatedAt time.Time   `json:"created_at"`
	Data      VersionData `json:"data"`
}

// ModelRef selects a model on a workspace provider.
type ModelRef struct {
	ProviderID string `json:"provider_id"`
	Name       string `json:"name"`
}

// ToolRef binds one tool exposed by an MCP server.
type ToolRef struct {
	MCPID string `json:"mcp_id"`
	Name  string `json:"name"`
}

// VersionData is the stored generation configuration.
type VersionData struct {
	Model           ModelRef          `json:"model"`
	Messages        []message.Message `json:"messages"`
	MaxOutputTokens *int              `json:"maxOutputTokens,omitempty"`
	OutputFormat    OutputFormat      `json:"outputFormat,omitempty"`
	Temperature     *float64          `json:"temperature,omitempty"`
	MaxStepCount    *int              `json:"maxStepCount,omitempty"`
	Tools           []ToolRef         `json:"tools,omitempty"`
	ProviderOptions *ProviderOptions  `json:"providerOptions,omitempty"`
}

// StepCount returns the step limit, defaulting to DefaultMaxStepCount.
func (d VersionData) StepCount() int {
	if d.MaxStepCount == nil || *d.MaxStepCount < 1 {
		return DefaultMaxStepCount
	}
	return *d.MaxStepCount
}

// Validate checks the fields a run needs.
func (d VersionData) Validate() error {
	if d.Model.ProviderID == "" {
		return fmt.Errorf("%w: model.provider_id is required", domain.ErrValidation)
	}
	if d.Model.Name == "" {
		return fmt.Errorf("%w: model.name is required", domain.ErrValidation)
	}
	switch d.OutputFormat {
	case "", OutputText, OutputJSON:
	default:
		return fmt.Errorf("%w: unknown outputFormat %q", domain.ErrValidation, d.OutputFormat)
	}
	if d.MaxOutputTokens != nil && *d.MaxOutputTokens < 1 {
		return fmt.Errorf("%w: maxOutputTokens must be positive", domain.ErrValidation)
	}
	if d.MaxStepCount != nil && *d.MaxStepCount < 1 {
		return fmt.Errorf("%w: maxStepCount must be at least 1", domain.ErrValidation)
	}
	if d.Temperature != nil && (*d.Temperature < 0 || *d.Temperature > 2) {
		return fmt.Errorf("%w: temperature must be within [0, 2]", domain.ErrValidation)
	}
	if o := d.ProviderOptions; o != nil {
		if err := o.OpenAI.validate("openai"); err != nil {
			return err
		}
		if err := o.XAI.validate("xai"); err != nil {
			return err
		}
	}
	for i, t := range d.Tools {
		if t.MCPID == "" || t.Name == "" {
			return fmt.Errorf("%w: tools[%d] needs mcp_id and name", domain.ErrValidation, i)
		}
	}
	return message.ValidateAll(d.Messages)
}

// ReasoningOptions configures OpenAI-style reasoning.
type ReasoningOptions struct {
	ReasoningEffort string `json:"reasoningEffort,omitempty"`
	// ReasoningSummary is auto, concise or detailed.
	ReasoningSummary string `json:"reasoningSummary,omitempty"`
}

func (r *ReasoningOptions) validate(field string) error {
	if r == nil {
		return nil
	}
	switch r.ReasoningSummary {
	case "", "auto", "concise", "detailed":
		return nil
	}
	return fmt.Errorf("%w: providerOptions.%s.reasoningSummary %q is not auto, concise or detailed",
		domain.ErrValidation, field, r.ReasoningSummary)
}

// ThinkingConfig configures Gemini thinking.
type ThinkingConfig struct {
	ThinkingBudget  *int   `json:"thinkingBudget,omitempty"`
	ThinkingLevel   string `json:"thinkingLevel,omitempty"` // minimal, low, medium or high
	IncludeThoughts *bool  `json:"includeThoughts,omitempty"`
}

// GoogleOptions carries Gemini options for the google and google-vertex vendors.
type GoogleOptions struct {
	ThinkingConfig *ThinkingConfig `json:"thinkingConfig,omitempty"`
}

// ProviderOptions holds vendor-specific reasoning settings.
type ProviderOptions struct {
	OpenAI *ReasoningOptions `json:"openai,omitempty"`
	XAI    *ReasoningOptions `json:"xai,omitempty"`
	Google *GoogleOptions    `json:"google,omitempty"`
	Vertex *GoogleOptions    `json:"vertex,omitempty"`
}
