// Package openaichat implements llm.Model over the OpenAI chat-completions
// streaming API. Every supported vendor exposes an OpenAI-compatible
// endpoint, so vendor adapters only differ in client options and in how
// provider options are mapped onto a request.
package openaichat

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/domain/provider"
	"github.com/agent0/runner/internal/port/llm"
)

// Tuning maps vendor-specific provider options onto a request. It may set
// params fields directly and return extra per-request options.
type Tuning func(opts *agent.ProviderOptions, params *openai.ChatCompletionNewParams) []option.RequestOption

// Config describes one vendor's client.
type Config struct {
	Vendor  provider.Type
	Options []option.RequestOption
	Tuning  Tuning

	// LegacyMaxTokens sends max_tokens instead of max_completion_tokens for
	// endpoints that do not accept the newer field.
	LegacyMaxTokens bool
}

// Provider is an llm.Provider backed by an openai-go client.
type Provider struct {
	cfg    Config
	client openai.Client
}

// New creates a Provider. Retries are left to the SDK defaults unless the
// caller overrides them in cfg.Options.
func New(cfg Config) *Provider {
	return &Provider{cfg: cfg, client: openai.NewClient(cfg.Options...)}
}

// Type returns the vendor this provider serves.
func (p *Provider) Type() provider.Type { return p.cfg.Vendor }

// Model returns a handle for the named model.
func (p *Provider) Model(name string) (llm.Model, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: model name is required", domain.ErrValidation)
	}
	return &Model{p: p, name: name}, nil
}

// Model streams generation steps of one model.
type Model struct {
	p    *Provider
	name string
}

// Name returns the vendor model identifier.
func (m *Model) Name() string { return m.name }

// Stream runs one chat completion and translates its chunks into events.
func (m *Model) Stream(ctx context.Context, req llm.StepRequest, emit llm.Emit) (*llm.StepResult, error) {
	params, err := buildParams(m.name, req, m.p.cfg.LegacyMaxTokens)
	if err != nil {
		return nil, err
	}
	var opts []option.RequestOption
	if m.p.cfg.Tuning != nil && req.ProviderOptions != nil {
		opts = m.p.cfg.Tuning(req.ProviderOptions, &params)
	}

	stream := m.p.client.Chat.Completions.NewStreaming(ctx, params, opts...)
	defer stream.Close()

	st := newStepState(emit)
	for stream.Next() {
		if err := st.consume(stream.Current()); err != nil {
			return nil, err
		}
	}
	if err := stream.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrGeneration, m.p.cfg.Vendor, err)
	}
	return st.finish()
}

// Reasoning returns a Tuning that copies reasoningEffort and
// reasoningSummary from the options selected by pick. Chat completions has
// no summary field, so the summary travels as the reasoning.summary
// extension that compatible endpoints read.
func Reasoning(pick func(*agent.ProviderOptions) *agent.ReasoningOptions) Tuning {
	return func(opts *agent.ProviderOptions, params *openai.ChatCompletionNewParams) []option.RequestOption {
		r := pick(opts)
		if r == nil {
			return nil
		}
		if r.ReasoningEffort != "" {
			params.ReasoningEffort = shared.ReasoningEffort(r.ReasoningEffort)
		}
		if r.ReasoningSummary == "" {
			return nil
		}
		return []option.RequestOption{
			option.WithJSONSet("reasoning.summary", shared.ReasoningSummary(r.ReasoningSummary)),
		}
	}
}

// GoogleThinking returns a Tuning that forwards a Gemini thinking config
// through the OpenAI-compatible extra_body extension.
func GoogleThinking(pick func(*agent.ProviderOptions) *agent.GoogleOptions) Tuning {
	return func(opts *agent.ProviderOptions, _ *openai.ChatCompletionNewParams) []option.RequestOption {
		g := pick(opts)
		if g == nil || g.ThinkingConfig == nil {
			return nil
		}
		tc := map[string]any{}
		if g.ThinkingConfig.ThinkingBudget != nil {
			tc["thinking_budget"] = *g.ThinkingConfig.ThinkingBudget
		}
		if g.ThinkingConfig.ThinkingLevel != "" {
			tc["thinking_level"] = g.ThinkingConfig.ThinkingLevel
		}
		if g.ThinkingConfig.IncludeThoughts != nil {
			tc["include_thoughts"] = *g.ThinkingConfig.IncludeThoughts
		}
		return []option.RequestOption{option.WithJSONSet("extra_body.google.thinking_config", tc)}
	}
}
