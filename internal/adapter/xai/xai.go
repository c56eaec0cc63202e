// Package xai registers the xAI (Grok) vendor.
package xai

import (
	"encoding/json"

	"github.com/openai/openai-go/v2/option"

	"github.com/agent0/runner/internal/adapter/openaichat"
	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/domain/provider"
	"github.com/agent0/runner/internal/port/llm"
)

// DefaultBaseURL is the xAI OpenAI-compatible API.
const DefaultBaseURL = "https://api.x.ai/v1"

// Settings is the decrypted credential shape of an xai provider.
type Settings struct {
	APIKey  string            `json:"apiKey"`
	BaseURL string            `json:"baseURL,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

func init() {
	llm.Register(provider.TypeXAI, New)
}

// New builds an xAI provider from its settings.
func New(config json.RawMessage) (llm.Provider, error) {
	var s Settings
	if err := openaichat.DecodeSettings(provider.TypeXAI, config, &s); err != nil {
		return nil, err
	}
	if err := openaichat.Required(provider.TypeXAI, "apiKey", s.APIKey); err != nil {
		return nil, err
	}
	if err := openaichat.BaseURL(provider.TypeXAI, s.BaseURL); err != nil {
		return nil, err
	}
	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	opts := []option.RequestOption{option.WithAPIKey(s.APIKey), option.WithBaseURL(baseURL)}
	opts = append(opts, openaichat.HeaderOptions(s.Headers)...)

	return openaichat.New(openaichat.Config{
		Vendor:  provider.TypeXAI,
		Options: opts,
		Tuning:  openaichat.Reasoning(func(o *agent.ProviderOptions) *agent.ReasoningOptions { return o.XAI }),
	}), nil
}
