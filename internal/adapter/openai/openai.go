// Package openai registers the OpenAI vendor.
package openai

import (
	"encoding/json"

	"github.com/openai/openai-go/v2/option"

	"github.com/agent0/runner/internal/adapter/openaichat"
	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/domain/provider"
	"github.com/agent0/runner/internal/port/llm"
)

// Settings is the decrypted credential shape of an openai provider.
type Settings struct {
	APIKey       string            `json:"apiKey"`
	BaseURL      string            `json:"baseURL,omitempty"`
	Organization string            `json:"organization,omitempty"`
	Project      string            `json:"project,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
}

func init() {
	llm.Register(provider.TypeOpenAI, New)
}

// New builds an OpenAI provider from its settings.
func New(config json.RawMessage) (llm.Provider, error) {
	var s Settings
	if err := openaichat.DecodeSettings(provider.TypeOpenAI, config, &s); err != nil {
		return nil, err
	}
	if err := openaichat.Required(provider.TypeOpenAI, "apiKey", s.APIKey); err != nil {
		return nil, err
	}
	if err := openaichat.BaseURL(provider.TypeOpenAI, s.BaseURL); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{option.WithAPIKey(s.APIKey)}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	if s.Organization != "" {
		opts = append(opts, option.WithOrganization(s.Organization))
	}
	if s.Project != "" {
		opts = append(opts, option.WithProject(s.Project))
	}
	opts = append(opts, openaichat.HeaderOptions(s.Headers)...)

	return openaichat.New(openaichat.Config{
		Vendor:  provider.TypeOpenAI,
		Options: opts,
		Tuning:  openaichat.Reasoning(func(o *agent.ProviderOptions) *agent.ReasoningOptions { return o.OpenAI }),
	}), nil
}
