// Package google registers the Google Generative AI (Gemini) vendor.
package google

import (
	"encoding/json"

	"github.com/openai/openai-go/v2/option"

	"github.com/agent0/runner/internal/adapter/openaichat"
	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/domain/provider"
	"github.com/agent0/runner/internal/port/llm"
)

// DefaultBaseURL is Gemini's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// Settings is the decrypted credential shape of a google provider.
type Settings struct {
	APIKey  string            `json:"apiKey"`
	BaseURL string            `json:"baseURL,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

func init() {
	llm.Register(provider.TypeGoogle, New)
}

// New builds a Gemini provider from its settings.
func New(config json.RawMessage) (llm.Provider, error) {
	var s Settings
	if err := openaichat.DecodeSettings(provider.TypeGoogle, config, &s); err != nil {
		return nil, err
	}
	if err := openaichat.Required(provider.TypeGoogle, "apiKey", s.APIKey); err != nil {
		return nil, err
	}
	if err := openaichat.BaseURL(provider.TypeGoogle, s.BaseURL); err != nil {
		return nil, err
	}
	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	opts := []option.RequestOption{option.WithAPIKey(s.APIKey), option.WithBaseURL(baseURL)}
	opts = append(opts, openaichat.HeaderOptions(s.Headers)...)

	return openaichat.New(openaichat.Config{
		Vendor:          provider.TypeGoogle,
		Options:         opts,
		Tuning:          openaichat.GoogleThinking(func(o *agent.ProviderOptions) *agent.GoogleOptions { return o.Google }),
		LegacyMaxTokens: true,
	}), nil
}
