// Package bedrock registers the Amazon Bedrock vendor through the Bedrock
// runtime's OpenAI-compatible endpoint, authenticated with a Bedrock API key.
package bedrock

import (
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v2/option"

	"github.com/agent0/runner/internal/adapter/openaichat"
	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/provider"
	"github.com/agent0/runner/internal/port/llm"
)

// Settings is the decrypted credential shape of a bedrock provider.
type Settings struct {
	Region  string            `json:"region"`
	APIKey  string            `json:"apiKey"`
	BaseURL string            `json:"baseURL,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	// SigV4 credentials are recognized only to report them as unsupported.
	AccessKeyID     string `json:"accessKeyId,omitempty"`
	SecretAccessKey string `json:"secretAccessKey,omitempty"`
}

// Endpoint returns the runtime endpoint for the configured region.
func (s Settings) Endpoint() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com/openai/v1", s.Region)
}

func init() {
	llm.Register(provider.TypeBedrock, New)
}

// New builds a Bedrock provider from its settings.
func New(config json.RawMessage) (llm.Provider, error) {
	var s Settings
	if err := openaichat.DecodeSettings(provider.TypeBedrock, config, &s); err != nil {
		return nil, err
	}
	if s.APIKey == "" && s.AccessKeyID != "" {
		return nil, fmt.Errorf("%w: %s: access key credentials are not supported, use a Bedrock API key", domain.ErrMalformedConfig, provider.TypeBedrock)
	}
	if err := openaichat.Required(provider.TypeBedrock, "region", s.Region); err != nil {
		return nil, err
	}
	if err := openaichat.Required(provider.TypeBedrock, "apiKey", s.APIKey); err != nil {
		return nil, err
	}
	if err := openaichat.BaseURL(provider.TypeBedrock, s.BaseURL); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{option.WithAPIKey(s.APIKey), option.WithBaseURL(s.Endpoint())}
	opts = append(opts, openaichat.HeaderOptions(s.Headers)...)

	return openaichat.New(openaichat.Config{
		Vendor:          provider.TypeBedrock,
		Options:         opts,
		LegacyMaxTokens: true,
	}), nil
}
