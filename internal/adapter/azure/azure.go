// Package azure registers the Azure OpenAI vendor. Model names are Azure
// deployment names.
package azure

import (
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v2/azure"
	"github.com/openai/openai-go/v2/option"

	"github.com/agent0/runner/internal/adapter/openaichat"
	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/domain/provider"
	"github.com/agent0/runner/internal/port/llm"
)

// DefaultAPIVersion is used when the settings do not pin one.
const DefaultAPIVersion = "2025-03-01-preview"

// Settings is the decrypted credential shape of an azure provider. Either
// ResourceName or BaseURL locates the resource.
type Settings struct {
	APIKey       string            `json:"apiKey"`
	ResourceName string            `json:"resourceName,omitempty"`
	BaseURL      string            `json:"baseURL,omitempty"`
	APIVersion   string            `json:"apiVersion,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// Endpoint returns the resource endpoint.
func (s Settings) Endpoint() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return fmt.Sprintf("https://%s.openai.azure.com", s.ResourceName)
}

func init() {
	llm.Register(provider.TypeAzure, New)
}

// New builds an Azure OpenAI provider from its settings.
func New(config json.RawMessage) (llm.Provider, error) {
	var s Settings
	if err := openaichat.DecodeSettings(provider.TypeAzure, config, &s); err != nil {
		return nil, err
	}
	if err := openaichat.Required(provider.TypeAzure, "apiKey", s.APIKey); err != nil {
		return nil, err
	}
	if s.ResourceName == "" && s.BaseURL == "" {
		return nil, fmt.Errorf("%w: %s: resourceName or baseURL is required", domain.ErrMalformedConfig, provider.TypeAzure)
	}
	if err := openaichat.BaseURL(provider.TypeAzure, s.BaseURL); err != nil {
		return nil, err
	}
	version := s.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}

	opts := []option.RequestOption{
		azure.WithEndpoint(s.Endpoint(), version),
		azure.WithAPIKey(s.APIKey),
	}
	opts = append(opts, openaichat.HeaderOptions(s.Headers)...)

	return openaichat.New(openaichat.Config{
		Vendor:  provider.TypeAzure,
		Options: opts,
		Tuning:  openaichat.Reasoning(func(o *agent.ProviderOptions) *agent.ReasoningOptions { return o.OpenAI }),
	}), nil
}
