package openaichat

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/openai/openai-go/v2/option"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/provider"
)

// DecodeSettings unmarshals decrypted vendor settings into dst. Shape
// mismatches are reported as domain.ErrMalformedConfig.
func DecodeSettings(vendor provider.Type, config json.RawMessage, dst any) error {
	if len(config) == 0 {
		return fmt.Errorf("%w: %s: settings are empty", domain.ErrMalformedConfig, vendor)
	}
	if err := json.Unmarshal(config, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrMalformedConfig, vendor, err)
	}
	return nil
}

// Required returns a malformed-config error when value is empty.
func Required(vendor provider.Type, field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s: %s is required", domain.ErrMalformedConfig, vendor, field)
	}
	return nil
}

// BaseURL validates an optional endpoint override.
func BaseURL(vendor provider.Type, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s: baseURL must be an absolute http(s) URL", domain.ErrMalformedConfig, vendor)
	}
	return nil
}

// HeaderOptions turns static headers into request options.
func HeaderOptions(headers map[string]string) []option.RequestOption {
	opts := make([]option.RequestOption, 0, len(headers))
	for k, v := range headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	return opts
}
