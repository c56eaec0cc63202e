package bedrock_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/agent0/runner/internal/adapter/bedrock"
	"github.com/agent0/runner/internal/domain"
)

func TestNewValidatesSettings(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr bool
	}{
		{"valid", `{"region":"us-west-2","apiKey":"br-key"}`, false},
		{"missing region", `{"apiKey":"br-key"}`, true},
		{"missing api key", `{"region":"us-west-2"}`, true},
		{"sigv4 only", `{"region":"us-west-2","accessKeyId":"AKIA","secretAccessKey":"s"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := bedrock.New(json.RawMessage(tt.config))
			if tt.wantErr {
				if !errors.Is(err, domain.ErrMalformedConfig) {
					t.Fatalf("expected ErrMalformedConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if p.Type() != "bedrock" {
				t.Fatalf("type = %s", p.Type())
			}
		})
	}
}

func TestEndpoint(t *testing.T) {
	s := bedrock.Settings{Region: "eu-central-1"}
	if got := s.Endpoint(); got != "https://bedrock-runtime.eu-central-1.amazonaws.com/openai/v1" {
		t.Fatalf("endpoint = %s", got)
	}
}
