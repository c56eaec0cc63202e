package mcp

import (
	"errors"
	"strings"
	"testing"

	"github.com/agent0/runner/internal/domain"
)

func TestServerDef_Validate(t *testing.T) {
	tests := []struct {
		name    string
		def     ServerDef
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid sse server",
			def: ServerDef{
				Name:      "remote-server",
				Transport: Transport{Type: TransportSSE, URL: "http://localhost:8080/sse"},
			},
			wantErr: false,
		},
		{
			name: "valid http server with headers",
			def: ServerDef{
				Name: "streaming-server",
				Transport: Transport{
					Type:    TransportHTTP,
					URL:     "https://tools.example.com/mcp",
					Headers: map[string]string{"Authorization": "Bearer x"},
				},
			},
			wantErr: false,
		},
		{
			name: "missing name",
			def: ServerDef{
				Transport: Transport{Type: TransportSSE, URL: "http://localhost/sse"},
			},
			wantErr: true,
			errMsg:  "name is required",
		},
		{
			name: "empty transport",
			def: ServerDef{
				Name: "test-server",
			},
			wantErr: true,
			errMsg:  "transport is required",
		},
		{
			name: "stdio is not supported",
			def: ServerDef{
				Name:      "test-server",
				Transport: Transport{Type: "stdio"},
			},
			wantErr: true,
			errMsg:  "invalid transport",
		},
		{
			name: "http without url",
			def: ServerDef{
				Name:      "test-server",
				Transport: Transport{Type: TransportHTTP},
			},
			wantErr: true,
			errMsg:  "url is required for http transport",
		},
		{
			name: "relative url",
			def: ServerDef{
				Name:      "test-server",
				Transport: Transport{Type: TransportSSE, URL: "/sse"},
			},
			wantErr: true,
			errMsg:  "absolute http(s) URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, domain.ErrValidation) {
					t.Errorf("expected ErrValidation, got: %v", err)
				}
				if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("expected error to contain %q, got: %v", tt.errMsg, err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
