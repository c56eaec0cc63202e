// Package mcp defines Model Context Protocol server definitions and the
// tools they expose to agents.
package mcp

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/agent0/runner/internal/domain"
)

// TransportType identifies how the runner reaches an MCP server.
type TransportType string

const (
	TransportSSE  TransportType = "sse"
	TransportHTTP TransportType = "http"
)

// validTransports is the set of recognized transport types.
var validTransports = map[TransportType]bool{
	TransportSSE:  true,
	TransportHTTP: true,
}

// Transport is the connection configuration of a remote MCP server.
type Transport struct {
	Type    TransportType     `json:"type"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ServerDef describes an MCP server registered in a workspace.
type ServerDef struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name"`
	Transport   Transport `json:"transport"`
}

// ServerTool describes a tool exposed by an MCP server.
type ServerTool struct {
	ServerID    string          `json:"server_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// Validate checks that the ServerDef has all required fields and a usable
// transport. Returns a domain.ErrValidation-wrapped error on failure.
func (s *ServerDef) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}

	if s.Transport.Type == "" {
		return fmt.Errorf("%w: transport is required", domain.ErrValidation)
	}

	if !validTransports[s.Transport.Type] {
		return fmt.Errorf("%w: invalid transport %q (must be \"sse\" or \"http\")", domain.ErrValidation, s.Transport.Type)
	}

	if s.Transport.URL == "" {
		return fmt.Errorf("%w: url is required for %s transport", domain.ErrValidation, s.Transport.Type)
	}
	u, err := url.Parse(s.Transport.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) URL", domain.ErrValidation)
	}

	return nil
}
