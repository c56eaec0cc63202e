// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/domain/mcp"
	"github.com/agent0/runner/internal/domain/provider"
	"github.com/agent0/runner/internal/domain/run"
	"github.com/agent0/runner/internal/domain/workspace"
)

// Store is the port interface for database operations. Lookups of missing
// rows return an error wrapping domain.ErrNotFound.
type Store interface {
	// Providers
	GetProvider(ctx context.Context, id string) (*provider.Provider, error)

	// Agents and versions
	GetAgent(ctx context.Context, id string) (*agent.Agent, error)
	GetVersion(ctx context.Context, id string) (*agent.Version, error)
	UpdateDeployment(ctx context.Context, agentID string, env agent.Environment, versionID string) error

	// MCP servers
	GetMCPServer(ctx context.Context, id string) (*mcp.ServerDef, error)

	// Workspace membership and API keys
	GetMember(ctx context.Context, workspaceID, userID string) (*workspace.Member, error)
	AddMember(ctx context.Context, m workspace.Member) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*workspace.APIKey, error)

	// Runs (insert-only)
	CreateRun(ctx context.Context, r *run.Run) error
	GetRun(ctx context.Context, id string) (*run.Run, error)
}
