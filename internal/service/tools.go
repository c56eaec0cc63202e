package service

import (
	"context"
	"fmt"

	"github.com/agent0/runner/internal/domain/mcp"
	"github.com/agent0/runner/internal/port/database"
)

// ToolCatalog re-lists the tools of an MCP server.
type ToolCatalog interface {
	Refresh(ctx context.Context, workspaceID, serverID string) ([]mcp.ServerTool, error)
}

// ToolService exposes MCP catalog maintenance to workspace members.
type ToolService struct {
	store   database.Store
	catalog ToolCatalog
}

// NewToolService creates a ToolService.
func NewToolService(store database.Store, catalog ToolCatalog) *ToolService {
	return &ToolService{store: store, catalog: catalog}
}

// Refresh drops the cached tool list of a server and fetches it again, so
// that tools added on the server become bindable without waiting for the
// cache to expire.
func (s *ToolService) Refresh(ctx context.Context, userID, serverID string) ([]mcp.ServerTool, error) {
	def, err := s.store.GetMCPServer(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("get mcp server: %w", err)
	}
	if _, err := requireMember(ctx, s.store, def.WorkspaceID, userID); err != nil {
		return nil, err
	}
	tools, err := s.catalog.Refresh(ctx, def.WorkspaceID, def.ID)
	if err != nil {
		return nil, fmt.Errorf("refresh mcp server %s: %w", serverID, err)
	}
	return tools, nil
}
