package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agent0/runner/internal/domain/mcp"
)

// CreateMCPServer registers an MCP server in a workspace.
func (s *Store) CreateMCPServer(ctx context.Context, srv *mcp.ServerDef) error {
	transport, err := json.Marshal(srv.Transport)
	if err != nil {
		return fmt.Errorf("marshal transport: %w", err)
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO mcp_servers (workspace_id, name, transport) VALUES ($1, $2, $3) RETURNING id`,
		srv.WorkspaceID, srv.Name, transport,
	).Scan(&srv.ID)
	if err != nil {
		return fmt.Errorf("create mcp server: %w", err)
	}
	return nil
}

// GetMCPServer retrieves an MCP server by ID.
func (s *Store) GetMCPServer(ctx context.Context, id string) (*mcp.ServerDef, error) {
	var srv mcp.ServerDef
	var transport []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, name, transport FROM mcp_servers WHERE id = $1`, id,
	).Scan(&srv.ID, &srv.WorkspaceID, &srv.Name, &transport)
	if err != nil {
		return nil, notFoundWrap(err, "get mcp server %s", id)
	}
	if err := json.Unmarshal(transport, &srv.Transport); err != nil {
		return nil, fmt.Errorf("decode mcp server %s transport: %w", id, err)
	}
	return &srv, nil
}
