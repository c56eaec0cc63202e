// Package mcp connects to remote Model Context Protocol servers and exposes
// their tools to generation runs.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/agent0/runner/internal/domain/mcp"
)

// ClientName identifies the runner in the MCP initialize handshake.
const ClientName = "agent0-runner"

// connect creates a client for def, starts its transport and performs the
// initialize handshake. The transport lives as long as ctx.
func connect(ctx context.Context, def *mcp.ServerDef) (*mcpclient.Client, error) {
	client, err := newClient(def)
	if err != nil {
		return nil, fmt.Errorf("create mcp client: %w", err)
	}
	if err := client.Start(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("start mcp transport: %w", err)
	}

	initReq := mcplib.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcplib.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcplib.Implementation{
		Name:    ClientName,
		Version: "1.0.0",
	}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return client, nil
}

// newClient builds an mcp-go Client for the server's transport.
func newClient(def *mcp.ServerDef) (*mcpclient.Client, error) {
	switch def.Transport.Type {
	case mcp.TransportSSE:
		var opts []transport.ClientOption
		if len(def.Transport.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(def.Transport.Headers))
		}
		return mcpclient.NewSSEMCPClient(def.Transport.URL, opts...)

	case mcp.TransportHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(def.Transport.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(def.Transport.Headers))
		}
		return mcpclient.NewStreamableHttpClient(def.Transport.URL, opts...)

	default:
		return nil, fmt.Errorf("unsupported transport: %s", def.Transport.Type)
	}
}

// listTools pages through the server's tool catalog.
func listTools(ctx context.Context, client *mcpclient.Client, serverID string) ([]mcp.ServerTool, error) {
	var (
		out    []mcp.ServerTool
		cursor mcplib.Cursor
	)
	for {
		req := mcplib.ListToolsRequest{}
		req.Params.Cursor = cursor
		res, err := client.ListTools(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("tools/list: %w", err)
		}
		for i := range res.Tools {
			tool := &res.Tools[i]
			schema := tool.RawInputSchema
			if len(schema) == 0 {
				if schema, err = json.Marshal(tool.InputSchema); err != nil {
					return nil, fmt.Errorf("encode input schema of %s: %w", tool.Name, err)
				}
			}
			out = append(out, mcp.ServerTool{
				ServerID:    serverID,
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: schema,
			})
		}
		if res.NextCursor == "" {
			return out, nil
		}
		cursor = res.NextCursor
	}
}
