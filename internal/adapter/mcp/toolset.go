package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/domain/mcp"
	"github.com/agent0/runner/internal/port/cache"
	"github.com/agent0/runner/internal/port/llm"
	"github.com/agent0/runner/internal/port/toolset"
)

// maxParallelConnects bounds concurrent server handshakes per run.
const maxParallelConnects = 4

// ServerStore looks up registered MCP servers.
type ServerStore interface {
	GetMCPServer(ctx context.Context, id string) (*mcp.ServerDef, error)
}

// Options tunes the resolver.
type Options struct {
	// CatalogTTL is how long a server's tool list stays cached.
	CatalogTTL time.Duration
	// CallTimeout bounds a single tools/call. Zero means no limit.
	CallTimeout time.Duration
}

// Resolver binds {mcp_id, name} tool references to live MCP sessions.
type Resolver struct {
	servers ServerStore
	catalog cache.Cache
	opts    Options
}

var _ toolset.Resolver = (*Resolver)(nil)

// NewResolver creates a Resolver. catalog may be nil to disable caching.
func NewResolver(servers ServerStore, catalog cache.Cache, opts Options) *Resolver {
	return &Resolver{servers: servers, catalog: catalog, opts: opts}
}

// Resolve connects to every referenced server concurrently and binds the
// named tools. The returned Set owns the connections until Close.
func (r *Resolver) Resolve(ctx context.Context, workspaceID string, refs []agent.ToolRef) (toolset.Set, error) {
	if len(refs) == 0 {
		return toolset.Empty{}, nil
	}

	var order []string
	wanted := make(map[string][]string)
	for _, ref := range refs {
		if _, ok := wanted[ref.MCPID]; !ok {
			order = append(order, ref.MCPID)
		}
		wanted[ref.MCPID] = append(wanted[ref.MCPID], ref.Name)
	}

	sessions := make([]*session, len(order))
	var g errgroup.Group
	g.SetLimit(maxParallelConnects)
	for i, id := range order {
		g.Go(func() error {
			s, err := r.open(ctx, workspaceID, id, wanted[id])
			if err != nil {
				return fmt.Errorf("mcp server %s: %w", id, err)
			}
			sessions[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		closeSessions(sessions)
		return nil, err
	}

	set := &Set{tools: make(map[string]*boundTool), timeout: r.opts.CallTimeout, sessions: sessions}
	for _, s := range sessions {
		for _, t := range s.tools {
			if _, dup := set.tools[t.Name]; dup {
				closeSessions(sessions)
				return nil, fmt.Errorf("%w: tool %q is bound by more than one server", domain.ErrValidation, t.Name)
			}
			set.tools[t.Name] = &boundTool{session: s, tool: t}
			set.specs = append(set.specs, llm.ToolSpec{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
		}
	}
	return set, nil
}

func (r *Resolver) open(ctx context.Context, workspaceID, serverID string, names []string) (*session, error) {
	def, err := r.servers.GetMCPServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if def.WorkspaceID != workspaceID {
		return nil, fmt.Errorf("%w: mcp server not in workspace", domain.ErrNotFound)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	client, err := connect(ctx, def)
	if err != nil {
		return nil, err
	}
	catalog, err := r.tools(ctx, client, def.ID)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	byName := make(map[string]mcp.ServerTool, len(catalog))
	for _, t := range catalog {
		byName[t.Name] = t
	}
	s := &session{def: def, client: client}
	for _, name := range names {
		t, ok := byName[name]
		if !ok {
			_ = client.Close()
			return nil, fmt.Errorf("%w: tool %q", domain.ErrNotFound, name)
		}
		s.tools = append(s.tools, t)
	}
	return s, nil
}

// tools returns the server's catalog, served from cache when possible.
func (r *Resolver) tools(ctx context.Context, client *mcpclient.Client, serverID string) ([]mcp.ServerTool, error) {
	key := catalogKey(serverID)
	if r.catalog != nil {
		if raw, ok, err := r.catalog.Get(ctx, key); err == nil && ok {
			var cached []mcp.ServerTool
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	tools, err := listTools(ctx, client, serverID)
	if err != nil {
		return nil, err
	}
	if r.catalog != nil {
		if raw, err := json.Marshal(tools); err == nil {
			if err := r.catalog.Set(ctx, key, raw, r.opts.CatalogTTL); err != nil {
				slog.Warn("mcp catalog cache set failed", "server_id", serverID, "error", err)
			}
		}
	}
	return tools, nil
}

// Invalidate drops the cached catalog of a server.
func (r *Resolver) Invalidate(ctx context.Context, serverID string) error {
	if r.catalog == nil {
		return nil
	}
	return r.catalog.Delete(ctx, catalogKey(serverID))
}

// Refresh drops the cached catalog of a server, lists it again and caches
// the fresh result.
func (r *Resolver) Refresh(ctx context.Context, workspaceID, serverID string) ([]mcp.ServerTool, error) {
	if err := r.Invalidate(ctx, serverID); err != nil {
		slog.Warn("mcp catalog cache delete failed", "server_id", serverID, "error", err)
	}
	def, err := r.servers.GetMCPServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if def.WorkspaceID != workspaceID {
		return nil, fmt.Errorf("%w: mcp server not in workspace", domain.ErrNotFound)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	client, err := connect(ctx, def)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()
	return r.tools(ctx, client, def.ID)
}

func catalogKey(serverID string) string { return "mcp.tools." + serverID }

type session struct {
	def    *mcp.ServerDef
	client *mcpclient.Client
	tools  []mcp.ServerTool
}

type boundTool struct {
	session *session
	tool    mcp.ServerTool
}

// Set is the tool set of one run, backed by open MCP sessions.
type Set struct {
	sessions []*session
	tools    map[string]*boundTool
	specs    []llm.ToolSpec
	timeout  time.Duration
}

// Specs describes the bound tools in reference order.
func (s *Set) Specs() []llm.ToolSpec { return s.specs }

// Call invokes a tool through its server. The whole CallToolResult is
// returned as the tool output, including results flagged isError.
func (s *Set) Call(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	b, ok := s.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", toolset.ErrUnknownTool, name)
	}

	ctx, span := otel.Tracer("agent0-runner/mcp").Start(ctx, "mcp.tools/call")
	defer span.End()
	span.SetAttributes(
		attribute.String("mcp.server_id", b.session.def.ID),
		attribute.String("mcp.tool", name),
	)

	var args map[string]any
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			span.SetStatus(codes.Error, "invalid input")
			return nil, fmt.Errorf("%w: tool input must be a JSON object: %v", domain.ErrValidation, err)
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req := mcplib.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := b.session.client.CallTool(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("tools/call %s: %w", name, err)
	}
	if res.IsError {
		span.SetStatus(codes.Error, "tool reported error")
	}
	return json.Marshal(res)
}

// Close shuts down every session of the set.
func (s *Set) Close() error {
	closeSessions(s.sessions)
	return nil
}

func closeSessions(sessions []*session) {
	for _, s := range sessions {
		if s == nil {
			continue
		}
		if err := s.client.Close(); err != nil {
			slog.Debug("mcp client close failed", "server_id", s.def.ID, "error", err)
		}
	}
}
