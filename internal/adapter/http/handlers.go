package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/agent0/runner/internal/adapter/sse"
	"github.com/agent0/runner/internal/adapter/ws"
	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/domain/message"
	"github.com/agent0/runner/internal/domain/workspace"
	"github.com/agent0/runner/internal/middleware"
	"github.com/agent0/runner/internal/service"
)

// runIDHeader carries the id of the recorded run on every run response.
const runIDHeader = "X-Run-ID"

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Generation *service.GenerationService
	Deploy     *service.DeployService
	Invite     *service.InviteService
	Tools      *service.ToolService
	// WSOrigins lists the Origin host patterns accepted on WebSocket
	// upgrades. Empty accepts any origin.
	WSOrigins []string
	// Health reports readiness of the backing services. Nil means healthy.
	Health func(ctx context.Context) error
}

// runOptions are the per-run fields shared by the run and test endpoints.
type runOptions struct {
	Variables     map[string]string `json:"variables,omitempty"`
	Overrides     *agent.Overrides  `json:"overrides,omitempty"`
	ExtraMessages []message.Message `json:"extraMessages,omitempty"`
	Stream        bool              `json:"stream,omitempty"`
}

// runBody is the request of POST /api/v1/run and of the WebSocket variant.
type runBody struct {
	AgentID     string `json:"agent_id"`
	Environment string `json:"environment,omitempty"`
	runOptions
}

// testBody is the request of POST /api/v1/test.
type testBody struct {
	VersionID string             `json:"version_id"`
	Data      *agent.VersionData `json:"data,omitempty"`
	runOptions
}

func (o runOptions) request(workspaceID string, v *agent.Version, data agent.VersionData) service.RunRequest {
	return service.RunRequest{
		WorkspaceID:   workspaceID,
		VersionID:     v.ID,
		Data:          data,
		Variables:     o.Variables,
		Overrides:     o.Overrides,
		ExtraMessages: o.ExtraMessages,
		Stream:        o.Stream,
	}
}

// HandleRun handles POST /api/v1/run. The caller is authenticated by a
// workspace API key and runs the agent's deployed version.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	key := middleware.APIKeyFromContext(r.Context())
	body, ok := readJSON[runBody](w, r)
	if !ok {
		return
	}
	req, err := h.deployedRequest(r.Context(), key, body)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.execute(w, r, req)
}

// HandleTest handles POST /api/v1/test. The caller is a workspace member and
// may run unsaved version data.
func (h *Handlers) HandleTest(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	body, ok := readJSON[testBody](w, r)
	if !ok {
		return
	}
	if !requireField(w, body.VersionID, "version_id") {
		return
	}
	v, workspaceID, err := h.Generation.MemberVersion(r.Context(), user.Subject, body.VersionID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	data := v.Data
	if body.Data != nil {
		data = *body.Data
	}
	req := body.request(workspaceID, v, data)
	req.IsTest = true
	h.execute(w, r, req)
}

func (h *Handlers) deployedRequest(ctx context.Context, key *workspace.APIKey, body runBody) (service.RunRequest, error) {
	env, err := agent.ParseEnvironment(body.Environment)
	if err != nil {
		return service.RunRequest{}, err
	}
	v, err := h.Generation.DeployedVersion(ctx, key.WorkspaceID, body.AgentID, env)
	if err != nil {
		return service.RunRequest{}, err
	}
	return body.request(key.WorkspaceID, v, v.Data), nil
}

// execute answers with the whole result, or with SSE frames when the
// request asks for a stream.
func (h *Handlers) execute(w http.ResponseWriter, r *http.Request, req service.RunRequest) {
	if !req.Stream {
		// The whole generation happens before the first byte is written, so
		// the server's WriteTimeout would otherwise cut the response.
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
		out, err := h.Generation.Generate(r.Context(), req)
		if out != nil {
			w.Header().Set(runIDHeader, out.RunID)
		}
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out.Response())
		return
	}

	rs, err := h.Generation.Stream(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set(runIDHeader, rs.RunID())
	if err := service.Pump(r.Context(), rs, sse.NewSink(w)); err != nil {
		slog.InfoContext(r.Context(), "streamed run ended with error", "run_id", rs.RunID(), "error", err)
	}
}

// HandleRunWS handles GET /api/v1/run/ws. The first client message is the
// run request; every event is sent as one text message and the connection
// is closed when the run has been recorded.
func (h *Handlers) HandleRunWS(w http.ResponseWriter, r *http.Request) {
	key := middleware.APIKeyFromContext(r.Context())
	conn, err := ws.Accept(w, r, h.WSOrigins)
	if err != nil {
		slog.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	sink := ws.NewSink(conn)

	var body runBody
	if err := ws.ReadRequest(r.Context(), conn, &body); err != nil {
		slog.InfoContext(r.Context(), "websocket run request unreadable", "error", err)
		_ = sink.Close(err)
		return
	}
	body.Stream = true
	req, err := h.deployedRequest(r.Context(), key, body)
	if err != nil {
		_ = sink.Close(err)
		return
	}

	// The client sends nothing after the request; CloseRead cancels ctx
	// once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	rs, err := h.Generation.Stream(ctx, req)
	if err != nil {
		_ = sink.Close(err)
		return
	}
	if err := service.Pump(ctx, rs, sink); err != nil {
		slog.InfoContext(ctx, "websocket run ended with error", "run_id", rs.RunID(), "error", err)
	}
}

type deployResponse struct {
	Changed bool `json:"changed"`
}

// HandleDeploy handles POST /api/v1/agents/{agentID}/deploy.
func (h *Handlers) HandleDeploy(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	body, ok := readJSON[service.DeployRequest](w, r)
	if !ok {
		return
	}
	changed, err := h.Deploy.Deploy(r.Context(), user.Subject, urlParam(r, "agentID"), body)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deployResponse{Changed: changed})
}

// HandleInvite handles POST /api/v1/invite.
func (h *Handlers) HandleInvite(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	body, ok := readJSON[workspace.InviteRequest](w, r)
	if !ok {
		return
	}
	if err := h.Invite.Invite(r.Context(), user.Subject, body); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleRefreshMCP handles POST /api/v1/mcp/{mcpID}/refresh.
func (h *Handlers) HandleRefreshMCP(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	tools, err := h.Tools.Refresh(r.Context(), user.Subject, urlParam(r, "mcpID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
