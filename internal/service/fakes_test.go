package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/domain/event"
	"github.com/agent0/runner/internal/domain/mcp"
	"github.com/agent0/runner/internal/domain/message"
	"github.com/agent0/runner/internal/domain/provider"
	"github.com/agent0/runner/internal/domain/run"
	"github.com/agent0/runner/internal/domain/workspace"
	"github.com/agent0/runner/internal/port/database"
	"github.com/agent0/runner/internal/port/llm"
	"github.com/agent0/runner/internal/port/messagequeue"
	"github.com/agent0/runner/internal/port/toolset"
)

// fakeStore is an in-memory database.Store.
type fakeStore struct {
	mu        sync.Mutex
	providers map[string]*provider.Provider
	agents    map[string]*agent.Agent
	versions  map[string]*agent.Version
	members   map[string]*workspace.Member
	servers   map[string]*mcp.ServerDef
	runs      []*run.Run
	runErr    error
	deploys   int
}

var _ database.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		providers: make(map[string]*provider.Provider),
		agents:    make(map[string]*agent.Agent),
		versions:  make(map[string]*agent.Version),
		members:   make(map[string]*workspace.Member),
		servers:   make(map[string]*mcp.ServerDef),
	}
}

func (f *fakeStore) GetProvider(_ context.Context, id string) (*provider.Provider, error) {
	p, ok := f.providers[id]
	if !ok {
		return nil, fmt.Errorf("provider %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func (f *fakeStore) GetAgent(_ context.Context, id string) (*agent.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) GetVersion(_ context.Context, id string) (*agent.Version, error) {
	v, ok := f.versions[id]
	if !ok {
		return nil, fmt.Errorf("version %s: %w", id, domain.ErrNotFound)
	}
	return v, nil
}

func (f *fakeStore) UpdateDeployment(_ context.Context, agentID string, env agent.Environment, versionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agents[agentID]
	if !ok {
		return domain.ErrNotFound
	}
	f.deploys++
	_, err := a.Deploy(env, versionID)
	return err
}

func (f *fakeStore) GetMCPServer(_ context.Context, id string) (*mcp.ServerDef, error) {
	def, ok := f.servers[id]
	if !ok {
		return nil, fmt.Errorf("mcp server %s: %w", id, domain.ErrNotFound)
	}
	return def, nil
}

func memberKey(workspaceID, userID string) string { return workspaceID + "/" + userID }

func (f *fakeStore) GetMember(_ context.Context, workspaceID, userID string) (*workspace.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[memberKey(workspaceID, userID)]
	if !ok {
		return nil, fmt.Errorf("member: %w", domain.ErrNotFound)
	}
	return m, nil
}

func (f *fakeStore) AddMember(_ context.Context, m workspace.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := memberKey(m.WorkspaceID, m.UserID)
	if _, ok := f.members[k]; ok {
		return fmt.Errorf("member: %w", domain.ErrConflict)
	}
	f.members[k] = &m
	return nil
}

func (f *fakeStore) GetAPIKeyByHash(context.Context, string) (*workspace.APIKey, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeStore) CreateRun(_ context.Context, r *run.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runErr != nil {
		return f.runErr
	}
	for _, existing := range f.runs {
		if existing.ID == r.ID {
			return nil
		}
	}
	cp := *r
	f.runs = append(f.runs, &cp)
	return nil
}

func (f *fakeStore) GetRun(_ context.Context, id string) (*run.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) recorded() []*run.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*run.Run(nil), f.runs...)
}

// fakeQueue records published messages.
type fakeQueue struct {
	mu        sync.Mutex
	published map[string][][]byte
	handlers  map[string]messagequeue.Handler
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{published: make(map[string][][]byte), handlers: make(map[string]messagequeue.Handler)}
}

func (q *fakeQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published[subject] = append(q.published[subject], data)
	return nil
}

func (q *fakeQueue) Subscribe(_ context.Context, subject string, h messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[subject] = h
	return func() {}, nil
}

func (q *fakeQueue) Drain() error      { return nil }
func (q *fakeQueue) Close() error      { return nil }
func (q *fakeQueue) IsConnected() bool { return true }

func (q *fakeQueue) count(subject string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.published[subject])
}

// fakeCreds hands out fixed credentials per provider id.
type fakeCreds map[string]*provider.Credentials

func (f fakeCreds) Resolve(_ context.Context, _, providerID string) (*provider.Credentials, error) {
	c, ok := f[providerID]
	if !ok {
		return nil, fmt.Errorf("provider %s: %w", providerID, domain.ErrNotFound)
	}
	return c, nil
}

// scriptedStep produces one generation step.
type scriptedStep func(ctx context.Context, req llm.StepRequest, emit llm.Emit) (*llm.StepResult, error)

// scriptedModel replays steps in order and records the requests it saw.
type scriptedModel struct {
	mu       sync.Mutex
	steps    []scriptedStep
	requests []llm.StepRequest
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Stream(ctx context.Context, req llm.StepRequest, emit llm.Emit) (*llm.StepResult, error) {
	m.mu.Lock()
	n := len(m.requests)
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if n >= len(m.steps) {
		return nil, fmt.Errorf("%w: no scripted step %d", domain.ErrGeneration, n)
	}
	return m.steps[n](ctx, req, emit)
}

func (m *scriptedModel) seen() []llm.StepRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.StepRequest(nil), m.requests...)
}

type scriptedProvider struct{ model *scriptedModel }

func (p scriptedProvider) Type() provider.Type { return scriptedVendor }
func (p scriptedProvider) Model(string) (llm.Model, error) {
	return p.model, nil
}

const scriptedVendor provider.Type = "scripted-vendor"

var (
	currentModel   *scriptedModel
	currentModelMu sync.Mutex
)

func init() {
	llm.Register(scriptedVendor, func(json.RawMessage) (llm.Provider, error) {
		currentModelMu.Lock()
		defer currentModelMu.Unlock()
		return scriptedProvider{model: currentModel}, nil
	})
}

func useModel(m *scriptedModel) {
	currentModelMu.Lock()
	currentModel = m
	currentModelMu.Unlock()
}

// textStep streams text in the given chunks and stops.
func textStep(chunks ...string) scriptedStep {
	return func(_ context.Context, _ llm.StepRequest, emit llm.Emit) (*llm.StepResult, error) {
		if err := emit(event.NewTextStart("t0")); err != nil {
			return nil, err
		}
		var full string
		for _, c := range chunks {
			full += c
			if err := emit(event.NewTextDelta("t0", c)); err != nil {
				return nil, err
			}
		}
		if err := emit(event.NewTextEnd("t0")); err != nil {
			return nil, err
		}
		return &llm.StepResult{
			Content:      message.Content{message.Text(full)},
			FinishReason: "stop",
			Usage:        event.Usage{InputTokens: 3, OutputTokens: 2, TotalTokens: 5},
		}, nil
	}
}

// toolStep requests one tool call.
func toolStep(id, name, input string) scriptedStep {
	return func(_ context.Context, _ llm.StepRequest, emit llm.Emit) (*llm.StepResult, error) {
		call := &message.ToolCallPart{ToolCallID: id, ToolName: name, Input: json.RawMessage(input)}
		if err := emit(event.NewToolCall(id, name, call.Input)); err != nil {
			return nil, err
		}
		return &llm.StepResult{Content: message.Content{call}, FinishReason: "tool-calls"}, nil
	}
}

// fakeTools binds tools backed by plain functions.
type fakeTools map[string]func(json.RawMessage) (json.RawMessage, error)

type fakeSet struct {
	tools  fakeTools
	closed bool
}

func (f fakeTools) Resolve(_ context.Context, _ string, refs []agent.ToolRef) (toolset.Set, error) {
	for _, r := range refs {
		if _, ok := f[r.Name]; !ok {
			return nil, fmt.Errorf("tool %q: %w", r.Name, domain.ErrNotFound)
		}
	}
	return &fakeSet{tools: f}, nil
}

func (s *fakeSet) Specs() []llm.ToolSpec {
	var out []llm.ToolSpec
	for name := range s.tools {
		out = append(out, llm.ToolSpec{Name: name})
	}
	return out
}

func (s *fakeSet) Call(_ context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	fn, ok := s.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", toolset.ErrUnknownTool, name)
	}
	return fn(input)
}

func (s *fakeSet) Close() error {
	s.closed = true
	return nil
}

var errToolBroken = errors.New("tool broken")
