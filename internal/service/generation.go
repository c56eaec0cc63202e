package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	cfotel "github.com/agent0/runner/internal/adapter/otel"
	"github.com/agent0/runner/internal/config"
	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/domain/event"
	"github.com/agent0/runner/internal/domain/message"
	"github.com/agent0/runner/internal/domain/provider"
	"github.com/agent0/runner/internal/domain/run"
	"github.com/agent0/runner/internal/domain/transcript"
	"github.com/agent0/runner/internal/domain/variable"
	"github.com/agent0/runner/internal/logger"
	"github.com/agent0/runner/internal/port/database"
	"github.com/agent0/runner/internal/port/llm"
	"github.com/agent0/runner/internal/port/toolset"
)

// CredentialResolver yields decrypted provider settings.
type CredentialResolver interface {
	Resolve(ctx context.Context, workspaceID, providerID string) (*provider.Credentials, error)
}

// RunRequest describes one execution attempt of a version.
type RunRequest struct {
	WorkspaceID string
	VersionID   string
	// Data is the version configuration to run: the stored data, or unsaved
	// edits for test runs.
	Data          agent.VersionData
	Variables     map[string]string
	Overrides     *agent.Overrides
	ExtraMessages []message.Message
	Stream        bool
	IsTest        bool
}

// GenerationService runs agent versions against vendor backends.
type GenerationService struct {
	store    database.Store
	creds    CredentialResolver
	tools    toolset.Resolver
	recorder *RunRecorder
	metrics  *cfotel.Metrics
	cfg      config.Generation
}

// NewGenerationService creates a GenerationService. metrics may be nil.
func NewGenerationService(
	store database.Store,
	creds CredentialResolver,
	tools toolset.Resolver,
	recorder *RunRecorder,
	metrics *cfotel.Metrics,
	cfg config.Generation,
) *GenerationService {
	return &GenerationService{
		store:    store,
		creds:    creds,
		tools:    tools,
		recorder: recorder,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// DeployedVersion returns the version an agent has deployed to env. Agents
// of other workspaces are reported as not found.
func (s *GenerationService) DeployedVersion(ctx context.Context, workspaceID, agentID string, env agent.Environment) (*agent.Version, error) {
	a, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	if a.WorkspaceID != workspaceID {
		return nil, fmt.Errorf("agent %s: %w", agentID, domain.ErrNotFound)
	}
	versionID, ok := a.Deployed(env)
	if !ok {
		return nil, fmt.Errorf("agent %s has no %s deployment: %w", agentID, env, domain.ErrNotFound)
	}
	v, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return v, nil
}

// MemberVersion returns a version together with its workspace id after
// checking that userID is a member of that workspace.
func (s *GenerationService) MemberVersion(ctx context.Context, userID, versionID string) (*agent.Version, string, error) {
	v, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, "", fmt.Errorf("get version: %w", err)
	}
	a, err := s.store.GetAgent(ctx, v.AgentID)
	if err != nil {
		return nil, "", fmt.Errorf("get agent: %w", err)
	}
	if _, err := requireMember(ctx, s.store, a.WorkspaceID, userID); err != nil {
		return nil, "", err
	}
	return v, a.WorkspaceID, nil
}

// Stream prepares the run and starts generation in the background. Failures
// before the backend is invoked are recorded and returned directly, so the
// caller can still answer with a plain error response.
func (s *GenerationService) Stream(ctx context.Context, req RunRequest) (*RunStream, error) {
	sw := run.NewStopwatch()
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	s.metrics.RunStarted(ctx, req.Stream, req.IsTest)

	data := agent.Merge(req.Data, req.Overrides)
	request := &run.Request{VersionData: data, Stream: req.Stream, Overrides: req.Overrides}

	eng, err := s.prepare(ctx, req, data)
	if err != nil {
		sw.Done()
		slog.WarnContext(ctx, "run preparation failed", "version_id", req.VersionID, "error", err)
		_ = s.recorder.Record(ctx, RecordInput{
			RunID:       runID,
			WorkspaceID: req.WorkspaceID,
			VersionID:   req.VersionID,
			StartTime:   sw.Start(),
			IsError:     true,
			IsTest:      req.IsTest,
			Data: run.Data{
				Request: request,
				Error:   run.Classify(err),
				Metrics: sw.Metrics(),
				Flags:   transcript.Flags{IncompleteStream: true},
			},
		})
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	rs := newRunStream(runID, cancel)
	go s.generate(streamCtx, rs, eng, req, request, sw)
	return rs, nil
}

// Generate runs to completion and returns the recorded outcome. A failed
// run returns its outcome together with the failure.
func (s *GenerationService) Generate(ctx context.Context, req RunRequest) (*Outcome, error) {
	rs, err := s.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	for range rs.Events() {
	}
	out := rs.Wait()
	return out, out.Err
}

func (s *GenerationService) prepare(ctx context.Context, req RunRequest, data agent.VersionData) (*engine, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if err := message.ValidateAll(req.ExtraMessages); err != nil {
		return nil, fmt.Errorf("extraMessages: %w", err)
	}

	creds, err := s.creds.Resolve(ctx, req.WorkspaceID, data.Model.ProviderID)
	if err != nil {
		return nil, err
	}
	p, err := llm.Build(creds.Type, creds.Config)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", creds.ProviderID, err)
	}
	model, err := p.Model(data.Model.Name)
	if err != nil {
		return nil, err
	}

	msgs, err := variable.Substitute(data.Messages, req.Variables)
	if err != nil {
		return nil, err
	}
	if missing := variable.Missing(data.Messages, req.Variables); len(missing) > 0 {
		slog.DebugContext(ctx, "unresolved template variables", "names", missing)
	}
	msgs = append(msgs, req.ExtraMessages...)

	tools, err := s.tools.Resolve(ctx, req.WorkspaceID, data.Tools)
	if err != nil {
		return nil, fmt.Errorf("resolve tools: %w", err)
	}

	return &engine{
		model:    model,
		tools:    tools,
		metrics:  s.metrics,
		maxSteps: data.StepCount(),
		base: llm.StepRequest{
			Messages:        msgs,
			MaxOutputTokens: data.MaxOutputTokens,
			Temperature:     data.Temperature,
			OutputFormat:    data.OutputFormat,
			ProviderOptions: data.ProviderOptions,
		},
	}, nil
}

// generate owns the run from backend invocation to the recorded outcome.
func (s *GenerationService) generate(ctx context.Context, rs *RunStream, eng *engine, req RunRequest, request *run.Request, sw *run.Stopwatch) {
	defer close(rs.done)
	defer rs.Cancel()

	ctx, span := cfotel.StartRunSpan(ctx, rs.runID, req.WorkspaceID, req.VersionID, req.IsTest)
	recon := transcript.New()

	emit := func(ev event.Event) error {
		if ev.Type.Content() {
			sw.FirstToken()
		}
		if ev.Type.Terminal() {
			sw.Done()
		}
		if err := recon.Feed(ev); err != nil {
			slog.WarnContext(ctx, "event rejected by transcript", "type", ev.Type, "error", err)
		}
		select {
		case rs.events <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	genCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	sw.Invoked()
	err := eng.run(genCtx, emit)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			sw.Done()
			if !recon.Finished() {
				_ = recon.Feed(event.NewAbort())
			}
			err = fmt.Errorf("run cancelled: %w", ctx.Err())
		case genCtx.Err() != nil:
			err = fmt.Errorf("%w: timed out after %s", domain.ErrGeneration, s.cfg.Timeout)
			_ = emit(event.NewError(run.Name(err), err))
		default:
			_ = emit(event.NewError(run.Name(err), err))
		}
		slog.WarnContext(ctx, "run failed", "error", err)
	}
	close(rs.events)

	if cerr := eng.tools.Close(); cerr != nil {
		slog.DebugContext(ctx, "tool set close failed", "error", cerr)
	}

	result := recon.Result()
	_ = s.recorder.Record(ctx, RecordInput{
		RunID:       rs.runID,
		WorkspaceID: req.WorkspaceID,
		VersionID:   req.VersionID,
		StartTime:   sw.Start(),
		IsError:     err != nil,
		IsTest:      req.IsTest,
		Data: run.Data{
			Request: request,
			Steps:   recon.Steps(),
			Error:   run.Classify(err),
			Metrics: sw.Metrics(),
			Flags:   result.Flags,
		},
	})
	rs.outcome = Outcome{RunID: rs.runID, Result: result, Err: err}
	cfotel.EndSpan(span, err)
}
