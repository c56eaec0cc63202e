package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/port/database"
)

// DeployRequest points an environment of an agent at a version.
type DeployRequest struct {
	VersionID   string `json:"version_id"`
	Environment string `json:"environment"`
}

// DeployService moves agent deployment pointers.
type DeployService struct {
	store database.Store
}

// NewDeployService creates a DeployService.
func NewDeployService(store database.Store) *DeployService {
	return &DeployService{store: store}
}

// Deploy points the environment at the version. It reports false when the
// version was already deployed there; nothing is written in that case.
func (s *DeployService) Deploy(ctx context.Context, userID, agentID string, req DeployRequest) (bool, error) {
	env, err := agent.ParseEnvironment(req.Environment)
	if err != nil {
		return false, err
	}
	if req.VersionID == "" {
		return false, fmt.Errorf("%w: version_id is required", domain.ErrValidation)
	}

	a, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return false, fmt.Errorf("get agent: %w", err)
	}
	if err := requireAdmin(ctx, s.store, a.WorkspaceID, userID); err != nil {
		return false, err
	}

	v, err := s.store.GetVersion(ctx, req.VersionID)
	if err != nil {
		return false, fmt.Errorf("get version: %w", err)
	}
	if v.AgentID != a.ID {
		return false, fmt.Errorf("version %s: %w", req.VersionID, domain.ErrNotFound)
	}

	changed, err := a.Deploy(env, v.ID)
	if err != nil || !changed {
		return false, err
	}
	if err := s.store.UpdateDeployment(ctx, a.ID, env, v.ID); err != nil {
		return false, fmt.Errorf("update deployment: %w", err)
	}
	slog.InfoContext(ctx, "agent deployed", "agent_id", a.ID, "environment", env, "version_id", v.ID)
	return true, nil
}
