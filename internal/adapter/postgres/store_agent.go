package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/domain/provider"
)

// --- Providers ---

// CreateProvider inserts a provider with its armored credential.
func (s *Store) CreateProvider(ctx context.Context, p *provider.Provider) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO providers (workspace_id, name, type, encrypted_data)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		p.WorkspaceID, p.Name, string(p.Type), p.EncryptedData,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}
	return nil
}

// GetProvider retrieves a provider, including its encrypted settings.
func (s *Store) GetProvider(ctx context.Context, id string) (*provider.Provider, error) {
	var p provider.Provider
	var typ string
	err := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, name, type, encrypted_data, created_at
		 FROM providers WHERE id = $1`, id,
	).Scan(&p.ID, &p.WorkspaceID, &p.Name, &typ, &p.EncryptedData, &p.CreatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get provider %s", id)
	}
	p.Type = provider.Type(typ)
	return &p, nil
}

// --- Agents ---

// CreateAgent inserts an agent without deployments.
func (s *Store) CreateAgent(ctx context.Context, a *agent.Agent) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO agents (workspace_id, name) VALUES ($1, $2) RETURNING id, created_at`,
		a.WorkspaceID, a.Name,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

// GetAgent retrieves an agent with its deployment pointers.
func (s *Store) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	a, err := scanAgent(s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, name, staging_version_id, production_version_id, created_at
		 FROM agents WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get agent %s", id)
	}
	return a, nil
}

func scanAgent(row scannable) (*agent.Agent, error) {
	var a agent.Agent
	var staging, production *string
	if err := row.Scan(&a.ID, &a.WorkspaceID, &a.Name, &staging, &production, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.StagingVersionID = derefString(staging)
	a.ProductionVersionID = derefString(production)
	return &a, nil
}

// UpdateDeployment points env of agentID at versionID. The version must
// belong to the agent.
func (s *Store) UpdateDeployment(ctx context.Context, agentID string, env agent.Environment, versionID string) error {
	var q string
	switch env {
	case agent.EnvStaging:
		q = `UPDATE agents SET staging_version_id = $2
			 WHERE id = $1 AND EXISTS (SELECT 1 FROM versions v WHERE v.id = $2 AND v.agent_id = $1)`
	case agent.EnvProduction:
		q = `UPDATE agents SET production_version_id = $2
			 WHERE id = $1 AND EXISTS (SELECT 1 FROM versions v WHERE v.id = $2 AND v.agent_id = $1)`
	default:
		return fmt.Errorf("update deployment: unknown environment %q", env)
	}
	tag, err := s.pool.Exec(ctx, q, agentID, nullIfEmpty(versionID))
	if isInvalidUUID(err) {
		err = nil
	}
	return execExpectOne(tag, err, "update deployment %s/%s", agentID, env)
}

// --- Versions ---

// CreateVersion appends a version to an agent.
func (s *Store) CreateVersion(ctx context.Context, v *agent.Version) error {
	data, err := json.Marshal(v.Data)
	if err != nil {
		return fmt.Errorf("marshal version data: %w", err)
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO versions (agent_id, data) VALUES ($1, $2) RETURNING id, created_at`,
		v.AgentID, data,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return fmt.Errorf("create version: %w", err)
	}
	return nil
}

// GetVersion retrieves a version and decodes its stored configuration.
func (s *Store) GetVersion(ctx context.Context, id string) (*agent.Version, error) {
	var v agent.Version
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, agent_id, data, created_at FROM versions WHERE id = $1`, id,
	).Scan(&v.ID, &v.AgentID, &data, &v.CreatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get version %s", id)
	}
	if err := json.Unmarshal(data, &v.Data); err != nil {
		return nil, fmt.Errorf("decode version %s: %w", id, err)
	}
	return &v, nil
}
