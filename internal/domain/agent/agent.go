// Package agent defines the Agent domain entity, its append-only versions
// and per-environment deployment pointers.
package agent

import (
	"fmt"
	"time"

	"github.com/agent0/runner/internal/domain"
)

// Environment names a deployment target.
type Environment string

const (
	EnvProduction Environment = "production"
	EnvStaging    Environment = "staging"
)

// ParseEnvironment validates s. The empty string means production.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(s) {
	case "", EnvProduction:
		return EnvProduction, nil
	case EnvStaging:
		return EnvStaging, nil
	}
	return "", fmt.Errorf("%w: unknown environment %q", domain.ErrValidation, s)
}

// Agent represents a named agent configuration owned by a workspace.
type Agent struct {
	ID                  string    `json:"id"`
	WorkspaceID         string    `json:"workspace_id"`
	Name                string    `json:"name"`
	StagingVersionID    string    `json:"staging_version_id,omitempty"`
	ProductionVersionID string    `json:"production_version_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// Deployed returns the version deployed to env, if any.
func (a *Agent) Deployed(env Environment) (string, bool) {
	var id string
	switch env {
	case EnvStaging:
		id = a.StagingVersionID
	case EnvProduction:
		id = a.ProductionVersionID
	}
	return id, id != ""
}

// Deploy points env at versionID. It reports false, and changes nothing,
// when that version is already deployed there.
func (a *Agent) Deploy(env Environment, versionID string) (bool, error) {
	if versionID == "" {
		return false, fmt.Errorf("%w: version_id is required", domain.ErrValidation)
	}
	if cur, _ := a.Deployed(env); cur == versionID {
		return false, nil
	}
	switch env {
	case EnvStaging:
		a.StagingVersionID = versionID
	case EnvProduction:
		a.ProductionVersionID = versionID
	default:
		return false, fmt.Errorf("%w: unknown environment %q", domain.ErrValidation, env)
	}
	return true, nil
}
