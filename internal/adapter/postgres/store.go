package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/workspace"
	"github.com/agent0/runner/internal/port/database"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ database.Store = (*Store)(nil)

// NewStore creates a new Store with the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Workspaces ---

// CreateWorkspace inserts a workspace and returns its ID.
func (s *Store) CreateWorkspace(ctx context.Context, name string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO workspaces (name) VALUES ($1) RETURNING id`, name,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	return id, nil
}

// --- Membership ---

// GetMember returns the membership of userID in workspaceID.
func (s *Store) GetMember(ctx context.Context, workspaceID, userID string) (*workspace.Member, error) {
	var m workspace.Member
	var role string
	err := s.pool.QueryRow(ctx,
		`SELECT workspace_id, user_id, role, created_at
		 FROM workspace_user WHERE workspace_id = $1 AND user_id = $2`,
		workspaceID, userID,
	).Scan(&m.WorkspaceID, &m.UserID, &role, &m.CreatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get member %s/%s", workspaceID, userID)
	}
	m.Role = workspace.Role(role)
	return &m, nil
}

// AddMember inserts a membership. An existing membership is an ErrConflict.
func (s *Store) AddMember(ctx context.Context, m workspace.Member) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO workspace_user (workspace_id, user_id, role) VALUES ($1, $2, $3)`,
		m.WorkspaceID, m.UserID, string(m.Role),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("add member %s/%s: %w", m.WorkspaceID, m.UserID, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("add member %s/%s: %w", m.WorkspaceID, m.UserID, err)
	}
	return nil
}

// --- API keys ---

// CreateAPIKey stores the hash of a workspace API key. ID and CreatedAt are
// filled in from the database.
func (s *Store) CreateAPIKey(ctx context.Context, k *workspace.APIKey) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO api_keys (workspace_id, name, prefix, key_hash, expires_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		k.WorkspaceID, k.Name, k.Prefix, k.KeyHash, nullTime(k.ExpiresAt),
	).Scan(&k.ID, &k.CreatedAt)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

// GetAPIKeyByHash looks up a key by the SHA-256 of its plaintext.
func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*workspace.APIKey, error) {
	var k workspace.APIKey
	var expires *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, name, prefix, key_hash, expires_at, created_at
		 FROM api_keys WHERE key_hash = $1`, keyHash,
	).Scan(&k.ID, &k.WorkspaceID, &k.Name, &k.Prefix, &k.KeyHash, &expires, &k.CreatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get api key")
	}
	if expires != nil {
		k.ExpiresAt = *expires
	}
	return &k, nil
}
