package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/run"
)

// CreateRun inserts a run record. Runs are written once; inserting an ID
// that already exists is a no-op so that replays stay idempotent.
func (s *Store) CreateRun(ctx context.Context, r *run.Run) error {
	data, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Errorf("marshal run data: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, workspace_id, version_id, data, is_error, is_test, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		r.ID, r.WorkspaceID, r.VersionID, stripNUL(data), r.IsError, r.IsTest, r.CreatedAt,
	)
	if isUntranslatable(err) {
		return fmt.Errorf("create run %s: %w: %w", r.ID, domain.ErrValidation, err)
	}
	if err != nil {
		return fmt.Errorf("create run %s: %w", r.ID, err)
	}
	return nil
}

// GetRun retrieves a run record.
func (s *Store) GetRun(ctx context.Context, id string) (*run.Run, error) {
	r, err := scanRun(s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, version_id, data, is_error, is_test, created_at
		 FROM runs WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get run %s", id)
	}
	return r, nil
}

// ListRuns returns the most recent runs of a workspace, newest first.
func (s *Store) ListRuns(ctx context.Context, workspaceID string, limit int) ([]run.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, workspace_id, version_id, data, is_error, is_test, created_at
		 FROM runs WHERE workspace_id = $1 ORDER BY created_at DESC LIMIT $2`,
		workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []run.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRun(row scannable) (*run.Run, error) {
	var r run.Run
	var data []byte
	if err := row.Scan(&r.ID, &r.WorkspaceID, &r.VersionID, &data, &r.IsError, &r.IsTest, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &r.Data); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", r.ID, err)
	}
	return &r, nil
}
