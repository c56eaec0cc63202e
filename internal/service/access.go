package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/workspace"
)

// MemberStore looks up workspace membership.
type MemberStore interface {
	GetMember(ctx context.Context, workspaceID, userID string) (*workspace.Member, error)
}

// requireMember fails with domain.ErrForbidden unless userID belongs to the
// workspace. Non-members are forbidden rather than not found.
func requireMember(ctx context.Context, members MemberStore, workspaceID, userID string) (*workspace.Member, error) {
	m, err := members.GetMember(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: not a member of the workspace", domain.ErrForbidden)
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// requireAdmin is requireMember plus the admin role.
func requireAdmin(ctx context.Context, members MemberStore, workspaceID, userID string) error {
	m, err := requireMember(ctx, members, workspaceID, userID)
	if err != nil {
		return err
	}
	if !m.IsAdmin() {
		return fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}
	return nil
}
