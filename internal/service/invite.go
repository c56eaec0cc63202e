package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agent0/runner/internal/adapter/gotrue"
	"github.com/agent0/runner/internal/domain/workspace"
	"github.com/agent0/runner/internal/port/database"
)

// UserInviter sends invitations through the auth provider.
type UserInviter interface {
	InviteUserByEmail(ctx context.Context, email string) (*gotrue.User, error)
}

// InviteService adds users to workspaces.
type InviteService struct {
	store   database.Store
	inviter UserInviter
}

// NewInviteService creates an InviteService.
func NewInviteService(store database.Store, inviter UserInviter) *InviteService {
	return &InviteService{store: store, inviter: inviter}
}

// Invite sends an invitation on behalf of an admin of the workspace and
// adds the invited user as a reader.
func (s *InviteService) Invite(ctx context.Context, userID string, req workspace.InviteRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := requireAdmin(ctx, s.store, req.WorkspaceID, userID); err != nil {
		return err
	}

	u, err := s.inviter.InviteUserByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if err := s.store.AddMember(ctx, workspace.Member{
		WorkspaceID: req.WorkspaceID,
		UserID:      u.ID,
		Role:        workspace.RoleReader,
	}); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	slog.InfoContext(ctx, "user invited", "workspace_id", req.WorkspaceID, "invited_user_id", u.ID)
	return nil
}
