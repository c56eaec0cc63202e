// Package workspace defines workspace membership and API keys.
package workspace

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/mail"
	"time"

	"github.com/agent0/runner/internal/domain"
)

// Role represents a member's authorization level in a workspace.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleReader Role = "reader"
)

// Member links a user to a workspace.
type Member struct {
	WorkspaceID string    `json:"workspace_id"`
	UserID      string    `json:"user_id"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsAdmin reports whether the member holds the admin role.
func (m *Member) IsAdmin() bool { return m.Role == RoleAdmin }

// APIKeyPrefix is prepended to generated API keys for identification.
const APIKeyPrefix = "a0k_"

// APIKey is a workspace-scoped bearer credential for SDK callers.
type APIKey struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name"`
	Prefix      string    `json:"prefix"` // first 8 chars for display
	KeyHash     string    `json:"-"`      // SHA-256 hash, never serialized
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
	CreatedAt   time.Time `json:"created_at"`
}

// Expired reports whether the key is past its expiry.
func (k *APIKey) Expired(now time.Time) bool {
	return !k.ExpiresAt.IsZero() && now.After(k.ExpiresAt)
}

// HashKey returns the hex SHA-256 of a plaintext key.
func HashKey(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// GenerateKey returns a new plaintext key, its display prefix and its hash.
// The plaintext is shown once and never stored.
func GenerateKey() (plain, prefix, hash string, err error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", "", "", fmt.Errorf("generate api key: %w", err)
	}
	plain = APIKeyPrefix + hex.EncodeToString(buf)
	return plain, plain[:8], HashKey(plain), nil
}

// InviteRequest asks to add a user to a workspace as a reader.
type InviteRequest struct {
	Email       string `json:"email"`
	WorkspaceID string `json:"workspace_id"`
}

// Validate checks that the InviteRequest has all required fields.
func (r *InviteRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return fmt.Errorf("%w: invalid email format", domain.ErrValidation)
	}
	if r.WorkspaceID == "" {
		return fmt.Errorf("%w: workspace_id is required", domain.ErrValidation)
	}
	return nil
}
