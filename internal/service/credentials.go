package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/agent0/runner/internal/config"
	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/provider"
)

// ProviderStore looks up encrypted provider credentials.
type ProviderStore interface {
	GetProvider(ctx context.Context, id string) (*provider.Provider, error)
}

// KeySource returns key material by name. secrets.Vault satisfies it.
type KeySource interface {
	Get(key string) string
}

// CredentialService resolves and decrypts provider credentials. Nothing is
// cached: every call re-reads the key material and decrypts again, so a
// rotated key takes effect on the next run.
type CredentialService struct {
	providers ProviderStore
	keys      KeySource
	cfg       config.Crypto
}

// NewCredentialService creates a CredentialService.
func NewCredentialService(providers ProviderStore, keys KeySource, cfg config.Crypto) *CredentialService {
	return &CredentialService{providers: providers, keys: keys, cfg: cfg}
}

// Resolve loads the provider, decrypts its settings and checks that they
// form a JSON object. A provider owned by another workspace is reported as
// not found. An empty workspaceID skips the ownership check.
func (s *CredentialService) Resolve(ctx context.Context, workspaceID, providerID string) (*provider.Credentials, error) {
	p, err := s.providers.GetProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("resolve provider %s: %w", providerID, err)
	}
	if workspaceID != "" && p.WorkspaceID != workspaceID {
		return nil, fmt.Errorf("resolve provider %s: %w", providerID, domain.ErrNotFound)
	}

	privateKey := s.keys.Get(s.cfg.PrivateKeyEnv)
	if privateKey == "" {
		return nil, fmt.Errorf("%w: %s is not set", domain.ErrDecryption, s.cfg.PrivateKeyEnv)
	}
	plain, err := provider.Decrypt(p.EncryptedData, privateKey, []byte(s.keys.Get(s.cfg.PassphraseEnv)))
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", providerID, err)
	}

	trimmed := bytes.TrimSpace(plain)
	var fields map[string]json.RawMessage
	if len(trimmed) == 0 || trimmed[0] != '{' || json.Unmarshal(trimmed, &fields) != nil {
		return nil, fmt.Errorf("%w: provider %s settings are not a JSON object", domain.ErrMalformedConfig, providerID)
	}

	return &provider.Credentials{ProviderID: p.ID, Type: p.Type, Config: json.RawMessage(trimmed)}, nil
}
