// Package provider defines workspace-scoped model provider credentials.
package provider

import (
	"encoding/json"
	"time"
)

// Type identifies a generation vendor.
type Type string

const (
	TypeOpenAI       Type = "openai"
	TypeAzure        Type = "azure"
	TypeGoogle       Type = "google"
	TypeGoogleVertex Type = "google-vertex"
	TypeXAI          Type = "xai"
	TypeBedrock      Type = "bedrock"
)

// Provider binds an encrypted credential to a vendor type. EncryptedData is
// an ASCII-armored OpenPGP message whose plaintext is the vendor's JSON
// settings object.
type Provider struct {
	ID            string    `json:"id"`
	WorkspaceID   string    `json:"workspace_id"`
	Name          string    `json:"name,omitempty"`
	Type          Type      `json:"type"`
	EncryptedData string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// Credentials are the decrypted settings of a provider. They live only for
// the duration of one run.
type Credentials struct {
	ProviderID string
	Type       Type
	Config     json.RawMessage
}
