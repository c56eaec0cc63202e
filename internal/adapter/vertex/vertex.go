// Package vertex registers the Google Vertex AI vendor through the Vertex
// OpenAI-compatible endpoint. Requests are authorized with OAuth2 tokens
// minted from service-account credentials.
package vertex

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/openai/openai-go/v2/option"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"

	"github.com/agent0/runner/internal/adapter/openaichat"
	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/domain/provider"
	"github.com/agent0/runner/internal/port/llm"
)

const scope = "https://www.googleapis.com/auth/cloud-platform"

// ServiceAccount holds the service-account key fields used to sign tokens.
type ServiceAccount struct {
	ClientEmail  string `json:"clientEmail"`
	PrivateKey   string `json:"privateKey"`
	PrivateKeyID string `json:"privateKeyId,omitempty"`
}

// Settings is the decrypted credential shape of a google-vertex provider.
// Without GoogleCredentials or AccessToken, application default
// credentials of the host are used.
type Settings struct {
	Project           string            `json:"project"`
	Location          string            `json:"location"`
	GoogleCredentials *ServiceAccount   `json:"googleCredentials,omitempty"`
	AccessToken       string            `json:"accessToken,omitempty"`
	BaseURL           string            `json:"baseURL,omitempty"`
	Headers           map[string]string `json:"headers,omitempty"`
}

// Endpoint returns the OpenAI-compatible endpoint of the project location.
func (s Settings) Endpoint() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	host := s.Location + "-aiplatform.googleapis.com"
	if s.Location == "global" {
		host = "aiplatform.googleapis.com"
	}
	return fmt.Sprintf("https://%s/v1/projects/%s/locations/%s/endpoints/openapi", host, s.Project, s.Location)
}

func (s Settings) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	switch {
	case s.AccessToken != "":
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: s.AccessToken}), nil
	case s.GoogleCredentials != nil:
		sa := s.GoogleCredentials
		if sa.ClientEmail == "" || sa.PrivateKey == "" {
			return nil, fmt.Errorf("%w: %s: googleCredentials needs clientEmail and privateKey", domain.ErrMalformedConfig, provider.TypeGoogleVertex)
		}
		cfg := &jwt.Config{
			Email:        sa.ClientEmail,
			PrivateKey:   []byte(strings.ReplaceAll(sa.PrivateKey, `\n`, "\n")),
			PrivateKeyID: sa.PrivateKeyID,
			Scopes:       []string{scope},
			TokenURL:     google.JWTTokenURL,
		}
		return cfg.TokenSource(ctx), nil
	default:
		return &defaultSource{ctx: ctx}, nil
	}
}

// findDefault locates application default credentials.
var findDefault = google.DefaultTokenSource

// defaultSource looks up application default credentials when the first
// token is needed, so a host without them fails the run that uses Vertex
// rather than the provider build. A failed lookup is retried on the next
// call.
type defaultSource struct {
	ctx context.Context
	mu  sync.Mutex
	ts  oauth2.TokenSource
}

func (d *defaultSource) Token() (*oauth2.Token, error) {
	d.mu.Lock()
	if d.ts == nil {
		ts, err := findDefault(d.ctx, scope)
		if err != nil {
			d.mu.Unlock()
			return nil, fmt.Errorf("%w: %s: no credentials configured: %w", domain.ErrMalformedConfig, provider.TypeGoogleVertex, err)
		}
		d.ts = ts
	}
	ts := d.ts
	d.mu.Unlock()
	return ts.Token()
}

func init() {
	llm.Register(provider.TypeGoogleVertex, New)
}

// New builds a Vertex AI provider from its settings.
func New(config json.RawMessage) (llm.Provider, error) {
	var s Settings
	if err := openaichat.DecodeSettings(provider.TypeGoogleVertex, config, &s); err != nil {
		return nil, err
	}
	if err := openaichat.Required(provider.TypeGoogleVertex, "project", s.Project); err != nil {
		return nil, err
	}
	if err := openaichat.Required(provider.TypeGoogleVertex, "location", s.Location); err != nil {
		return nil, err
	}
	if err := openaichat.BaseURL(provider.TypeGoogleVertex, s.BaseURL); err != nil {
		return nil, err
	}

	// Token refreshes outlive any single request.
	ctx := context.Background()
	ts, err := s.tokenSource(ctx)
	if err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithHTTPClient(oauth2.NewClient(ctx, ts)),
		option.WithBaseURL(s.Endpoint()),
	}
	opts = append(opts, openaichat.HeaderOptions(s.Headers)...)

	inner := openaichat.New(openaichat.Config{
		Vendor:          provider.TypeGoogleVertex,
		Options:         opts,
		Tuning:          openaichat.GoogleThinking(func(o *agent.ProviderOptions) *agent.GoogleOptions { return o.Vertex }),
		LegacyMaxTokens: true,
	})
	return &Provider{inner: inner}, nil
}

// Provider qualifies bare Gemini model names with the publisher prefix the
// Vertex endpoint expects.
type Provider struct {
	inner *openaichat.Provider
}

func (p *Provider) Type() provider.Type { return provider.TypeGoogleVertex }

// Model returns a handle for name, turning "gemini-2.5-flash" into
// "google/gemini-2.5-flash".
func (p *Provider) Model(name string) (llm.Model, error) {
	if name != "" && !strings.Contains(name, "/") {
		name = "google/" + name
	}
	return p.inner.Model(name)
}
