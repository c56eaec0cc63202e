// Package gotrue provides a client for the auth provider's admin API.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/resilience"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 << 10

// User is the subset of the auth provider's user object the runner needs.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Client talks to the GoTrue admin API.
type Client struct {
	baseURL    string
	serviceKey string
	redirectTo string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates an admin client. baseURL is the project URL without
// the /auth/v1 suffix.
func NewClient(baseURL, serviceKey, redirectTo string, transport http.RoundTripper) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		redirectTo: redirectTo,
		httpClient: &http.Client{Timeout: 10 * time.Second, Transport: transport},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls. Client
// errors (4xx) do not count as failures.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b.WithNeutral(func(err error) bool {
		var se *StatusError
		return errors.As(err, &se) && se.Code < 500
	})
}

// StatusError is a non-2xx answer of the admin API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("auth admin api: status %d: %s", e.Code, e.Body)
}

// InviteUserByEmail sends an invitation mail and returns the created user.
// An address the provider rejects (for example one already registered) is
// reported as domain.ErrValidation.
func (c *Client) InviteUserByEmail(ctx context.Context, email string) (*User, error) {
	body, err := json.Marshal(map[string]any{"email": email})
	if err != nil {
		return nil, fmt.Errorf("marshal invite: %w", err)
	}

	path := "/auth/v1/invite"
	if c.redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(c.redirectTo)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.Code == http.StatusBadRequest || se.Code == http.StatusUnprocessableEntity) {
			return nil, fmt.Errorf("%w: invite rejected: %s", domain.ErrValidation, se.Body)
		}
		return nil, fmt.Errorf("invite user: %w", err)
	}

	var u User
	if err := json.Unmarshal(resp, &u); err != nil {
		return nil, fmt.Errorf("unmarshal invited user: %w", err)
	}
	if u.ID == "" {
		return nil, errors.New("invite user: response carries no user id")
	}
	return &u, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("apikey", c.serviceKey)
		req.Header.Set("Authorization", "Bearer "+c.serviceKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		}
		result, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}
	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
