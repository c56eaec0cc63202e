// Package client is a Go client for the runner's run endpoint. Streamed runs
// are reconstructed into messages locally, the same way the server records
// them.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/agent0/runner/internal/adapter/sse"
	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/domain/event"
	"github.com/agent0/runner/internal/domain/message"
	"github.com/agent0/runner/internal/domain/run"
	"github.com/agent0/runner/internal/domain/transcript"
	"github.com/agent0/runner/internal/resilience"
)

const runPath = "/api/v1/run"

// RunRequest selects an agent deployment and the per-run inputs.
type RunRequest struct {
	AgentID string `json:"agent_id"`
	// Environment is production or staging. Empty means production.
	Environment   string            `json:"environment,omitempty"`
	Variables     map[string]string `json:"variables,omitempty"`
	Overrides     *agent.Overrides  `json:"overrides,omitempty"`
	ExtraMessages []message.Message `json:"extraMessages,omitempty"`
}

type runBody struct {
	RunRequest
	Stream bool `json:"stream"`
}

// Response is the outcome of a non-streamed run.
type Response struct {
	RunID string
	run.Result
}

// StreamResult is the outcome of a streamed run.
type StreamResult struct {
	RunID  string
	Events int
	transcript.Result
}

// APIError is an error envelope returned by the server.
type APIError struct {
	Status  int    `json:"-"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("runner: %d %s: %s", e.Status, e.Name, e.Message)
}

// Client calls the run endpoint with a workspace API key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// New creates a Client. Streamed runs may last long, so the HTTP client has
// no overall timeout; bound calls with the context instead.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Transport: http.DefaultTransport},
	}
}

// SetTransport replaces the HTTP transport, e.g. to add tracing.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.httpClient.Transport = rt
}

// SetBreaker attaches a circuit breaker to run calls. Error envelopes below
// 500 do not count as failures.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b.WithNeutral(func(err error) bool {
		var apiErr *APIError
		return errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError
	})
}

// Run executes a run and waits for the whole result.
func (c *Client) Run(ctx context.Context, req RunRequest) (*Response, error) {
	var out *Response
	err := c.execute(ctx, func(ctx context.Context) error {
		resp, err := c.post(ctx, runBody{RunRequest: req})
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var res run.Result
		if err := json.NewDecoder(io.LimitReader(resp.Body, 32<<20)).Decode(&res); err != nil {
			return fmt.Errorf("decode run result: %w", err)
		}
		out = &Response{RunID: resp.Header.Get("X-Run-ID"), Result: res}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stream executes a run as an event stream. onEvent, when set, sees every
// event in order; returning an error stops reading and cancels the run.
// The reconstructed transcript is returned even when the run failed, with
// the failure carried by the error event as the returned error. Events that
// break reconstruction set Flags.MalformedStream and, absent a run failure,
// are returned as an error wrapping domain.ErrMalformedStream.
func (c *Client) Stream(ctx context.Context, req RunRequest, onEvent func(event.Event) error) (*StreamResult, error) {
	var out *StreamResult
	err := c.execute(ctx, func(ctx context.Context) error {
		resp, err := c.post(ctx, runBody{RunRequest: req, Stream: true})
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		out, err = read(resp, onEvent)
		return err
	})
	return out, err
}

func read(resp *http.Response, onEvent func(event.Event) error) (*StreamResult, error) {
	rec := transcript.New()
	out := &StreamResult{RunID: resp.Header.Get("X-Run-ID")}
	var failure *event.ErrorPayload
	var malformed []error

	r := sse.NewReader(resp.Body)
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			out.Result = rec.Result()
			return out, err
		}
		out.Events++
		if err := rec.Feed(ev); err != nil {
			malformed = append(malformed, err)
		}
		if ev.Type == event.Error {
			failure = ev.Error
		}
		if onEvent != nil {
			if err := onEvent(ev); err != nil {
				out.Result = rec.Result()
				return out, err
			}
		}
	}

	out.Result = rec.Result()
	if failure != nil {
		return out, &APIError{Status: http.StatusOK, Name: failure.Name, Message: failure.Message}
	}
	return out, errors.Join(malformed...)
}

func (c *Client) execute(ctx context.Context, fn func(context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.ExecuteContext(ctx, fn)
}

func (c *Client) post(ctx context.Context, body runBody) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal run request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+runPath, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post run: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, decodeError(resp)
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env struct {
		Error APIError `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil || env.Error.Name == "" {
		return &APIError{Status: resp.StatusCode, Name: http.StatusText(resp.StatusCode), Message: strings.TrimSpace(string(data))}
	}
	env.Error.Status = resp.StatusCode
	return &env.Error
}

// Is lets errors.Is match an APIError against the domain sentinels by name.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrNotFound:
		return e.Name == run.NameNotFound
	case domain.ErrValidation:
		return e.Name == run.NameValidation
	case domain.ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case domain.ErrForbidden:
		return e.Status == http.StatusForbidden
	case domain.ErrUnsupportedProvider:
		return e.Name == run.NameUnsupportedProvider
	case domain.ErrDecryption:
		return e.Name == run.NameDecryption
	case domain.ErrGeneration:
		return e.Name == run.NameGeneration
	}
	return false
}
