// Package run defines the persisted record of one agent execution attempt.
package run

import (
	"context"
	"errors"
	"time"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/agent"
	"github.com/agent0/runner/internal/domain/message"
	"github.com/agent0/runner/internal/domain/transcript"
)

// Run is an immutable record written once after a run concludes.
type Run struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	VersionID   string    `json:"version_id"`
	CreatedAt   time.Time `json:"created_at"`
	IsError     bool      `json:"is_error"`
	IsTest      bool      `json:"is_test"`
	Data        Data      `json:"data"`
}

// Request is the effective configuration a run executed with.
type Request struct {
	agent.VersionData
	Stream    bool             `json:"stream"`
	Overrides *agent.Overrides `json:"overrides,omitempty"`
}

// Metrics holds the run latencies in milliseconds.
type Metrics struct {
	PreProcessingTime int64 `json:"preProcessingTime"`
	FirstTokenTime    int64 `json:"firstTokenTime"`
	ResponseTime      int64 `json:"responseTime"`
}

// ErrorInfo is the serializable form of a run failure.
type ErrorInfo struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Data is the JSON document stored with a run.
type Data struct {
	Request *Request          `json:"request,omitempty"`
	Steps   []transcript.Step `json:"steps,omitempty"`
	Error   *ErrorInfo        `json:"error,omitempty"`
	Metrics Metrics           `json:"metrics"`
	Flags   transcript.Flags  `json:"flags"`
}

// Result is what a run returns to its caller.
type Result struct {
	Messages []message.Message `json:"messages"`
	Text     string            `json:"text"`
}

// Names of the failure taxonomy, as reported to callers and stored in runs.
const (
	NameNotFound            = "NotFound"
	NameValidation          = "ValidationError"
	NameDecryption          = "DecryptionError"
	NameMalformedConfig     = "MalformedConfig"
	NameUnsupportedProvider = "UnsupportedProvider"
	NameGeneration          = "GenerationError"
	NameMalformedStream     = "MalformedStream"
	NameIncompleteToolCall  = "IncompleteToolCall"
	NameIncompleteStream    = "IncompleteStream"
	NamePersistence         = "PersistenceError"
	NameCancelled           = "Cancelled"
	NameInternal            = "InternalError"
)

var taxonomy = []struct {
	err  error
	name string
}{
	{domain.ErrNotFound, NameNotFound},
	{domain.ErrValidation, NameValidation},
	{domain.ErrDecryption, NameDecryption},
	{domain.ErrMalformedConfig, NameMalformedConfig},
	{domain.ErrUnsupportedProvider, NameUnsupportedProvider},
	{domain.ErrGeneration, NameGeneration},
	{domain.ErrMalformedStream, NameMalformedStream},
	{domain.ErrIncompleteToolCall, NameIncompleteToolCall},
	{domain.ErrIncompleteStream, NameIncompleteStream},
	{domain.ErrPersistence, NamePersistence},
	{context.Canceled, NameCancelled},
	{context.DeadlineExceeded, NameGeneration},
}

// Name returns the taxonomy name for err.
func Name(err error) string {
	for _, t := range taxonomy {
		if errors.Is(err, t.err) {
			return t.name
		}
	}
	return NameInternal
}

// Classify converts err into its stored form. A nil error yields nil.
func Classify(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	return &ErrorInfo{Name: Name(err), Message: err.Error()}
}
