package messagequeue

import "github.com/agent0/runner/internal/domain/run"

// RunRecordedPayload is the schema for runs.recorded messages.
type RunRecordedPayload struct {
	RunID       string `json:"run_id"`
	WorkspaceID string `json:"workspace_id"`
	VersionID   string `json:"version_id"`
	IsError     bool   `json:"is_error"`
	IsTest      bool   `json:"is_test"`
	ErrorName   string `json:"error_name,omitempty"`
	ResponseMS  int64  `json:"response_ms"`
}

// RunFailedPayload is the schema for runs.failed messages. It carries the
// complete record so the insert can be replayed.
type RunFailedPayload struct {
	Run   run.Run `json:"run"`
	Error string  `json:"error"`
}
