package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/agent0/runner/internal/config"
)

func TestNew(t *testing.T) {
	cfg := config.Logging{Level: "debug", Service: "test-svc"}
	l, closer := New(cfg)
	defer closer.Close()
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewAsync(t *testing.T) {
	cfg := config.Logging{Level: "debug", Service: "test-svc", Async: true}
	l, closer := New(cfg)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	closer.Close()
}

func TestContextIDsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	l, closer := newWithWriter(config.Logging{Level: "info", Service: "runner"}, &buf)
	defer closer.Close()

	ctx := WithRunID(WithRequestID(context.Background(), "req-1"), "run-1")
	l.InfoContext(ctx, "run recorded")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec["service"] != "runner" || rec["request_id"] != "req-1" || rec["run_id"] != "run-1" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input).String()
			if got != tt.want {
				t.Errorf("parseLevel(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()

	// Empty context returns empty string
	if got := RequestID(ctx); got != "" {
		t.Errorf("expected empty request ID, got %q", got)
	}

	// Set and retrieve
	ctx = WithRequestID(ctx, "req-123")
	if got := RequestID(ctx); got != "req-123" {
		t.Errorf("expected req-123, got %q", got)
	}
	if got := RunID(ctx); got != "" {
		t.Errorf("expected empty run ID, got %q", got)
	}
}
