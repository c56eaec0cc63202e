package messagequeue

import (
	"strings"
	"testing"
)

func TestValidateValidRunRecorded(t *testing.T) {
	data := []byte(`{"run_id":"r1","workspace_id":"w1","version_id":"v1","is_error":false,"is_test":true,"response_ms":120}`)
	if err := Validate(SubjectRunRecorded, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateValidRunFailed(t *testing.T) {
	data := []byte(`{"run":{"id":"r1","workspace_id":"w1","version_id":"v1","created_at":"2025-01-01T00:00:00Z","is_error":true,"is_test":false,"data":{"metrics":{"preProcessingTime":1,"firstTokenTime":0,"responseTime":0},"flags":{}}},"error":"insert failed"}`)
	if err := Validate(SubjectRunFailed, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRunFailedWithoutRunID(t *testing.T) {
	err := Validate(SubjectRunFailed, []byte(`{"run":{},"error":"insert failed"}`))
	if err == nil || !strings.Contains(err.Error(), "run.id") {
		t.Fatalf("expected missing run.id error, got %v", err)
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	data := []byte(`{"foo":"bar"}`)
	if err := Validate("unknown.subject", data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	err := Validate(SubjectRunRecorded, []byte(`{not valid json`))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestValidateWrongFieldType(t *testing.T) {
	err := Validate(SubjectRunRecorded, []byte(`{"run_id":42}`))
	if err == nil {
		t.Fatal("expected schema validation error")
	}
	if !strings.Contains(err.Error(), "schema validation failed") {
		t.Fatalf("unexpected error message: %v", err)
	}
}
