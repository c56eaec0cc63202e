package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/run"
	"github.com/agent0/runner/internal/port/messagequeue"
)

func TestRecordIndependentRuns(t *testing.T) {
	store := newFakeStore()
	rec := NewRunRecorder(store, nil, nil)
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for range 2 {
		err := rec.Record(context.Background(), RecordInput{
			WorkspaceID: "w1",
			VersionID:   "v1",
			StartTime:   start,
			Data:        run.Data{Metrics: run.Metrics{ResponseTime: 10}},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	runs := store.recorded()
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID == runs[1].ID || runs[0].ID == "" {
		t.Fatalf("run ids must be distinct: %q %q", runs[0].ID, runs[1].ID)
	}
	if !runs[0].CreatedAt.Equal(start) {
		t.Errorf("created_at = %v, want start time", runs[0].CreatedAt)
	}
}

func TestRecordSurvivesCancelledContext(t *testing.T) {
	store := newFakeStore()
	rec := NewRunRecorder(store, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rec.Record(ctx, RecordInput{RunID: "r1", WorkspaceID: "w1", VersionID: "v1"}); err != nil {
		t.Fatal(err)
	}
	if len(store.recorded()) != 1 {
		t.Fatal("expected run to be written despite cancellation")
	}
}

func TestRecordPersistenceFailure(t *testing.T) {
	store := newFakeStore()
	store.runErr = errors.New("connection refused")
	queue := newFakeQueue()
	rec := NewRunRecorder(store, queue, nil)

	err := rec.Record(context.Background(), RecordInput{RunID: "r1", WorkspaceID: "w1", VersionID: "v1", IsError: true})
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if queue.count(messagequeue.SubjectRunFailed) != 1 || queue.count(messagequeue.SubjectRunRecorded) != 0 {
		t.Fatalf("published = %v", queue.published)
	}
	var p messagequeue.RunFailedPayload
	if err := json.Unmarshal(queue.published[messagequeue.SubjectRunFailed][0], &p); err != nil {
		t.Fatal(err)
	}
	if p.Run.ID != "r1" || !p.Run.IsError {
		t.Fatalf("payload = %+v", p)
	}
}

func TestReplayRunFailed(t *testing.T) {
	store := newFakeStore()
	queue := newFakeQueue()
	svc := NewReplayService(store, queue)
	if _, err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	data, _ := json.Marshal(messagequeue.RunFailedPayload{Run: run.Run{ID: "r1", WorkspaceID: "w1", VersionID: "v1"}, Error: "boom"})
	h := queue.handlers[messagequeue.SubjectRunFailed]
	for range 2 {
		if err := h(context.Background(), messagequeue.SubjectRunFailed, data); err != nil {
			t.Fatal(err)
		}
	}
	if len(store.recorded()) != 1 {
		t.Fatalf("redelivery must not duplicate the run, got %d", len(store.recorded()))
	}
	if queue.count(messagequeue.SubjectRunRecorded) != 2 {
		t.Fatalf("expected a notification per delivery, got %d", queue.count(messagequeue.SubjectRunRecorded))
	}

	store.runErr = errors.New("still down")
	err := h(context.Background(), messagequeue.SubjectRunFailed, data)
	if err == nil || errors.Is(err, messagequeue.ErrPermanent) {
		t.Fatalf("expected a retryable error, got %v", err)
	}
}

func TestReplayRejectedRecordIsPermanent(t *testing.T) {
	store := newFakeStore()
	store.runErr = fmt.Errorf("create run r1: %w: unsupported Unicode escape sequence", domain.ErrValidation)
	svc := NewReplayService(store, newFakeQueue())

	err := svc.HandleRunFailed(context.Background(), &messagequeue.RunFailedPayload{Run: run.Run{ID: "r1"}, Error: "boom"})
	if !errors.Is(err, messagequeue.ErrPermanent) {
		t.Fatalf("expected ErrPermanent, got %v", err)
	}
}
