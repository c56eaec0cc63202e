package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	cfotel "github.com/agent0/runner/internal/adapter/otel"
	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/run"
	"github.com/agent0/runner/internal/port/messagequeue"
)

// RunStore persists run records. Inserting an id that already exists is a
// no-op.
type RunStore interface {
	CreateRun(ctx context.Context, r *run.Run) error
}

// RecordInput is everything known about a concluded run attempt.
type RecordInput struct {
	// RunID is generated when empty.
	RunID       string
	WorkspaceID string
	VersionID   string
	Data        run.Data
	StartTime   time.Time
	IsError     bool
	IsTest      bool
}

// RunRecorder writes exactly one immutable record per run attempt.
type RunRecorder struct {
	store   RunStore
	queue   messagequeue.Queue
	metrics *cfotel.Metrics
}

// NewRunRecorder creates a RunRecorder. queue and metrics may be nil.
func NewRunRecorder(store RunStore, queue messagequeue.Queue, metrics *cfotel.Metrics) *RunRecorder {
	return &RunRecorder{store: store, queue: queue, metrics: metrics}
}

// Record inserts the run. It is detached from the caller's cancellation so
// a disconnected client still gets its run written. A failed insert is
// logged, counted and handed to the queue for replay; the returned error
// wraps domain.ErrPersistence and is informational only.
func (r *RunRecorder) Record(ctx context.Context, in RecordInput) error {
	ctx = context.WithoutCancel(ctx)

	id := in.RunID
	if id == "" {
		id = uuid.NewString()
	}
	rec := &run.Run{
		ID:          id,
		WorkspaceID: in.WorkspaceID,
		VersionID:   in.VersionID,
		CreatedAt:   in.StartTime,
		IsError:     in.IsError,
		IsTest:      in.IsTest,
		Data:        in.Data,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	if err := r.store.CreateRun(ctx, rec); err != nil {
		err = fmt.Errorf("%w: insert run %s: %w", domain.ErrPersistence, id, err)
		slog.ErrorContext(ctx, "run record not written", "run_id", id, "version_id", in.VersionID, "error", err)
		r.metrics.PersistenceFailed(ctx)
		r.publish(ctx, messagequeue.SubjectRunFailed, messagequeue.RunFailedPayload{Run: *rec, Error: err.Error()})
		return err
	}

	r.metrics.RunRecorded(ctx, rec)
	r.publish(ctx, messagequeue.SubjectRunRecorded, recordedPayload(rec))
	return nil
}

func recordedPayload(rec *run.Run) messagequeue.RunRecordedPayload {
	p := messagequeue.RunRecordedPayload{
		RunID:       rec.ID,
		WorkspaceID: rec.WorkspaceID,
		VersionID:   rec.VersionID,
		IsError:     rec.IsError,
		ResponseMS:  rec.Data.Metrics.ResponseTime,
	}
	if rec.Data.Error != nil {
		p.ErrorName = rec.Data.Error.Name
	}
	return p
}

// publish is best effort: a missing or failing queue never affects a run.
func (r *RunRecorder) publish(ctx context.Context, subject string, payload any) {
	if r.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal run notification", "subject", subject, "error", err)
		return
	}
	if err := r.queue.Publish(ctx, subject, data); err != nil {
		slog.WarnContext(ctx, "publish run notification", "subject", subject, "error", err)
	}
}
