package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/port/messagequeue"
)

// ReplayService re-inserts run records whose first write failed. The queue
// redelivers a message until the insert succeeds or its retries run out.
type ReplayService struct {
	store RunStore
	queue messagequeue.Queue
}

// NewReplayService creates a new ReplayService.
func NewReplayService(store RunStore, queue messagequeue.Queue) *ReplayService {
	return &ReplayService{store: store, queue: queue}
}

// Start subscribes to runs.failed. The returned function cancels the
// subscription.
func (s *ReplayService) Start(ctx context.Context) (func(), error) {
	cancel, err := s.queue.Subscribe(ctx, messagequeue.SubjectRunFailed, func(msgCtx context.Context, _ string, data []byte) error {
		var payload messagequeue.RunFailedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("unmarshal run failed: %w", err)
		}
		return s.HandleRunFailed(msgCtx, &payload)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe run failed: %w", err)
	}
	return cancel, nil
}

// HandleRunFailed inserts the carried record. Records that made it in
// meanwhile are skipped by the store, so redelivery is harmless.
func (s *ReplayService) HandleRunFailed(ctx context.Context, p *messagequeue.RunFailedPayload) error {
	rec := p.Run
	if err := s.store.CreateRun(ctx, &rec); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return fmt.Errorf("%w: replay run %s: %w", messagequeue.ErrPermanent, rec.ID, err)
		}
		return fmt.Errorf("replay run %s: %w", rec.ID, err)
	}
	slog.InfoContext(ctx, "run record replayed", "run_id", rec.ID, "first_error", p.Error)

	data, err := json.Marshal(recordedPayload(&rec))
	if err != nil {
		return nil
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectRunRecorded, data); err != nil {
		slog.WarnContext(ctx, "publish run notification", "subject", messagequeue.SubjectRunRecorded, "error", err)
	}
	return nil
}
