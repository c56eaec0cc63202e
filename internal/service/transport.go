package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/agent0/runner/internal/port/eventsink"
)

// Pump forwards the events of rs to sink in order and closes the sink once
// the run has been recorded. A failed write means the caller is gone: the
// run is cancelled, still recorded, and the write error returned. Otherwise
// the run failure, if any, is returned after it was sent inline.
func Pump(ctx context.Context, rs *RunStream, sink eventsink.Sink) error {
	var once sync.Once
	closeSink := func(err error) {
		once.Do(func() {
			if cerr := sink.Close(err); cerr != nil {
				slog.DebugContext(ctx, "sink close failed", "run_id", rs.RunID(), "error", cerr)
			}
		})
	}

	for ev := range rs.Events() {
		if err := sink.Send(ctx, ev); err != nil {
			slog.InfoContext(ctx, "caller went away, cancelling run", "run_id", rs.RunID(), "error", err)
			rs.Cancel()
			rs.Wait()
			closeSink(err)
			return err
		}
	}

	out := rs.Wait()
	closeSink(out.Err)
	return out.Err
}
