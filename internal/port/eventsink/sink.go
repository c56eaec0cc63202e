// Package eventsink defines the port for delivering run events to a caller.
package eventsink

import (
	"context"

	"github.com/agent0/runner/internal/domain/event"
)

// Sink writes events to one caller connection in order.
type Sink interface {
	// Send writes one event and flushes it. An error means the caller is gone.
	Send(ctx context.Context, ev event.Event) error

	// Close ends the stream. err is the run failure, if any, for transports
	// that can report it in their close frame. Close must be idempotent.
	Close(err error) error
}
