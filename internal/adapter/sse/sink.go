// Package sse implements the event sink and reader for Server-Sent Events.
//
// Every event is one frame: the literal prefix "data: ", the event's JSON
// encoding and a terminating "\r\n\r\n".
package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/agent0/runner/internal/domain/event"
	"github.com/agent0/runner/internal/port/eventsink"
)

const (
	framePrefix = "data: "
	frameEnd    = "\r\n\r\n"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("sse: sink closed")

// Sink writes events to an HTTP response as SSE frames.
type Sink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
	closed  bool
}

var _ eventsink.Sink = (*Sink)(nil)

// NewSink wraps w. Headers are written lazily with the first frame so that
// a failure before any event can still be answered with a JSON error.
func NewSink(w http.ResponseWriter) *Sink {
	return &Sink{w: w, rc: http.NewResponseController(w)}
}

// Started reports whether any frame has been written.
func (s *Sink) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Sink) start() {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	// Long generations must not hit the server's WriteTimeout.
	_ = s.rc.SetWriteDeadline(time.Time{})
	s.started = true
}

// Send writes one frame and flushes it.
func (s *Sink) Send(_ context.Context, ev event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("sse: encode %s: %w", ev.Type, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !s.started {
		s.start()
	}

	buf := make([]byte, 0, len(framePrefix)+len(data)+len(frameEnd))
	buf = append(buf, framePrefix...)
	buf = append(buf, data...)
	buf = append(buf, frameEnd...)
	if _, err := s.w.Write(buf); err != nil {
		return fmt.Errorf("sse: write: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("sse: flush: %w", err)
	}
	return nil
}

// Close ends the stream. SSE has no close frame; the terminal error event,
// if any, was already sent. Close is idempotent.
func (s *Sink) Close(error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.started {
		s.start()
	}
	return nil
}
