// Package ws implements the WebSocket transport for run event streams.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/agent0/runner/internal/domain/event"
	"github.com/agent0/runner/internal/domain/run"
	"github.com/agent0/runner/internal/port/eventsink"
)

// maxRequestBytes bounds the first client message (the run request).
const maxRequestBytes = 1 << 20

// maxReasonBytes is the close-frame reason limit of RFC 6455.
const maxReasonBytes = 123

// Accept upgrades the request. origins lists the allowed Origin host
// patterns; an empty list accepts any origin (CORS is handled by middleware).
func Accept(w http.ResponseWriter, r *http.Request, origins []string) (*websocket.Conn, error) {
	opts := &websocket.AcceptOptions{OriginPatterns: origins}
	if len(origins) == 0 {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return nil, fmt.Errorf("websocket accept: %w", err)
	}
	conn.SetReadLimit(maxRequestBytes)
	return conn, nil
}

// ReadRequest decodes the first client message into v.
func ReadRequest(ctx context.Context, conn *websocket.Conn, v any) error {
	if err := wsjson.Read(ctx, conn, v); err != nil {
		return fmt.Errorf("read run request: %w", err)
	}
	return nil
}

// Sink writes one text message per event.
type Sink struct {
	conn      *websocket.Conn
	mu        sync.Mutex
	closeOnce sync.Once
}

var _ eventsink.Sink = (*Sink)(nil)

// NewSink wraps an accepted connection. The sink owns the connection.
func NewSink(conn *websocket.Conn) *Sink {
	return &Sink{conn: conn}
}

// Send writes ev as one JSON text message.
func (s *Sink) Send(ctx context.Context, ev event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("ws: encode %s: %w", ev.Type, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("ws: write: %w", err)
	}
	return nil
}

// Close sends the close frame. A run failure closes with StatusInternalError
// and the error's taxonomy name as reason. Close is idempotent.
func (s *Sink) Close(err error) error {
	s.closeOnce.Do(func() {
		code, reason := websocket.StatusNormalClosure, ""
		if err != nil {
			code, reason = websocket.StatusInternalError, run.Name(err)
			if len(reason) > maxReasonBytes {
				reason = reason[:maxReasonBytes]
			}
		}
		cerr := s.conn.Close(code, reason)
		if cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			slog.Debug("websocket close failed", "error", cerr)
		}
	})
	return nil
}
