package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/event"
)

type request struct {
	AgentID string `json:"agent_id"`
}

// echoServer reads one request and answers with a text delta carrying the
// agent id, then closes with failErr.
func echoServer(t *testing.T, failErr error) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Accept(w, r, nil)
		if err != nil {
			t.Errorf("Accept: %v", err)
			return
		}
		var req request
		if err := ReadRequest(r.Context(), conn, &req); err != nil {
			t.Errorf("ReadRequest: %v", err)
			return
		}
		sink := NewSink(conn)
		_ = sink.Send(r.Context(), event.NewTextDelta("t", req.AgentID))
		_ = sink.Close(failErr)
		_ = sink.Close(failErr)
	}))
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return conn
}

func TestSink_SendsEventsAndClosesNormally(t *testing.T) {
	srv := echoServer(t, nil)
	defer srv.Close()
	conn := dial(t, srv)
	ctx := context.Background()

	if err := wsjson.Write(ctx, conn, request{AgentID: "a1"}); err != nil {
		t.Fatal(err)
	}
	var ev event.Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != event.TextDelta || ev.Text != "a1" {
		t.Fatalf("unexpected event %+v", ev)
	}
	_, _, err := conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		t.Fatalf("expected normal closure, got %v", err)
	}
}

func TestSink_CloseWithRunError(t *testing.T) {
	srv := echoServer(t, fmt.Errorf("vendor: %w", domain.ErrGeneration))
	defer srv.Close()
	conn := dial(t, srv)
	ctx := context.Background()

	if err := wsjson.Write(ctx, conn, request{AgentID: "a1"}); err != nil {
		t.Fatal(err)
	}
	var ev event.Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatal(err)
	}
	_, _, err := conn.Read(ctx)
	var ce websocket.CloseError
	if !errors.As(err, &ce) {
		t.Fatalf("expected close error, got %v", err)
	}
	if ce.Code != websocket.StatusInternalError || ce.Reason != "GenerationError" {
		t.Fatalf("close = %d %q", ce.Code, ce.Reason)
	}
}
