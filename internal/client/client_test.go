package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agent0/runner/internal/adapter/sse"
	"github.com/agent0/runner/internal/client"
	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/event"
	"github.com/agent0/runner/internal/domain/message"
	"github.com/agent0/runner/internal/domain/run"
)

func textRun(text string) []event.Event {
	return []event.Event{
		event.NewStart(),
		event.NewStartStep(nil),
		event.NewTextStart("t1"),
		event.NewTextDelta("t1", text),
		event.NewTextEnd("t1"),
		event.NewFinishStep("stop", event.Usage{}),
		event.NewFinish("stop", event.Usage{}),
	}
}

// server answers run requests by streaming events, or with the whole result
// when the request does not ask for a stream.
func server(t *testing.T, events []event.Event, check func(body map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/run" || r.Header.Get("Authorization") != "Bearer a0k_test" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"name": "Unauthorized", "message": "invalid api key"}})
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if check != nil {
			check(body)
		}
		w.Header().Set("X-Run-ID", "run-1")
		if stream, _ := body["stream"].(bool); !stream {
			_ = json.NewEncoder(w).Encode(run.Result{
				Messages: []message.Message{message.Assistant(message.Text("hello"))},
				Text:     "hello",
			})
			return
		}
		sink := sse.NewSink(w)
		for _, ev := range events {
			if err := sink.Send(r.Context(), ev); err != nil {
				return
			}
		}
		_ = sink.Close(nil)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRun(t *testing.T) {
	srv := server(t, nil, func(body map[string]any) {
		if body["agent_id"] != "a1" || body["stream"] != false {
			t.Errorf("body = %v", body)
		}
	})
	c := client.New(srv.URL+"/", "a0k_test")

	res, err := c.Run(context.Background(), client.RunRequest{AgentID: "a1"})
	if err != nil {
		t.Fatal(err)
	}
	if res.RunID != "run-1" || res.Text != "hello" || len(res.Messages) != 1 {
		t.Fatalf("response = %+v", res)
	}
}

func TestStreamReconstructs(t *testing.T) {
	srv := server(t, textRun("streamed"), nil)
	c := client.New(srv.URL, "a0k_test")

	var seen []event.Type
	res, err := c.Stream(context.Background(), client.RunRequest{AgentID: "a1", Variables: map[string]string{"x": "1"}}, func(ev event.Event) error {
		seen = append(seen, ev.Type)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Text() != "streamed" || res.RunID != "run-1" || res.Events != 7 {
		t.Fatalf("result = %+v", res)
	}
	if len(seen) != 7 || seen[0] != event.Start || seen[6] != event.Finish {
		t.Fatalf("events = %v", seen)
	}
	if res.Flags.IncompleteStream {
		t.Fatal("complete stream flagged as incomplete")
	}
}

func TestStreamErrorFrame(t *testing.T) {
	events := textRun("partial")[:4]
	events = append(events, event.NewError(run.NameGeneration, errors.New("vendor exploded")))
	srv := server(t, events, nil)
	c := client.New(srv.URL, "a0k_test")

	res, err := c.Stream(context.Background(), client.RunRequest{AgentID: "a1"}, nil)
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if res == nil || res.Text() != "partial" {
		t.Fatalf("partial transcript lost: %+v", res)
	}
}

func TestStreamTruncated(t *testing.T) {
	srv := server(t, textRun("cut")[:4], nil)
	c := client.New(srv.URL, "a0k_test")

	res, err := c.Stream(context.Background(), client.RunRequest{AgentID: "a1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Flags.IncompleteStream || res.Text() != "cut" {
		t.Fatalf("result = %+v", res)
	}
}

func TestStreamMalformed(t *testing.T) {
	srv := server(t, []event.Event{
		event.NewStartStep(nil),
		event.NewTextDelta("t1", "orphan"),
		event.NewFinish("stop", event.Usage{}),
	}, nil)
	c := client.New(srv.URL, "a0k_test")

	res, err := c.Stream(context.Background(), client.RunRequest{AgentID: "a1"}, nil)
	if !errors.Is(err, domain.ErrMalformedStream) {
		t.Fatalf("expected malformed stream error, got %v", err)
	}
	if res == nil || !res.Flags.MalformedStream {
		t.Fatalf("result not flagged: %+v", res)
	}
	if !errors.Is(res.Flags.Err(), domain.ErrMalformedStream) {
		t.Fatalf("Flags.Err() = %v", res.Flags.Err())
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv := server(t, nil, nil)
	c := client.New(srv.URL, "a0k_wrong")

	_, err := c.Run(context.Background(), client.RunRequest{AgentID: "a1"})
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Name != "Unauthorized" {
		t.Fatalf("error = %+v", apiErr)
	}
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatal("expected to match ErrUnauthorized")
	}
}

func TestStreamCallbackStops(t *testing.T) {
	srv := server(t, textRun("stop early"), nil)
	c := client.New(srv.URL, "a0k_test")
	stop := errors.New("enough")

	_, err := c.Stream(context.Background(), client.RunRequest{AgentID: "a1"}, func(ev event.Event) error {
		if ev.Type == event.TextDelta {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
}
