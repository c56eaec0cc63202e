package sse

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/event"
)

func TestSink_FrameFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	s := NewSink(rec)
	ctx := context.Background()

	if s.Started() {
		t.Fatal("no frame written yet")
	}
	if err := s.Send(ctx, event.NewStart()); err != nil {
		t.Fatal(err)
	}
	if err := s.Send(ctx, event.NewTextDelta("t1", `say "hi"`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(nil); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := s.Send(ctx, event.NewAbort()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Send after Close: %v", err)
	}

	want := "data: {\"type\":\"start\"}\r\n\r\n" +
		"data: {\"type\":\"text-delta\",\"id\":\"t1\",\"text\":\"say \\\"hi\\\"\"}\r\n\r\n"
	if got := rec.Body.String(); got != want {
		t.Fatalf("body =\n%q\nwant\n%q", got, want)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if !rec.Flushed {
		t.Fatal("frames must be flushed")
	}
}

func TestReader_RoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	s := NewSink(rec)
	events := []event.Event{
		event.NewStart(),
		event.NewStartStep(nil),
		event.NewTextStart("t"),
		event.NewTextDelta("t", "line one\nline two"),
		event.NewFinish("stop", event.Usage{TotalTokens: 3}),
	}
	for _, ev := range events {
		if err := s.Send(context.Background(), ev); err != nil {
			t.Fatal(err)
		}
	}

	r := NewReader(rec.Body)
	var got []event.Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, ev)
	}
	if len(got) != len(events) {
		t.Fatalf("got %d events", len(got))
	}
	if got[3].Text != "line one\nline two" || got[4].TotalUsage.TotalTokens != 3 {
		t.Fatalf("unexpected events %+v", got)
	}
}

func TestReader_Tolerance(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []event.Type
		wantErr error
	}{
		{"lf only", "data: {\"type\":\"start\"}\n\n", []event.Type{event.Start}, nil},
		{"comments and other fields", ":keepalive\n\nevent: x\ndata:{\"type\":\"finish\"}\n\n", []event.Type{event.Finish}, nil},
		{"unterminated last frame", "data: {\"type\":\"abort\"}", []event.Type{event.Abort}, nil},
		{"bad json", "data: {oops\r\n\r\n", nil, domain.ErrMalformedStream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.in))
			var got []event.Type
			for {
				ev, err := r.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					if tt.wantErr == nil || !errors.Is(err, tt.wantErr) {
						t.Fatalf("unexpected error %v", err)
					}
					return
				}
				got = append(got, ev.Type)
			}
			if tt.wantErr != nil {
				t.Fatalf("expected %v", tt.wantErr)
			}
			if len(got) != len(tt.want) || (len(got) > 0 && got[0] != tt.want[0]) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
