package run

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/agent0/runner/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("provider p1: %w", domain.ErrNotFound), NameNotFound},
		{fmt.Errorf("wrap: %w", domain.ErrDecryption), NameDecryption},
		{fmt.Errorf("%w: bad", domain.ErrMalformedConfig), NameMalformedConfig},
		{fmt.Errorf("%w: unknown-vendor", domain.ErrUnsupportedProvider), NameUnsupportedProvider},
		{fmt.Errorf("%w: 503", domain.ErrGeneration), NameGeneration},
		{context.DeadlineExceeded, NameGeneration},
		{context.Canceled, NameCancelled},
		{errors.New("boom"), NameInternal},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			info := Classify(tt.err)
			if info.Name != tt.want {
				t.Errorf("Classify(%v).Name = %s, want %s", tt.err, info.Name, tt.want)
			}
			if info.Message != tt.err.Error() {
				t.Errorf("message = %q", info.Message)
			}
		})
	}
	if Classify(nil) != nil {
		t.Fatal("Classify(nil) must be nil")
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(ms int) { c.t = c.t.Add(time.Duration(ms) * time.Millisecond) }

func TestStopwatch(t *testing.T) {
	c := &fakeClock{t: time.Unix(1000, 0)}
	sw := newStopwatch(c.now)

	c.advance(20)
	sw.Invoked()
	c.advance(150)
	sw.FirstToken()
	c.advance(5)
	sw.FirstToken()
	c.advance(300)
	sw.Done()

	want := Metrics{PreProcessingTime: 20, FirstTokenTime: 150, ResponseTime: 455}
	if got := sw.Metrics(); got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if !sw.Start().Equal(time.Unix(1000, 0)) {
		t.Fatalf("start = %v", sw.Start())
	}
}

func TestStopwatchFailureBeforeInvoke(t *testing.T) {
	c := &fakeClock{t: time.Unix(0, 0)}
	sw := newStopwatch(c.now)
	c.advance(7)
	sw.Done()

	want := Metrics{PreProcessingTime: 7}
	if got := sw.Metrics(); got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
