package run

import (
	"sync"
	"time"
)

// Stopwatch captures the three run latencies. Marks after the first are
// ignored, so it is safe to call them from every exit path.
type Stopwatch struct {
	mu      sync.Mutex
	now     func() time.Time
	start   time.Time
	invoke  time.Time
	first   time.Time
	respond time.Time
}

// NewStopwatch starts measuring at the current time.
func NewStopwatch() *Stopwatch {
	return newStopwatch(time.Now)
}

func newStopwatch(now func() time.Time) *Stopwatch {
	return &Stopwatch{now: now, start: now()}
}

// Start returns the request start time.
func (s *Stopwatch) Start() time.Time { return s.start }

// Invoked marks the moment the backend is called.
func (s *Stopwatch) Invoked() { s.mark(&s.invoke) }

// FirstToken marks the first content event.
func (s *Stopwatch) FirstToken() { s.mark(&s.first) }

// Done marks the terminal event.
func (s *Stopwatch) Done() { s.mark(&s.respond) }

func (s *Stopwatch) mark(t *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.IsZero() {
		*t = s.now()
	}
}

// Metrics returns the latencies. Phases that never happened report 0.
func (s *Stopwatch) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	var m Metrics
	if s.invoke.IsZero() {
		if !s.respond.IsZero() {
			m.PreProcessingTime = ms(s.respond.Sub(s.start))
		}
		return m
	}
	m.PreProcessingTime = ms(s.invoke.Sub(s.start))
	if !s.first.IsZero() {
		m.FirstTokenTime = ms(s.first.Sub(s.invoke))
	}
	if !s.respond.IsZero() {
		m.ResponseTime = ms(s.respond.Sub(s.invoke))
	}
	return m
}

func ms(d time.Duration) int64 { return d.Milliseconds() }
