// Package resilience provides reliability patterns for external service calls.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// Breaker implements a circuit breaker pattern for protecting external calls.
// It tracks consecutive failures and opens the circuit when a threshold is reached,
// preventing further calls until a timeout elapses.
type Breaker struct {
	mu          sync.Mutex
	state       state
	failures    int
	maxFailures int
	timeout     time.Duration
	openedAt    time.Time
	neutral     func(error) bool
	now         func() time.Time // for testing
}

// NewBreaker creates a circuit breaker that opens after maxFailures consecutive
// failures and stays open for the given timeout before transitioning to half-open.
func NewBreaker(maxFailures int, timeout time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		timeout:     timeout,
		now:         time.Now,
	}
}

// WithNeutral marks errors that say nothing about the remote service's
// health (for example a rejected request). They are returned to the
// caller without counting as failures.
func (b *Breaker) WithNeutral(fn func(error) bool) *Breaker {
	b.neutral = fn
	return b
}

// Execute runs fn if the circuit is closed or half-open.
// Returns ErrCircuitOpen if the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allowRequest() {
		return ErrCircuitOpen
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil && (b.neutral == nil || !b.neutral(err)) {
		b.onFailure()
		return err
	}

	b.onSuccess()
	return err
}

// ExecuteContext is Execute for context-aware calls. A context that is
// already done is returned without calling fn or touching the breaker.
func (b *Breaker) ExecuteContext(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.Execute(func() error { return fn(ctx) })
}

// Open reports whether the breaker is currently rejecting calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateOpen && b.now().Sub(b.openedAt) < b.timeout
}

func (b *Breaker) allowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if b.now().Sub(b.openedAt) >= b.timeout {
			b.state = stateHalfOpen
			return true
		}
		return false
	case stateHalfOpen:
		return true
	}
	return false
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure() {
	b.failures++
	if b.state == stateHalfOpen || b.failures >= b.maxFailures {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess() {
	b.failures = 0
	b.state = stateClosed
}
