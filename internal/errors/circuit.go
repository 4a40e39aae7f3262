package errors

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Guard while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the position of a CircuitBreaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	// StateHalfOpen admits probes once the cooldown has elapsed.
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// CircuitBreaker stops calling a vector backend after consecutive failures
// and lets a probe through once the cooldown has passed.
type CircuitBreaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	clock     func() time.Time

	mu       sync.Mutex
	tripped  bool
	streak   int
	openedAt time.Time
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithMaxFailures sets the consecutive failures that open the breaker.
func WithMaxFailures(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.threshold = n
		}
	}
}

// WithResetTimeout sets the cooldown before a half-open probe.
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) { cb.cooldown = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CircuitBreakerOption {
	return func(cb *CircuitBreaker) { cb.clock = now }
}

// NewCircuitBreaker returns a closed breaker that opens after 5 failures
// and probes again after 30s unless options say otherwise.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{name: name, threshold: 5, cooldown: 30 * time.Second, clock: time.Now}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

func (cb *CircuitBreaker) Name() string { return cb.name }

// State reports the breaker position at the current clock.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

func (cb *CircuitBreaker) stateLocked() State {
	switch {
	case !cb.tripped:
		return StateClosed
	case cb.clock().Sub(cb.openedAt) > cb.cooldown:
		return StateHalfOpen
	default:
		return StateOpen
	}
}

// Failures is the current run of consecutive failures.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.streak
}

// Allow reports whether a call may go through.
func (cb *CircuitBreaker) Allow() bool {
	return cb.State() != StateOpen
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	cb.tripped, cb.streak = false, 0
	cb.mu.Unlock()
}

// RecordFailure extends the failure streak. Reaching the threshold, or
// failing a half-open probe, (re)opens the breaker.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	probing := cb.stateLocked() == StateHalfOpen
	cb.streak++
	if probing || cb.streak >= cb.threshold {
		cb.tripped = true
		cb.openedAt = cb.clock()
	}
}

// Guard calls fn unless the breaker is open and records the outcome.
func Guard[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	if !cb.Allow() {
		var zero T
		return zero, ErrCircuitOpen
	}
	v, err := fn()
	if err != nil {
		cb.RecordFailure()
		return v, err
	}
	cb.RecordSuccess()
	return v, nil
}
