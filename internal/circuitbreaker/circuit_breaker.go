// Package circuitbreaker implements the circuit breaker pattern used to shed
// calls to failing price sources.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state
type State string

const (
	// StateClosed means the circuit is closed and requests are allowed
	StateClosed State = "closed"
	// StateOpen means the circuit is open and requests are blocked
	StateOpen State = "open"
	// StateHalfOpen means the circuit is testing if the service has recovered
	StateHalfOpen State = "half_open"
)

// ErrOpen is returned by Allow when the circuit is open.
var ErrOpen = errors.New("circuit breaker is open")

// CircuitBreaker trips after a run of consecutive failures and, after a
// cooldown, lets a single probe call through before closing again.
type CircuitBreaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration

	mu               sync.Mutex
	state            State
	consecutiveFails int
	lastFailureTime  time.Time
}

// New creates a circuit breaker that opens after maxFailures consecutive
// failures and stays open for cooldown.
func New(name string, maxFailures int, cooldown time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		state:       StateClosed,
	}
}

// Name returns the breaker's name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Allow reports whether a call may proceed. In the open state it returns
// ErrOpen until the cooldown elapses, then admits one half-open probe.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastFailureTime) < cb.cooldown {
			return ErrOpen
		}
		cb.state = StateHalfOpen
	}
	return nil
}

// RecordSuccess closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.state = StateClosed
}

// RecordFailure counts a failure, opening the circuit when the threshold is
// reached or when a half-open probe fails.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailureTime = time.Now()
	if cb.state == StateHalfOpen || cb.consecutiveFails >= cb.maxFailures {
		cb.state = StateOpen
	}
}

// CurrentState returns the breaker state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
