package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var ErrOpen = errors.New("circuit breaker is open")

// CircuitBreaker trips after maxFailures failures inside a sliding window
// and refuses calls until a cooldown passes. The first call after the
// cooldown probes the dependency (half-open); one more failure reopens it.
type CircuitBreaker struct {
	name        string
	maxFailures int
	window      time.Duration
	cooldown    time.Duration

	mu          sync.Mutex
	state       State
	failures    []time.Time
	lastFailure time.Time
}

func New(name string, maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return NewWithWindow(name, maxFailures, cooldown, 60*time.Second)
}

func NewWithWindow(name string, maxFailures int, cooldown, window time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		window:      window,
		cooldown:    cooldown,
		state:       StateClosed,
	}
}

// Call runs fn unless the breaker is open. ErrOpen is returned without
// invoking fn when the cooldown has not elapsed yet.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if time.Since(cb.lastFailure) < cb.cooldown {
			cb.mu.Unlock()
			return ErrOpen
		}
		cb.state = StateHalfOpen
		cb.failures = cb.failures[:0]
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	if err != nil {
		cb.lastFailure = now
		cb.failures = append(cb.failures, now)
		cb.dropExpired(now)
		if len(cb.failures) > cb.maxFailures || cb.state == StateHalfOpen {
			cb.state = StateOpen
		}
		return err
	}

	cb.dropExpired(now)
	if cb.state == StateHalfOpen {
		cb.state = StateClosed
		cb.failures = cb.failures[:0]
	}
	return nil
}

func (cb *CircuitBreaker) dropExpired(now time.Time) {
	cutoff := now.Add(-cb.window)
	kept := cb.failures[:0]
	for _, t := range cb.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	cb.failures = kept
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
