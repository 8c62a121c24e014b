// Package circuitbreaker stops calling a failing dependency for a cool-down
// period after too many consecutive failures.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned without calling the dependency while the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

type Settings struct {
	Name string
	// MaxFailures consecutive failures open the breaker.
	MaxFailures int
	// Timeout is how long the breaker stays open before letting a trial call through.
	Timeout time.Duration
	// IsFailure decides which errors count. Nil counts every error.
	IsFailure func(error) bool
	// OnStateChange is called with the lock held; it must not call back into
	// the breaker.
	OnStateChange func(name string, from, to State)
	Now           func() time.Time
}

type CircuitBreaker struct {
	settings Settings

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	if settings.MaxFailures <= 0 {
		settings.MaxFailures = 5
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	return &CircuitBreaker{settings: settings, state: StateClosed}
}

// State reports the current state, moving an expired open breaker to half-open.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.expire()
	return cb.state
}

// Execute runs fn unless the breaker is open. Only one trial call runs while the
// breaker is half-open; concurrent calls get ErrOpen.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.expire()
	switch cb.state {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if cb.probing {
			return ErrOpen
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if err != nil && cb.counts(err) {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.settings.MaxFailures {
			cb.openedAt = cb.settings.Now()
			cb.setState(StateOpen)
		}
		return
	}
	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.setState(StateClosed)
	}
}

func (cb *CircuitBreaker) counts(err error) bool {
	if cb.settings.IsFailure == nil {
		return true
	}
	return cb.settings.IsFailure(err)
}

func (cb *CircuitBreaker) expire() {
	if cb.state == StateOpen && cb.settings.Now().Sub(cb.openedAt) >= cb.settings.Timeout {
		cb.setState(StateHalfOpen)
	}
}

func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.settings.OnStateChange != nil {
		cb.settings.OnStateChange(cb.settings.Name, from, to)
	}
}
