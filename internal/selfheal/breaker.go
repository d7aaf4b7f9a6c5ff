// Package selfheal watches the external dependencies a running controller
// depends on — the field bus, the cloud broker, host memory and disk — and
// reacts when one of them degrades: tripping a circuit breaker, driving a
// bounded retry/backoff schedule, or forcing the decision engine into safe
// mode via the software watchdog.
package selfheal

import (
	"sync"
	"time"
)

// CBState is the state of a CircuitBreaker.
type CBState int

const (
	CBClosed CBState = iota
	CBOpen
	CBHalfOpen
)

func (s CBState) String() string {
	switch s {
	case CBOpen:
		return "open"
	case CBHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// BreakerConfig controls trip/reset behavior.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	ResetTimeout     time.Duration // time in OPEN before trying HALF_OPEN
	HalfOpenMax      int           // trial calls allowed in HALF_OPEN
}

// DefaultBreakerConfig matches the field bus's "three strikes" tolerance.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     30 * time.Second,
		HalfOpenMax:      1,
	}
}

// CircuitBreaker guards a single downstream dependency (field bus link or
// cloud broker). Call Allow before attempting an operation; report the
// outcome with RecordSuccess or RecordFailure.
type CircuitBreaker struct {
	mu sync.Mutex

	cfg BreakerConfig
	now func() time.Time

	state       CBState
	failures    int
	halfOpenOK  int
	openedAt    time.Time
}

// NewCircuitBreaker constructs a breaker in the closed state.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, now: time.Now, state: CBClosed}
}

// Allow reports whether a call to the guarded dependency should proceed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CBClosed:
		return true
	case CBOpen:
		if b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
			b.state = CBHalfOpen
			b.halfOpenOK = 0
			return true
		}
		return false
	case CBHalfOpen:
		return b.halfOpenOK < b.cfg.HalfOpenMax
	default:
		return true
	}
}

// RecordSuccess reports a successful call.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CBHalfOpen:
		b.halfOpenOK++
		if b.halfOpenOK >= b.cfg.HalfOpenMax {
			b.state = CBClosed
			b.failures = 0
		}
	case CBClosed:
		b.failures = 0
	}
}

// RecordFailure reports a failed call.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CBHalfOpen:
		b.state = CBOpen
		b.openedAt = b.now()
	case CBClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = CBOpen
			b.openedAt = b.now()
		}
	}
}

// State returns the current breaker state, resolving an OPEN->HALF_OPEN
// transition if the reset timeout has elapsed.
func (b *CircuitBreaker) State() CBState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == CBOpen && b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		return CBHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to closed, clearing failure history.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = CBClosed
	b.failures = 0
	b.halfOpenOK = 0
}
