package selfheal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Check is a single named health check with an optional recovery action,
// run on every tick of a Checker.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status is the outcome of the most recent run of one Check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs a fixed set of checks on a ticker, attempting recovery for
// any check that fails, and exposes the latest status snapshot for the
// status API and heartbeat payload.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
}

// NewChecker builds a Checker from the given checks, ticking at interval.
func NewChecker(interval time.Duration, checks []Check) *Checker {
	return &Checker{interval: interval, checks: checks}
}

// Run starts the check loop, running once immediately, until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{Name: check.Name, CheckedAt: time.Now()}
		if err := check.CheckFn(ctx); err != nil {
			s.Healthy = false
			s.Error = err.Error()
			if check.RecoverFn != nil {
				_ = check.RecoverFn(ctx)
			}
		} else {
			s.Healthy = true
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Status, len(c.statuses))
	copy(out, c.statuses)
	return out
}

// IsHealthy reports whether every check last passed. An empty status set
// (no run yet) is considered healthy.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// FieldBusCheck builds the "field_bus" check: ping succeeds only while the
// breaker allows calls and the probe itself succeeds. It sets no RecoverFn:
// the breaker moves itself from open to half-open on the first Allow call
// after its reset timeout, so no explicit action is needed beyond reporting.
func FieldBusCheck(breaker *CircuitBreaker, ping func(ctx context.Context) error) Check {
	return Check{
		Name: "field_bus",
		CheckFn: func(ctx context.Context) error {
			if !breaker.Allow() {
				return fmt.Errorf("field bus circuit breaker open")
			}
			if err := ping(ctx); err != nil {
				breaker.RecordFailure()
				return err
			}
			breaker.RecordSuccess()
			return nil
		},
	}
}

// MQTTCheck builds the "mqtt" check against a connection predicate, driving
// reconnect through the supplied function on failure.
func MQTTCheck(isConnected func() bool, reconnect func(ctx context.Context) error) Check {
	return Check{
		Name: "mqtt",
		CheckFn: func(ctx context.Context) error {
			if isConnected() {
				return nil
			}
			return fmt.Errorf("not connected to broker")
		},
		RecoverFn: reconnect,
	}
}

// ResourceCheck builds a "memory" or "disk" check against a reader and
// thresholds. It fails (not just warns) at the critical threshold only,
// so warning-level pressure shows up in Statuses without flipping
// IsHealthy.
func ResourceCheck(name string, read func() float64, t ResourceThresholds) Check {
	return Check{
		Name: name,
		CheckFn: func(ctx context.Context) error {
			pct := read()
			if Classify(pct, t) == ResourceCritical {
				return fmt.Errorf("%s at %.1f%%, critical threshold %.1f%%", name, pct, t.CriticalPercent)
			}
			return nil
		},
	}
}
