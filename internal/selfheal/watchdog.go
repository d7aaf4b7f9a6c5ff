package selfheal

import (
	"sync"
	"time"
)

// Watchdog detects a stalled control loop. The loop calls Kick once per
// cycle; if Expired isn't observed within the timeout, the caller is
// expected to force safe mode and attempt recovery.
type Watchdog struct {
	mu      sync.Mutex
	timeout time.Duration
	last    time.Time
	now     func() time.Time
}

// NewWatchdog builds a watchdog with the given timeout, already kicked.
func NewWatchdog(timeout time.Duration) *Watchdog {
	w := &Watchdog{timeout: timeout, now: time.Now}
	w.last = w.now()
	return w
}

// Kick records that the control loop completed a cycle.
func (w *Watchdog) Kick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = w.now()
}

// Expired reports whether the watchdog has gone longer than its timeout
// since the last Kick.
func (w *Watchdog) Expired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.now().Sub(w.last) > w.timeout
}

// SinceLastKick returns how long it has been since the last Kick.
func (w *Watchdog) SinceLastKick() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.now().Sub(w.last)
}
