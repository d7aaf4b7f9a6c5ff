package selfheal

import (
	"testing"
	"time"
)

func TestWatchdogNotExpiredRightAfterKick(t *testing.T) {
	w := NewWatchdog(30 * time.Second)
	if w.Expired() {
		t.Error("Expired() = true immediately after construction, want false")
	}
}

func TestWatchdogExpiresAfterTimeout(t *testing.T) {
	clock := time.Now()
	w := NewWatchdog(30 * time.Second)
	w.now = func() time.Time { return clock }
	w.Kick()

	clock = clock.Add(31 * time.Second)
	if !w.Expired() {
		t.Error("Expired() = false after timeout elapsed, want true")
	}
}

func TestWatchdogKickResetsTimer(t *testing.T) {
	clock := time.Now()
	w := NewWatchdog(30 * time.Second)
	w.now = func() time.Time { return clock }
	w.Kick()

	clock = clock.Add(20 * time.Second)
	w.Kick()
	clock = clock.Add(20 * time.Second)
	if w.Expired() {
		t.Error("Expired() = true, want false since last Kick was only 20s ago")
	}
}
