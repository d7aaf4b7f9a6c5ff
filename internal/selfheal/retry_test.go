package selfheal

import (
	"testing"
	"time"
)

func TestRetryScheduleWalksSequence(t *testing.T) {
	r := NewRetrySchedule([]int{5, 15, 60})
	want := []time.Duration{5 * time.Second, 15 * time.Second, 60 * time.Second}
	for i, w := range want {
		if got := r.Next(); got != w {
			t.Errorf("Next() #%d = %v, want %v", i, got, w)
		}
	}
}

func TestRetryScheduleHoldsAtLastDelay(t *testing.T) {
	r := NewRetrySchedule([]int{5, 15, 60})
	r.Next()
	r.Next()
	r.Next()
	if got := r.Next(); got != 60*time.Second {
		t.Errorf("Next() past schedule end = %v, want 60s", got)
	}
}

func TestRetryScheduleResets(t *testing.T) {
	r := NewRetrySchedule([]int{5, 15, 60})
	r.Next()
	r.Next()
	r.Reset()
	if got := r.Next(); got != 5*time.Second {
		t.Errorf("Next() after Reset = %v, want 5s", got)
	}
	if r.Attempts() != 1 {
		t.Errorf("Attempts() = %d, want 1", r.Attempts())
	}
}

func TestRetryScheduleEmptyDefaultsTo5s(t *testing.T) {
	r := NewRetrySchedule(nil)
	if got := r.Next(); got != 5*time.Second {
		t.Errorf("Next() on empty schedule = %v, want 5s default", got)
	}
}
