package control

import "testing"

func TestPeakShavingIdleBelowTrigger(t *testing.T) {
	p := NewPeakShavingController(100, 0.9, 20, 50)
	action, power, _ := p.Decide(80, 60)
	if action != "IDLE" || power != 0 {
		t.Errorf("got %s %.1f, want IDLE 0", action, power)
	}
}

func TestPeakShavingDischargesAboveLimit(t *testing.T) {
	p := NewPeakShavingController(100, 0.9, 20, 50)
	action, power, _ := p.Decide(130, 60)
	if action != "DISCHARGE" || power != 30 {
		t.Errorf("got %s %.1f, want DISCHARGE 30", action, power)
	}
}

func TestPeakShavingClampsToMaxDischarge(t *testing.T) {
	p := NewPeakShavingController(100, 0.9, 20, 20)
	action, power, _ := p.Decide(200, 60)
	if action != "DISCHARGE" || power != 20 {
		t.Errorf("got %s %.1f, want DISCHARGE 20 (clamped)", action, power)
	}
}

func TestPeakShavingInhibitedBelowMinSOC(t *testing.T) {
	p := NewPeakShavingController(100, 0.9, 20, 50)
	action, _, _ := p.Decide(150, 15)
	if action != "IDLE" {
		t.Errorf("got %s, want IDLE (SOC below reserve)", action)
	}
}

func TestPeakShavingEngagesAtTriggerPercent(t *testing.T) {
	// trigger = 0.9 * 100 = 90, below the 100 demand_limit_kw itself.
	p := NewPeakShavingController(100, 0.9, 20, 50)
	action, _, _ := p.Decide(91, 60)
	if action != "DISCHARGE" {
		t.Errorf("expected to engage at trigger_percent of the limit, got %s", action)
	}
}

func TestPeakShavingReleaseLatch(t *testing.T) {
	p := NewPeakShavingController(100, 0.9, 20, 50)
	// trigger = 90, release = 0.7*90 = 63.
	if action, _, _ := p.Decide(110, 60); action != "DISCHARGE" {
		t.Fatalf("expected to latch active, got %s", action)
	}
	// Demand drops back below the limit but still above the release threshold:
	// should remain active (chatter prevention).
	if action, _, _ := p.Decide(70, 60); action != "DISCHARGE" {
		t.Errorf("expected to stay latched above release threshold, got %s", action)
	}
	// Now below 0.7*trigger: should release.
	if action, _, _ := p.Decide(55, 60); action != "IDLE" {
		t.Errorf("expected to release below 0.7*trigger, got %s", action)
	}
}
