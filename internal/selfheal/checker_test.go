package selfheal

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCheckerRunAllMarksHealthyAndUnhealthy(t *testing.T) {
	recovered := false
	checks := []Check{
		{Name: "ok", CheckFn: func(ctx context.Context) error { return nil }},
		{
			Name:      "bad",
			CheckFn:   func(ctx context.Context) error { return errors.New("boom") },
			RecoverFn: func(ctx context.Context) error { recovered = true; return nil },
		},
	}
	c := NewChecker(time.Hour, checks)
	c.runAll(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("Statuses() len = %d, want 2", len(statuses))
	}
	if !statuses[0].Healthy {
		t.Error("ok check reported unhealthy")
	}
	if statuses[1].Healthy || statuses[1].Error == "" {
		t.Error("bad check should be unhealthy with an error message")
	}
	if !recovered {
		t.Error("RecoverFn was not invoked for the failing check")
	}
	if c.IsHealthy() {
		t.Error("IsHealthy() = true, want false with one failing check")
	}
}

func TestCheckerIsHealthyBeforeFirstRun(t *testing.T) {
	c := NewChecker(time.Hour, nil)
	if !c.IsHealthy() {
		t.Error("IsHealthy() = false before any run, want true (no checks yet)")
	}
}

func TestFieldBusCheckRespectsBreaker(t *testing.T) {
	breaker := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute, HalfOpenMax: 1})
	pingErr := errors.New("timeout")
	check := FieldBusCheck(breaker, func(ctx context.Context) error { return pingErr })

	if err := check.CheckFn(context.Background()); err == nil {
		t.Fatal("CheckFn() = nil, want ping error")
	}
	if breaker.State() != CBOpen {
		t.Fatalf("breaker state = %v, want open after one failure (threshold 1)", breaker.State())
	}
	if err := check.CheckFn(context.Background()); err == nil {
		t.Fatal("CheckFn() with breaker open = nil, want breaker-open error")
	}
}

func TestMQTTCheckTriggersReconnect(t *testing.T) {
	reconnected := false
	check := MQTTCheck(
		func() bool { return false },
		func(ctx context.Context) error { reconnected = true; return nil },
	)
	if err := check.CheckFn(context.Background()); err == nil {
		t.Fatal("CheckFn() = nil while disconnected, want error")
	}
	_ = check.RecoverFn(context.Background())
	if !reconnected {
		t.Error("RecoverFn did not invoke reconnect")
	}
}

func TestResourceCheckFailsOnlyAtCritical(t *testing.T) {
	th := ResourceThresholds{WarnPercent: 80, CriticalPercent: 90}
	warn := ResourceCheck("memory", func() float64 { return 85 }, th)
	if err := warn.CheckFn(context.Background()); err != nil {
		t.Errorf("CheckFn() at warning level = %v, want nil (warning doesn't fail the check)", err)
	}
	crit := ResourceCheck("memory", func() float64 { return 95 }, th)
	if err := crit.CheckFn(context.Background()); err == nil {
		t.Error("CheckFn() at critical level = nil, want error")
	}
}
