// Package safety implements the edge controller's safety evaluator. It
// never touches I/O and never blocks: given a telemetry snapshot and a
// threshold table it returns a single SafetyVerdict. The daemon is
// responsible for executing the verdict's action against the field bus.
package safety

import "github.com/lifo4/edge-controller/internal/domain"

// Thresholds is the evaluator's configuration, sourced from
// daemon.Config.Safety and overridable per device. Each hysteresis margin
// is the distance the opposing condition must clear past its threshold
// before a latched violation is allowed to release — without it, a reading
// sitting right at a boundary would flap the verdict every cycle.
type Thresholds struct {
	CellVoltageMinV float64
	CellVoltageMaxV float64
	PackTempMaxC    float64
	PackCurrentMaxA float64
	SOCMinPercent   float64
	SOCMaxPercent   float64

	CellVoltageHysteresisV float64
	PackTempHysteresisC    float64
	PackCurrentHysteresisA float64
	SOCHysteresisPercent   float64
}

// checkFn evaluates one parameter against the threshold table. latched is
// whether this check's violation was active on the previous call; the
// returned bool is whether it is still (or now) active after this reading.
type checkFn func(s domain.TelemetrySnapshot, t Thresholds, latched bool) (domain.SafetyVerdict, bool)

type namedCheck struct {
	name string
	fn   checkFn
}

// Evaluator checks telemetry against a fixed threshold table in a fixed
// order, folding every violation found in one cycle into the single worst
// verdict — only one action can be sent to the field bus per cycle. It
// keeps a latch per parameter across calls so severity only reduces once
// the reading has cleared the hysteresis band, not the instant it crosses
// back over the bare threshold.
type Evaluator struct {
	thresholds Thresholds
	latched    map[string]bool
}

// New creates an Evaluator bound to the given thresholds.
func New(t Thresholds) *Evaluator {
	return &Evaluator{thresholds: t, latched: make(map[string]bool)}
}

// Check evaluates one telemetry snapshot. A zero-value TelemetrySnapshot
// (the zero-value sentinel for "no telemetry yet") returns ErrNoTelemetry.
func (e *Evaluator) Check(s domain.TelemetrySnapshot) (domain.SafetyVerdict, error) {
	if s.CapturedAt.IsZero() {
		return domain.SafetyVerdict{}, domain.ErrNoTelemetry
	}
	if !s.Valid() {
		return domain.SafetyVerdict{
			Severity: domain.SeverityEmergency,
			Action:   domain.ActionEmergencyStop,
			Reason:   "telemetry snapshot contains a non-finite reading",
		}, nil
	}

	verdict := domain.SafetyVerdict{Severity: domain.SeverityNone, Action: domain.ActionNone}

	for _, c := range e.checks() {
		v, stillLatched := c.fn(s, e.thresholds, e.latched[c.name])
		e.latched[c.name] = stillLatched
		if v.Worse(verdict) {
			verdict = v
		}
	}
	return verdict, nil
}

// checks returns the fixed evaluation order. Order does not affect the
// final verdict (Worse always wins) but is kept stable for log readability.
func (e *Evaluator) checks() []namedCheck {
	return []namedCheck{
		{"cell_voltage", checkCellVoltage},
		{"pack_temp", checkPackTemp},
		{"pack_current", checkPackCurrent},
		{"soc", checkSOC},
	}
}

func checkCellVoltage(s domain.TelemetrySnapshot, t Thresholds, latched bool) (domain.SafetyVerdict, bool) {
	overMax := s.CellVoltageMax > t.CellVoltageMaxV
	underMin := s.CellVoltageMin < t.CellVoltageMinV
	if latched {
		overMax = overMax || s.CellVoltageMax > t.CellVoltageMaxV-t.CellVoltageHysteresisV
		underMin = underMin || s.CellVoltageMin < t.CellVoltageMinV+t.CellVoltageHysteresisV
	}
	switch {
	case overMax:
		return domain.SafetyVerdict{
			Severity: domain.SeverityEmergency, Action: domain.ActionEmergencyStop,
			Reason: "cell voltage above maximum", Violation: "cell_voltage_max",
		}, true
	case underMin:
		return domain.SafetyVerdict{
			Severity: domain.SeverityEmergency, Action: domain.ActionEmergencyStop,
			Reason: "cell voltage below minimum", Violation: "cell_voltage_min",
		}, true
	}
	return domain.SafetyVerdict{}, false
}

func checkPackTemp(s domain.TelemetrySnapshot, t Thresholds, latched bool) (domain.SafetyVerdict, bool) {
	over := s.TempMax > t.PackTempMaxC
	if latched {
		over = over || s.TempMax > t.PackTempMaxC-t.PackTempHysteresisC
	}
	if over {
		return domain.SafetyVerdict{
			Severity: domain.SeverityCritical, Action: domain.ActionStopAll,
			Reason: "pack temperature above maximum", Violation: "temp_max",
		}, true
	}
	return domain.SafetyVerdict{}, false
}

func checkPackCurrent(s domain.TelemetrySnapshot, t Thresholds, latched bool) (domain.SafetyVerdict, bool) {
	over := abs(s.Current) > t.PackCurrentMaxA
	if latched {
		over = over || abs(s.Current) > t.PackCurrentMaxA-t.PackCurrentHysteresisA
	}
	if over {
		return domain.SafetyVerdict{
			Severity: domain.SeverityCritical, Action: domain.ActionStopAll,
			Reason: "pack current above maximum", Violation: "pack_current_max",
		}, true
	}
	return domain.SafetyVerdict{}, false
}

// checkSOC resolves to two distinct actions depending on which bound was
// crossed, so the field bus can act in the direction that caused the
// violation instead of a single ambiguous stop. The two sides share one
// latch since they can never be active at once.
func checkSOC(s domain.TelemetrySnapshot, t Thresholds, latched bool) (domain.SafetyVerdict, bool) {
	overMax := s.SOC > t.SOCMaxPercent
	underMin := s.SOC < t.SOCMinPercent
	if latched {
		overMax = overMax || s.SOC > t.SOCMaxPercent-t.SOCHysteresisPercent
		underMin = underMin || s.SOC < t.SOCMinPercent+t.SOCHysteresisPercent
	}
	switch {
	case overMax:
		return domain.SafetyVerdict{
			Severity: domain.SeverityWarning, Action: domain.ActionStopCharge,
			Reason: "state of charge above maximum", Violation: "soc_max",
		}, true
	case underMin:
		return domain.SafetyVerdict{
			Severity: domain.SeverityWarning, Action: domain.ActionStopDischarge,
			Reason: "state of charge below minimum", Violation: "soc_min",
		}, true
	}
	return domain.SafetyVerdict{}, false
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
