// Package control implements the edge controller's sub-controllers
// (arbitrage, peak shaving, solar self-consumption, black start/grid code)
// and the decision engine that arbitrates between them in fixed priority
// order: SAFETY (handled upstream by the safety evaluator) > GRID_CODE >
// CONTRACTUAL > ECONOMIC > LONGEVITY.
package control

import (
	"time"

	"github.com/lifo4/edge-controller/internal/domain"
)

// EngineMode tracks cloud connectivity: ONLINE executes cloud setpoints,
// AUTONOMOUS falls back to local algorithms once the cloud has been
// unreachable past CloudTimeout, SAFE_MODE is forced externally by the
// daemon on an unrecoverable error.
type EngineMode string

const (
	ModeOnline     EngineMode = "online"
	ModeAutonomous EngineMode = "autonomous"
	ModeSafe       EngineMode = "safe_mode"
)

// CloudSetpoint is the most recent power command received over MQTT.
type CloudSetpoint struct {
	Action  string
	PowerKW float64
	Reason  string
}

// Limits bounds the battery's usable power envelope.
type Limits struct {
	MaxChargeKW    float64
	MaxDischargeKW float64
	SafeModeMinSOC float64
	SafeModeMaxSOC float64
}

// Engine arbitrates between sub-controllers to produce one Decision per
// optimization cycle.
type Engine struct {
	mode             EngineMode
	lastCloudContact time.Time
	cloudTimeout     time.Duration
	limits           Limits

	blackStart *BlackStartController
	peakShave  *PeakShavingController
	arbitrage  *ArbitrageController
	solar      *SolarSelfConsumptionController

	cloudSetpoint    *CloudSetpoint
	solarForecastKW  map[int]float64
}

// NewEngine wires the four sub-controllers behind one Engine, starting in
// ONLINE mode (the daemon has not yet timed out waiting on the cloud).
func NewEngine(limits Limits, peakShave *PeakShavingController, arbitrage *ArbitrageController, solar *SolarSelfConsumptionController, cloudTimeout time.Duration) *Engine {
	return &Engine{
		mode:             ModeOnline,
		lastCloudContact: time.Now(),
		cloudTimeout:     cloudTimeout,
		limits:           limits,
		blackStart:       NewBlackStartController(),
		peakShave:        peakShave,
		arbitrage:        arbitrage,
		solar:            solar,
		solarForecastKW:  make(map[int]float64),
	}
}

// Mode returns the engine's current operating mode.
func (e *Engine) Mode() EngineMode {
	return e.mode
}

// GridState returns the black-start controller's current state without
// advancing it.
func (e *Engine) GridState() GridState {
	return e.blackStart.State()
}

// ReceiveCloudCommand records a setpoint pushed from the cloud and restores
// ONLINE mode.
func (e *Engine) ReceiveCloudCommand(setpoint CloudSetpoint) {
	e.lastCloudContact = time.Now()
	e.mode = ModeOnline
	e.cloudSetpoint = &setpoint
}

// UpdatePrices pushes a price table into the arbitrage sub-controller. It
// does not count as cloud contact on its own — the caller re-applies the
// last-cached table every cycle regardless of whether the cloud link is
// still up, so only a genuine inbound message (ReceiveCloudCommand, or
// NoteCloudContact for messages Decide itself never consumes) may refresh
// the online/autonomous timeout.
func (e *Engine) UpdatePrices(prices map[int]float64) {
	e.arbitrage.UpdatePriceTable(prices)
}

// UpdateSolarForecast pushes a cloud-delivered hour-of-day solar forecast.
func (e *Engine) UpdateSolarForecast(forecastKW map[int]float64) {
	e.solarForecastKW = forecastKW
}

// NoteCloudContact records that a message was just received over the cloud
// link, without otherwise changing engine state. Used for inbound messages
// (price/forecast config) that should restore ONLINE mode but are not
// themselves a setpoint.
func (e *Engine) NoteCloudContact() {
	e.lastCloudContact = time.Now()
	if e.mode == ModeAutonomous {
		e.mode = ModeOnline
	}
}

// EnterSafeMode is called by the daemon when an unrecoverable error occurs
// outside the safety evaluator's own scope (e.g. repeated field bus failure).
func (e *Engine) EnterSafeMode() {
	e.mode = ModeSafe
}

// checkMode demotes ONLINE to AUTONOMOUS once the cloud has been silent
// past the configured timeout.
func (e *Engine) checkMode() {
	if e.mode == ModeOnline && time.Since(e.lastCloudContact) > e.cloudTimeout {
		e.mode = ModeAutonomous
	}
}

// EstimateDemandKW is a placeholder for the site demand a CT meter would
// report. No meter input exists yet, so demand is approximated from the
// battery's own power flow. Replace once a meter integration lands.
func EstimateDemandKW(powerKW float64) float64 {
	return abs(powerKW) + 20.0
}

// Decide runs one arbitration cycle and returns the resulting Decision.
// Safety has already been checked by the caller; Decide never needs to.
func (e *Engine) Decide(s domain.TelemetrySnapshot, hour int) domain.Decision {
	e.checkMode()

	// PRIORITY: GRID_CODE
	state := e.blackStart.Process(s.GridFrequency, s.GridVoltage)
	if state != GridConnected {
		return e.gridCodeDecision(state, s.SOC)
	}

	// PRIORITY: CONTRACTUAL (peak shaving)
	demand := EstimateDemandKW(s.PowerKW)
	if action, power, reason := e.peakShave.Decide(demand, s.SOC); action != "IDLE" {
		return e.build(action, power, domain.PriorityContractual, reason)
	}

	// PRIORITY: ECONOMIC
	if e.mode == ModeOnline && e.cloudSetpoint != nil {
		sp := e.cloudSetpoint
		return e.build(sp.Action, sp.PowerKW, domain.PriorityEconomic, "cloud setpoint: "+sp.Reason)
	}

	if e.mode == ModeSafe {
		return e.safeModeDecision(s.SOC)
	}

	// AUTONOMOUS: local algorithms — solar first, then arbitrage.
	solarKW := e.solarForecastKW[hour]
	if solarKW > 0.5 {
		if action, power, reason := e.solar.Decide(s.SOC, solarKW, abs(s.PowerKW)); action != "IDLE" {
			return e.build(action, power, domain.PriorityEconomic, "autonomous: "+reason)
		}
	}

	action, power, reason := e.arbitrage.Decide(hour, s.SOC)
	return e.build(action, power, domain.PriorityEconomic, "autonomous: "+reason)
}

func (e *Engine) safeModeDecision(soc float64) domain.Decision {
	switch {
	case soc > e.limits.SafeModeMaxSOC:
		return e.build("DISCHARGE", 10.0, domain.PriorityLongevity, "safe mode: SOC above safe range")
	case soc < e.limits.SafeModeMinSOC:
		return e.build("CHARGE", 10.0, domain.PriorityLongevity, "safe mode: SOC below safe range")
	default:
		return e.build("IDLE", 0.0, domain.PriorityLongevity, "safe mode: SOC within safe range")
	}
}

func (e *Engine) gridCodeDecision(state GridState, soc float64) domain.Decision {
	switch state {
	case GridFailureDetected:
		return e.build("IDLE", 0.0, domain.PriorityGridCode, "grid failure detected, preparing transfer")
	case GridTransferring:
		return e.build("IDLE", 0.0, domain.PriorityGridCode, "transferring to island mode")
	case GridIslandMode:
		power := soc * 0.5
		if power < 10.0 {
			power = 10.0
		}
		if power > e.limits.MaxDischargeKW {
			power = e.limits.MaxDischargeKW
		}
		return e.build("DISCHARGE", power, domain.PriorityGridCode, "island mode: serving local loads")
	case GridReconnecting, GridSynchronizing:
		return e.build("IDLE", 0.0, domain.PriorityGridCode, "grid recovery in progress")
	default:
		return e.build("IDLE", 0.0, domain.PriorityGridCode, "grid state nominal")
	}
}

func (e *Engine) build(action string, powerKW float64, priority domain.Priority, reason string) domain.Decision {
	signed := powerKW
	switch action {
	case "CHARGE":
		signed = -abs(powerKW)
	case "DISCHARGE":
		signed = abs(powerKW)
	case "IDLE":
		signed = 0
	}
	if signed < -e.limits.MaxChargeKW {
		signed = -e.limits.MaxChargeKW
	}
	if signed > e.limits.MaxDischargeKW {
		signed = e.limits.MaxDischargeKW
	}

	// Decision.Mode mirrors EngineMode's online/autonomous/safe directly,
	// per spec: it must record whether the edge was online or running on
	// its own, not just collapse both into "normal". Grid-code ride-through
	// still takes priority over that connectivity state when active.
	var mode domain.OperatingMode
	switch e.mode {
	case ModeSafe:
		mode = domain.ModeSafe
	case ModeAutonomous:
		mode = domain.ModeAutonomous
	default:
		mode = domain.ModeOnline
	}
	if state := e.blackStart.State(); state != GridConnected {
		mode = domain.ModeGridCode
	}

	return domain.Decision{
		Mode:       mode,
		Source:     priority,
		SetpointKW: signed,
		Reason:     reason,
		DecidedAt:  time.Now(),
	}
}
