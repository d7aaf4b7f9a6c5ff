package daemon

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/lifo4/edge-controller/internal/control"
	"github.com/lifo4/edge-controller/internal/domain"
	"github.com/lifo4/edge-controller/internal/messaging"
	"github.com/lifo4/edge-controller/internal/metrics"
	"github.com/lifo4/edge-controller/internal/selfheal"
	"github.com/lifo4/edge-controller/internal/statusapi"
)

// RunControlLoop is the edge controller's heartbeat: read telemetry,
// evaluate safety, arbitrate a decision, write the setpoint back to the
// field bus, and persist everything for the sync manager to drain. It
// runs at Config.Device.SampleIntervalMS cadence until ctx is cancelled.
func (d *Daemon) RunControlLoop(ctx context.Context) {
	interval := time.Duration(d.Config.Device.SampleIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.subscribeCloudCommands()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runCycle()
		}
	}
}

func (d *Daemon) runCycle() {
	start := time.Now()
	defer func() {
		metrics.ControlLoopDuration.Observe(time.Since(start).Seconds())
	}()

	snapshot, err := d.FieldBus.ReadTelemetry()
	if err != nil {
		d.Breaker.RecordFailure()
		metrics.FieldBusReadErrors.Inc()
		log.Printf("[controlloop] field bus read failed: %v", err)
		return
	}
	d.Breaker.RecordSuccess()
	d.Watchdog.Kick()
	d.lastTelemetry = snapshot

	d.refreshCloudConfig()

	verdict, err := d.Safety.Check(snapshot)
	if err != nil {
		log.Printf("[controlloop] safety evaluation skipped: %v", err)
		return
	}
	d.lastVerdict = verdict
	if !verdict.Safe() {
		metrics.SafetyViolationsTotal.WithLabelValues(verdict.Violation).Inc()
		d.Engine.EnterSafeMode()
		d.executeSafetyAction(verdict)
		d.raiseAlarm(verdict)
	}

	d.lastSeq++
	decision := d.lastDecision
	mustDecide := !verdict.Safe() || d.lastSeq%d.optimizeEveryN() == 0 || decision.ID == ""
	if mustDecide {
		decision = d.Engine.Decide(snapshot, time.Now().Hour())
		decision.ID = uuid.NewString()
		d.lastDecision = decision
	}
	action := "idle"
	switch {
	case decision.SetpointKW < 0:
		action = "charge"
	case decision.SetpointKW > 0:
		action = "discharge"
	}
	metrics.DecisionsTotal.WithLabelValues(action).Inc()

	if err := d.applySetpoint(decision); err != nil {
		log.Printf("[controlloop] failed to apply setpoint: %v", err)
	}

	d.persistCycle(snapshot, decision)

	metrics.SOCPercent.Set(snapshot.SOC)
	metrics.PowerKW.Set(snapshot.PowerKW)
	metrics.TempMaxCelsius.Set(snapshot.TempMax)
}

// optimizeEveryN returns how many sample-interval cycles separate two full
// decision-engine runs. Between them the field bus is still read and safety
// is still enforced every cycle; only the (comparatively expensive)
// arbitrage/peak-shaving/solar arbitration is throttled.
func (d *Daemon) optimizeEveryN() int {
	n := d.Config.Device.OptimizeEveryNLoop
	if n <= 0 {
		return 1
	}
	return n
}

func (d *Daemon) executeSafetyAction(v domain.SafetyVerdict) {
	switch v.Action {
	case domain.ActionStopCharge:
		_ = d.FieldBus.SetChargeEnable(false)
	case domain.ActionStopDischarge:
		_ = d.FieldBus.SetDischargeEnable(false)
	case domain.ActionStopAll:
		_ = d.FieldBus.SetChargeEnable(false)
		_ = d.FieldBus.SetDischargeEnable(false)
	case domain.ActionEmergencyStop, domain.ActionIsolate:
		_ = d.FieldBus.EmergencyStop()
	}
}

func (d *Daemon) applySetpoint(decision domain.Decision) error {
	charge := decision.SetpointKW < 0
	discharge := decision.SetpointKW > 0

	if err := d.FieldBus.SetChargeEnable(charge); err != nil {
		return err
	}
	if err := d.FieldBus.SetDischargeEnable(discharge); err != nil {
		return err
	}
	return d.FieldBus.WritePowerSetpoint(decision.SetpointKW)
}

func (d *Daemon) persistCycle(s domain.TelemetrySnapshot, dec domain.Decision) {
	if _, err := d.Store.SaveTelemetry(s); err != nil {
		log.Printf("[controlloop] save telemetry: %v", err)
	}
	if err := d.Store.SaveDecision(dec); err != nil {
		log.Printf("[controlloop] save decision: %v", err)
	}
	d.enqueueOutbound(domain.QueueTelemetry, messaging.TopicTelemetry(d.Identity.EdgeID), s)
	d.enqueueOutbound(domain.QueueDecision, messaging.TopicDecisions(d.Identity.EdgeID), dec)
}

func (d *Daemon) raiseAlarm(v domain.SafetyVerdict) {
	alarm := domain.Alarm{
		ID:       uuid.NewString(),
		Severity: v.Severity,
		Source:   "safety",
		Message:  v.Reason,
		RaisedAt: time.Now(),
	}
	if err := d.Store.SaveAlarm(alarm); err != nil {
		log.Printf("[controlloop] save alarm: %v", err)
	}
	d.enqueueOutbound(domain.QueueAlarm, messaging.TopicAlarms(d.Identity.EdgeID), alarm)
}

func (d *Daemon) enqueueOutbound(kind domain.QueueKind, topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("[controlloop] marshal outbound %s: %v", kind, err)
		return
	}
	if _, err := d.Store.Enqueue(kind, topic, payload); err != nil {
		log.Printf("[controlloop] enqueue outbound %s: %v", kind, err)
	}
}

func (d *Daemon) subscribeCloudCommands() {
	topic := messaging.TopicCommands(d.Identity.EdgeID)
	if err := d.Messaging.Subscribe(topic, d.onCloudCommand); err != nil {
		log.Printf("[controlloop] subscribe %s failed: %v", topic, err)
	}
	priceTopic := messaging.TopicConfig(d.Identity.EdgeID)
	if err := d.Messaging.Subscribe(priceTopic, d.onCloudConfig); err != nil {
		log.Printf("[controlloop] subscribe %s failed: %v", priceTopic, err)
	}
}

func (d *Daemon) onCloudCommand(_ string, payload []byte) {
	var wire struct {
		Action  string  `json:"action"`
		PowerKW float64 `json:"power_kw"`
		Reason  string  `json:"reason"`
	}
	if err := json.Unmarshal(payload, &wire); err != nil {
		log.Printf("[controlloop] malformed cloud command: %v", err)
		return
	}
	d.Engine.ReceiveCloudCommand(control.CloudSetpoint{
		Action:  wire.Action,
		PowerKW: wire.PowerKW,
		Reason:  wire.Reason,
	})
}

// cloudConfigWire is the envelope the cloud publishes to the per-edge config
// topic. Kind picks which cache entry the payload refreshes.
type cloudConfigWire struct {
	Kind          string          `json:"kind"` // "prices" or "solar_forecast"
	Prices        map[int]float64 `json:"prices,omitempty"`
	SolarForecast map[int]float64 `json:"solar_forecast_kw,omitempty"`
}

const (
	priceCacheKey    = "hourly_prices"
	forecastCacheKey = "solar_forecast"
	cloudConfigTTL   = 2 * time.Hour
)

// onCloudConfig stores a cloud-pushed price table or solar forecast in the
// TTL-aware cache. It does not touch the engine directly: refreshCloudConfig
// reads the cache every cycle, so the engine only ever acts on a value that
// is still within its TTL.
func (d *Daemon) onCloudConfig(_ string, payload []byte) {
	var wire cloudConfigWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		log.Printf("[controlloop] malformed cloud config: %v", err)
		return
	}
	switch wire.Kind {
	case "prices":
		d.priceCache.Set(priceCacheKey, wire.Prices, cloudConfigTTL)
		d.Engine.NoteCloudContact()
	case "solar_forecast":
		d.forecastCache.Set(forecastCacheKey, wire.SolarForecast, cloudConfigTTL)
		d.Engine.NoteCloudContact()
	default:
		log.Printf("[controlloop] cloud config with unknown kind %q ignored", wire.Kind)
	}
}

// refreshCloudConfig pushes whatever is currently fresh in the cache into the
// decision engine. Called once per control cycle; an entry that is missing
// or has gone stale clears the engine's table, so the engine falls back to
// running without prices or a forecast instead of acting on expired data.
func (d *Daemon) refreshCloudConfig() {
	if prices, err := d.priceCache.GetFresh(priceCacheKey); err == nil {
		d.Engine.UpdatePrices(prices)
	} else {
		d.Engine.UpdatePrices(nil)
	}
	if forecast, err := d.forecastCache.GetFresh(forecastCacheKey); err == nil {
		d.Engine.UpdateSolarForecast(forecast)
	} else {
		d.Engine.UpdateSolarForecast(nil)
	}
}

// Snapshot implements statusapi.Provider by reporting the most recently
// completed control cycle's state.
func (d *Daemon) Snapshot() statusapi.Snapshot {
	depth, _ := d.Store.QueueDepth()
	return statusapi.Snapshot{
		EdgeID:          d.Identity.EdgeID,
		SoftwareVersion: softwareVersion,
		Mode:            d.lastDecision.Mode,
		Telemetry:       d.lastTelemetry,
		LastDecision:    d.lastDecision,
		SafetyVerdict:   d.lastVerdict,
		GridState:       string(d.Engine.GridState()),
		FieldBusHealthy: d.Breaker.State() == selfheal.CBClosed,
		MQTTConnected:   d.Messaging.IsConnected(),
		SyncQueueDepth:  map[string]int{"total": depth},
		OTAState:        d.OTA.State(),
		Checks:          d.Checker.Statuses(),
	}
}
