// Package metrics provides Prometheus metrics for the edge controller:
// gauges and counters for battery state, control decisions, safety
// violations, sync backlog, and subsystem health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Battery state ──────────────────────────────────────────────────────────

// SOCPercent tracks the state of charge as last read from the field bus.
var SOCPercent = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "edge",
	Name:      "battery_soc_percent",
	Help:      "Battery state of charge, percent.",
})

// PowerKW tracks instantaneous power: positive discharging, negative charging.
var PowerKW = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "edge",
	Name:      "battery_power_kw",
	Help:      "Instantaneous battery power in kW (positive discharging, negative charging).",
})

// TempMaxCelsius tracks the hottest cell/module reading across the pack.
var TempMaxCelsius = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "edge",
	Name:      "battery_temp_max_celsius",
	Help:      "Maximum reported cell or module temperature, Celsius.",
})

// ─── Control loop ───────────────────────────────────────────────────────────

// ControlLoopDuration tracks how long one read-decide-write cycle takes.
var ControlLoopDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "edge",
	Name:      "control_loop_duration_seconds",
	Help:      "Duration of one control loop cycle.",
	Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
})

// DecisionsTotal tracks decisions issued by the decision engine, by action.
var DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "edge",
	Name:      "decisions_total",
	Help:      "Total control decisions issued, by action.",
}, []string{"action"})

// SafetyViolationsTotal tracks safety manager overrides, by rule name.
var SafetyViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "edge",
	Name:      "safety_violations_total",
	Help:      "Total safety manager overrides, by rule.",
}, []string{"rule"})

// ─── Field bus ───────────────────────────────────────────────────────────────

// FieldBusReadErrors tracks Modbus read failures since process start.
var FieldBusReadErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "edge",
	Name:      "fieldbus_read_errors_total",
	Help:      "Total field bus read errors.",
})

// FieldBusBreakerState tracks the field bus circuit breaker (0=closed, 1=half_open, 2=open).
var FieldBusBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "edge",
	Name:      "fieldbus_breaker_state",
	Help:      "Field bus circuit breaker state (0=closed, 1=half_open, 2=open).",
})

// ─── Cloud sync ──────────────────────────────────────────────────────────────

// SyncQueueDepth tracks unsynced rows waiting in the local store.
var SyncQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "edge",
	Name:      "sync_queue_depth",
	Help:      "Rows pending cloud sync, by kind.",
}, []string{"kind"})

// SyncBatchesPublished tracks successfully published sync batches.
var SyncBatchesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "edge",
	Name:      "sync_batches_published_total",
	Help:      "Total sync batches published, by kind.",
}, []string{"kind"})

// MQTTConnected tracks the cloud messaging connection (1=connected, 0=disconnected).
var MQTTConnected = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "edge",
	Name:      "mqtt_connected",
	Help:      "Cloud MQTT connection state (1=connected, 0=disconnected).",
})

// ─── OTA ─────────────────────────────────────────────────────────────────────

// OTAAttemptsTotal tracks update attempts, by terminal status.
var OTAAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "edge",
	Name:      "ota_attempts_total",
	Help:      "Total OTA update attempts, by status (update_success, rollback_executed, ...).",
}, []string{"status"})

// ─── Health ──────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "edge",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "edge",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})

// ResourceUsagePercent tracks host resource usage, by kind (mem, disk).
var ResourceUsagePercent = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "edge",
	Name:      "resource_usage_percent",
	Help:      "Host resource usage percent, by kind.",
}, []string{"kind"})
