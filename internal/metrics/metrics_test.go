package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestBatteryStateMetrics(t *testing.T) {
	SOCPercent.Set(62.5)
	PowerKW.Set(-3.2)
	TempMaxCelsius.Set(31.0)

	names := gatheredNames(t)
	expected := []string{
		"edge_battery_soc_percent",
		"edge_battery_power_kw",
		"edge_battery_temp_max_celsius",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestControlLoopMetrics(t *testing.T) {
	ControlLoopDuration.Observe(0.012)
	DecisionsTotal.WithLabelValues("charge").Inc()
	SafetyViolationsTotal.WithLabelValues("soc_floor").Inc()

	names := gatheredNames(t)
	expected := []string{
		"edge_control_loop_duration_seconds",
		"edge_decisions_total",
		"edge_safety_violations_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestFieldBusMetrics(t *testing.T) {
	FieldBusReadErrors.Inc()
	FieldBusBreakerState.Set(1)

	names := gatheredNames(t)
	if !names["edge_fieldbus_read_errors_total"] {
		t.Error("edge_fieldbus_read_errors_total not found")
	}
	if !names["edge_fieldbus_breaker_state"] {
		t.Error("edge_fieldbus_breaker_state not found")
	}
}

func TestSyncMetrics(t *testing.T) {
	SyncQueueDepth.WithLabelValues("telemetry").Set(14)
	SyncBatchesPublished.WithLabelValues("telemetry").Inc()
	MQTTConnected.Set(1)

	names := gatheredNames(t)
	expected := []string{
		"edge_sync_queue_depth",
		"edge_sync_batches_published_total",
		"edge_mqtt_connected",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestOTAMetrics(t *testing.T) {
	OTAAttemptsTotal.WithLabelValues("update_success").Inc()

	names := gatheredNames(t)
	if !names["edge_ota_attempts_total"] {
		t.Error("edge_ota_attempts_total not found")
	}
}

func TestHealthMetrics(t *testing.T) {
	HealthCheckStatus.WithLabelValues("fieldbus").Set(1)
	HealthCheckStatus.WithLabelValues("mqtt").Set(0)
	HealthRecoveries.WithLabelValues("fieldbus").Inc()
	ResourceUsagePercent.WithLabelValues("disk").Set(45.0)

	names := gatheredNames(t)
	expected := []string{
		"edge_health_check_status",
		"edge_health_recoveries_total",
		"edge_resource_usage_percent",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestAllMetricsGatherable(t *testing.T) {
	names := gatheredNames(t)

	edgeMetrics := 0
	for name := range names {
		if len(name) > 5 && name[:5] == "edge_" {
			edgeMetrics++
		}
	}
	if edgeMetrics < 12 {
		t.Errorf("expected at least 12 edge_ metrics, got %d", edgeMetrics)
	}
}
