package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/lifo4/edge-controller/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edge.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveTelemetryAssignsID(t *testing.T) {
	db := newTestDB(t)

	id, err := db.SaveTelemetry(domain.TelemetrySnapshot{
		SOC: 50, SOH: 98, PackVoltage: 400, Current: 10, PowerKW: 4,
		TempMin: 20, TempMax: 25, TempAvg: 22, GridFrequency: 50, GridVoltage: 230,
		CellVoltageMin: 3.3, CellVoltageMax: 3.4, CapturedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("SaveTelemetry() error: %v", err)
	}
	if id <= 0 {
		t.Errorf("SaveTelemetry() id = %d, want > 0", id)
	}
}

func TestSaveAlarmPersists(t *testing.T) {
	db := newTestDB(t)

	a := domain.Alarm{
		ID: "alarm-1", Severity: domain.SeverityCritical, Source: "safety",
		Message: "cell overvoltage", RaisedAt: time.Now(),
	}
	if err := db.SaveAlarm(a); err != nil {
		t.Fatalf("SaveAlarm() error: %v", err)
	}
	if err := db.SaveAlarm(a); err == nil {
		t.Errorf("SaveAlarm() duplicate id should fail, got nil error")
	}
}

func TestQueueEnqueuePopAck(t *testing.T) {
	db := newTestDB(t)

	id, err := db.Enqueue(domain.QueueTelemetry, "devices/edge-1/telemetry", []byte(`{"soc":50}`))
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	batch, err := db.PopBatch([]domain.QueueKind{domain.QueueTelemetry}, 10)
	if err != nil {
		t.Fatalf("PopBatch() error: %v", err)
	}
	if len(batch) != 1 || batch[0].ID != id {
		t.Fatalf("PopBatch() = %+v, want one row with id %d", batch, id)
	}

	// A locked row must not be returned again until requeued.
	again, err := db.PopBatch([]domain.QueueKind{domain.QueueTelemetry}, 10)
	if err != nil {
		t.Fatalf("PopBatch() second call error: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("PopBatch() returned locked row again: %+v", again)
	}

	if err := db.Ack(id); err != nil {
		t.Fatalf("Ack() error: %v", err)
	}
	// Acking twice must not silently succeed — the row is already gone.
	if err := db.Ack(id); err == nil {
		t.Errorf("Ack() on already-acked id should error, got nil")
	}
}

func TestQueueRequeueMakesRowPoppableAgain(t *testing.T) {
	db := newTestDB(t)

	id, err := db.Enqueue(domain.QueueAlarm, "devices/edge-1/alarms", []byte(`{}`))
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	batch, err := db.PopBatch([]domain.QueueKind{domain.QueueAlarm}, 10)
	if err != nil || len(batch) != 1 {
		t.Fatalf("PopBatch() = %+v, %v", batch, err)
	}

	if err := db.Requeue([]int64{id}); err != nil {
		t.Fatalf("Requeue() error: %v", err)
	}

	batch, err = db.PopBatch([]domain.QueueKind{domain.QueueAlarm}, 10)
	if err != nil {
		t.Fatalf("PopBatch() after requeue error: %v", err)
	}
	if len(batch) != 1 || batch[0].ID != id {
		t.Fatalf("PopBatch() after requeue = %+v, want row %d back", batch, id)
	}
}

func TestCleanupDoesNotTouchAlarms(t *testing.T) {
	db := newTestDB(t)

	old := time.Now().AddDate(0, 0, -60)
	if _, err := db.SaveTelemetry(domain.TelemetrySnapshot{CapturedAt: old}); err != nil {
		t.Fatalf("SaveTelemetry() error: %v", err)
	}
	if err := db.SaveAlarm(domain.Alarm{ID: "old-alarm", RaisedAt: old}); err != nil {
		t.Fatalf("SaveAlarm() error: %v", err)
	}

	if err := db.Cleanup(30); err != nil {
		t.Fatalf("Cleanup() error: %v", err)
	}

	var n int
	if err := db.db.QueryRow(`SELECT COUNT(*) FROM telemetry`).Scan(&n); err != nil {
		t.Fatalf("count telemetry: %v", err)
	}
	if n != 0 {
		t.Errorf("telemetry rows after cleanup = %d, want 0", n)
	}
	if err := db.db.QueryRow(`SELECT COUNT(*) FROM alarms`).Scan(&n); err != nil {
		t.Fatalf("count alarms: %v", err)
	}
	if n != 1 {
		t.Errorf("alarm rows after cleanup = %d, want 1 (never cleaned up)", n)
	}
}
