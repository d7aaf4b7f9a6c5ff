package store

import (
	"fmt"
	"time"

	"github.com/lifo4/edge-controller/internal/domain"
)

// SaveTelemetry persists a snapshot. It returns only after the write is
// durable on disk — the control loop must not report a cycle complete
// before this returns.
func (d *DB) SaveTelemetry(s domain.TelemetrySnapshot) (int64, error) {
	res, err := d.db.Exec(
		`INSERT INTO telemetry (soc, soh, pack_voltage, current, power_kw, temp_min,
			temp_max, temp_avg, grid_frequency, grid_voltage, cell_voltage_min,
			cell_voltage_max, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SOC, s.SOH, s.PackVoltage, s.Current, s.PowerKW, s.TempMin, s.TempMax,
		s.TempAvg, s.GridFrequency, s.GridVoltage, s.CellVoltageMin, s.CellVoltageMax,
		s.CapturedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("save telemetry: %w", err)
	}
	return res.LastInsertId()
}

// SaveDecision persists a decision.
func (d *DB) SaveDecision(dec domain.Decision) error {
	_, err := d.db.Exec(
		`INSERT INTO decisions (id, mode, source, setpoint_kw, reason, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		dec.ID, string(dec.Mode), int(dec.Source), dec.SetpointKW, dec.Reason,
		dec.DecidedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save decision: %w", err)
	}
	return nil
}

// SaveAlarm persists an alarm. Alarms are never deleted by Cleanup.
func (d *DB) SaveAlarm(a domain.Alarm) error {
	_, err := d.db.Exec(
		`INSERT INTO alarms (id, severity, source, message, raised_at)
		 VALUES (?, ?, ?, ?, ?)`,
		a.ID, int(a.Severity), a.Source, a.Message, a.RaisedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save alarm: %w", err)
	}
	return nil
}

// Cleanup deletes telemetry and decision rows older than retentionDays.
// Alarms are retained indefinitely — they are small in volume and are the
// device's audit trail.
func (d *DB) Cleanup(retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).UTC().Format(time.RFC3339Nano)
	if _, err := d.db.Exec(`DELETE FROM telemetry WHERE captured_at < ?`, cutoff); err != nil {
		return fmt.Errorf("cleanup telemetry: %w", err)
	}
	if _, err := d.db.Exec(`DELETE FROM decisions WHERE decided_at < ?`, cutoff); err != nil {
		return fmt.Errorf("cleanup decisions: %w", err)
	}
	return nil
}
