// Package domain holds the edge controller's shared value types.
// Everything here is a plain value — no infrastructure dependency, no I/O.
package domain

import (
	"math"
	"time"
)

// TelemetrySnapshot is an immutable sample captured once per control cycle.
// A snapshot either carries every field or does not exist: if any sensor is
// unreadable the whole reading is rejected by the field bus client, never
// propagated partially.
type TelemetrySnapshot struct {
	SOC            float64   `json:"soc"`             // state of charge, %
	SOH            float64   `json:"soh"`             // state of health, %
	PackVoltage    float64   `json:"pack_voltage"`    // V
	Current        float64   `json:"current"`         // A, signed; positive = discharge
	PowerKW        float64   `json:"power_kw"`        // signed
	TempMin        float64   `json:"temp_min"`        // °C
	TempMax        float64   `json:"temp_max"`        // °C
	TempAvg        float64   `json:"temp_avg"`        // °C
	GridFrequency  float64   `json:"grid_frequency"`  // Hz
	GridVoltage    float64   `json:"grid_voltage"`    // V
	CellVoltageMin float64   `json:"cell_voltage_min"` // V
	CellVoltageMax float64   `json:"cell_voltage_max"` // V
	CapturedAt     time.Time `json:"captured_at"`      // wall clock at capture
}

// Valid reports whether every numeric field is finite. The field bus client
// must reject the whole snapshot rather than let a NaN/Inf reading reach
// safety evaluation.
func (s TelemetrySnapshot) Valid() bool {
	fields := [...]float64{
		s.SOC, s.SOH, s.PackVoltage, s.Current, s.PowerKW,
		s.TempMin, s.TempMax, s.TempAvg, s.GridFrequency, s.GridVoltage,
		s.CellVoltageMin, s.CellVoltageMax,
	}
	for _, f := range fields {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
