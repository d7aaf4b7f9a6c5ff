package domain

import "time"

// Decision is the control loop's single output per cycle: a signed power
// setpoint plus the provenance needed to explain it after the fact.
type Decision struct {
	ID          string        `json:"id"`
	Mode        OperatingMode `json:"mode"`
	Source      Priority      `json:"source"`       // which arbitration tier produced it
	SetpointKW  float64       `json:"setpoint_kw"`  // signed; positive = discharge
	Reason      string        `json:"reason"`
	DecidedAt   time.Time     `json:"decided_at"`
}

// Alarm is a durable, cloud-bound notice of a notable event: a safety
// violation, a mode transition, or a self-healing escalation. Alarms are
// never dropped by the sync manager's downsampling.
type Alarm struct {
	ID        string    `json:"id"`
	Severity  Severity  `json:"severity"`
	Source    string    `json:"source"` // component name, e.g. "safety", "selfheal"
	Message   string    `json:"message"`
	RaisedAt  time.Time `json:"raised_at"`
}
