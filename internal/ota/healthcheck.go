package ota

import "context"

// HealthStatus is the outcome of the post-reboot verification pass: every
// subsystem the new image depends on must be reporting healthy before the
// update is committed.
type HealthStatus struct {
	ControlLoopOK    bool
	ModbusOK         bool
	MQTTOK           bool
	SafetyManagerOK  bool
}

// AllOK reports whether every check passed.
func (h HealthStatus) AllOK() bool {
	return h.ControlLoopOK && h.ModbusOK && h.MQTTOK && h.SafetyManagerOK
}

// HealthProbes are the callbacks ApplyStagedUpdate uses to check each
// subsystem; the caller supplies one function per subsystem. No code
// outside the tests calls ApplyStagedUpdate or builds these probes.
type HealthProbes struct {
	ControlLoopAlive func() bool
	ModbusReachable  func(ctx context.Context) bool
	MQTTConnected    func() bool
	SafetyManagerOK  func() bool
}

// RunHealthcheck samples every probe once.
func RunHealthcheck(ctx context.Context, probes HealthProbes) HealthStatus {
	return HealthStatus{
		ControlLoopOK:   probes.ControlLoopAlive(),
		ModbusOK:        probes.ModbusReachable(ctx),
		MQTTOK:          probes.MQTTConnected(),
		SafetyManagerOK: probes.SafetyManagerOK(),
	}
}
