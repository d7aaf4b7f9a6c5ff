package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Field bus (C1) errors.
	ErrFieldBusTimeout       = errors.New("fieldbus: request timed out")
	ErrFieldBusCRC           = errors.New("fieldbus: CRC check failed")
	ErrFieldBusException     = errors.New("fieldbus: device returned exception code")
	ErrFieldBusRefused       = errors.New("fieldbus: connection refused")
	ErrTelemetryInvalid      = errors.New("fieldbus: telemetry snapshot rejected (non-finite reading)")
	ErrEmergencyStopAsserted = errors.New("fieldbus: emergency stop contact asserted")

	// Local store (C2) errors.
	ErrStoreClosed      = errors.New("store: closed")
	ErrQueueRowNotFound = errors.New("store: queue row not found")
	ErrAckUnknownID     = errors.New("store: ack referenced an id not in the pending batch")

	// Cloud messaging (C3) errors.
	ErrNotConnected       = errors.New("messaging: client not connected")
	ErrPublishTimeout     = errors.New("messaging: publish timed out waiting for ack")
	ErrCertificateExpired = errors.New("messaging: device certificate expired")

	// Cache (C4) errors.
	ErrCacheMiss = errors.New("cache: key not present or expired")

	// Safety (C5) / decision engine (C7) errors.
	ErrNoTelemetry    = errors.New("safety: no telemetry available for evaluation")
	ErrUnknownMode    = errors.New("control: unknown operating mode")
	ErrModeTransition = errors.New("control: illegal mode transition")

	// Sync manager (C8) back-pressure errors.
	ErrBackPressureSoft   = errors.New("sync: back-pressure soft limit — low-priority rows downsampled")
	ErrBackPressureMedium = errors.New("sync: back-pressure medium limit — only alarms and decisions sent")
	ErrBackPressureHard   = errors.New("sync: back-pressure hard limit — outbound sync paused")

	// Self-healing (C10) errors.
	ErrCircuitOpen      = errors.New("selfheal: circuit breaker open")
	ErrWatchdogExpired  = errors.New("selfheal: watchdog heartbeat expired")
	ErrResourceCritical = errors.New("selfheal: resource threshold in critical range")

	// Provisioning (C11) errors.
	ErrAlreadyProvisioned = errors.New("provisioning: device already provisioned")
	ErrNoModbusDevice     = errors.New("provisioning: no modbus device found during discovery")
	ErrBootstrapRejected  = errors.New("provisioning: bootstrap registration rejected by cloud")

	// OTA (C12) errors.
	ErrOTAHostNotAllowed   = errors.New("ota: download host not in allow-list")
	ErrOTAInsecureScheme   = errors.New("ota: url scheme is neither https nor http")
	ErrOTAChecksumMismatch = errors.New("ota: checksum mismatch")
	ErrOTASignatureInvalid = errors.New("ota: signature verification failed")
	ErrOTAOutsideWindow    = errors.New("ota: update requested outside maintenance window")
	ErrOTAUnsafeState      = errors.New("ota: operational state is not safe for update")
	ErrOTARollback         = errors.New("ota: post-reboot healthcheck failed, rolled back")
)
