package domain

import "time"

// QueueKind distinguishes outbound row classes so the sync manager can apply
// per-class backpressure (telemetry downsamples; alarms and decisions never do).
type QueueKind string

const (
	QueueTelemetry QueueKind = "telemetry"
	QueueDecision  QueueKind = "decision"
	QueueAlarm     QueueKind = "alarm"
)

// QueuedMessage is one row of the outbound sync queue. Payload is the exact
// JSON bytes that will be published to the cloud — the queue never
// re-serializes a row after it's enqueued, so an ack always matches the
// bytes this device actually sent.
type QueuedMessage struct {
	ID         int64     `json:"id"`
	Kind       QueueKind `json:"kind"`
	Topic      string    `json:"topic"`
	Payload    []byte    `json:"payload"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Attempts   int       `json:"attempts"`
}
