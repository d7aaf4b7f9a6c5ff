package sync

import (
	"fmt"

	"github.com/lifo4/edge-controller/internal/domain"
)

// Store is the subset of store.DB the sync manager needs.
type Store interface {
	PopBatch(kinds []domain.QueueKind, limit int) ([]domain.QueuedMessage, error)
	Ack(id int64) error
	Requeue(ids []int64) error
	QueueDepth() (int, error)
}

// Publisher is the subset of messaging.Client the sync manager needs.
type Publisher interface {
	Publish(topic string, payload []byte) error
	IsConnected() bool
}

// Config tunes queue draining.
type Config struct {
	BatchSize            int
	TelemetryDownsampleN int // under soft backpressure, publish 1 in N telemetry rows
	Thresholds           Thresholds
}

// Manager drains Store's outbound queue to Publisher once per call to
// Drain, applying backpressure: alarms and decisions are never dropped;
// telemetry is downsampled under soft pressure and skipped entirely under
// medium/hard pressure.
type Manager struct {
	store     Store
	publisher Publisher
	cfg       Config

	telemetrySeen int
}

// New constructs a Manager.
func New(store Store, publisher Publisher, cfg Config) *Manager {
	if cfg.TelemetryDownsampleN <= 0 {
		cfg.TelemetryDownsampleN = 1
	}
	return &Manager{store: store, publisher: publisher, cfg: cfg}
}

// Drain pops one batch and attempts to publish it, returning the
// backpressure level observed and the number of rows successfully acked.
func (m *Manager) Drain() (Level, int, error) {
	if !m.publisher.IsConnected() {
		return LevelNone, 0, domain.ErrNotConnected
	}

	depth, err := m.store.QueueDepth()
	if err != nil {
		return LevelNone, 0, fmt.Errorf("queue depth: %w", err)
	}
	level := Evaluate(depth, m.cfg.Thresholds)

	kinds := m.kindsForLevel(level)
	if len(kinds) == 0 {
		return level, 0, nil
	}

	batch, err := m.store.PopBatch(kinds, m.cfg.BatchSize)
	if err != nil {
		return level, 0, fmt.Errorf("pop batch: %w", err)
	}

	acked := 0
	var failedIDs []int64
	for _, msg := range batch {
		if level == LevelSoft && msg.Kind == domain.QueueTelemetry {
			m.telemetrySeen++
			if m.telemetrySeen%m.cfg.TelemetryDownsampleN != 0 {
				// Downsampled row: ack without publishing, it has been
				// superseded by the next sample before it could be sent.
				if err := m.store.Ack(msg.ID); err == nil {
					acked++
				}
				continue
			}
		}

		if err := m.publisher.Publish(msg.Topic, msg.Payload); err != nil {
			failedIDs = append(failedIDs, msg.ID)
			continue
		}
		if err := m.store.Ack(msg.ID); err != nil {
			continue
		}
		acked++
	}

	if len(failedIDs) > 0 {
		_ = m.store.Requeue(failedIDs)
	}

	return level, acked, nil
}

// kindsForLevel returns which queue kinds are eligible to drain at the
// given backpressure level. Alarms and decisions are eligible below hard
// pressure; telemetry is excluded once pressure reaches medium; at hard
// pressure nothing drains and every row stays queued.
func (m *Manager) kindsForLevel(level Level) []domain.QueueKind {
	switch level {
	case LevelHard:
		return nil
	case LevelMedium:
		return []domain.QueueKind{domain.QueueAlarm, domain.QueueDecision}
	default:
		return []domain.QueueKind{domain.QueueAlarm, domain.QueueDecision, domain.QueueTelemetry}
	}
}
