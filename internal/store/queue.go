package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lifo4/edge-controller/internal/domain"
)

// Enqueue adds a message to the outbound sync queue. It returns only after
// the row is durable — a message is never considered "sent" until both this
// write and the later Ack have completed.
func (d *DB) Enqueue(kind domain.QueueKind, topic string, payload []byte) (int64, error) {
	res, err := d.db.Exec(
		`INSERT INTO outbound_queue (kind, topic, payload, enqueued_at, attempts, locked)
		 VALUES (?, ?, ?, ?, 0, 0)`,
		string(kind), topic, payload, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}
	return res.LastInsertId()
}

// PopBatch returns up to limit unlocked rows of the requested kinds, ordered
// oldest-first, and marks them locked so a concurrent sync attempt does not
// double-send them. A locked row is released back to unlocked by Requeue if
// its publish attempt fails.
func (d *DB) PopBatch(kinds []domain.QueueKind, limit int) ([]domain.QueuedMessage, error) {
	if len(kinds) == 0 || limit <= 0 {
		return nil, nil
	}

	placeholders := make([]byte, 0, len(kinds)*2)
	args := make([]any, 0, len(kinds)+1)
	for i, k := range kinds {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, string(k))
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT id, kind, topic, payload, enqueued_at, attempts FROM outbound_queue
		 WHERE locked = 0 AND kind IN (%s)
		 ORDER BY id ASC LIMIT ?`, string(placeholders))

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("pop batch: %w", err)
	}
	defer rows.Close()

	var out []domain.QueuedMessage
	var ids []any
	for rows.Next() {
		var m domain.QueuedMessage
		var kind, enqueuedAt string
		if err := rows.Scan(&m.ID, &kind, &m.Topic, &m.Payload, &enqueuedAt, &m.Attempts); err != nil {
			return nil, fmt.Errorf("scan queue row: %w", err)
		}
		m.Kind = domain.QueueKind(kind)
		m.EnqueuedAt, _ = time.Parse(time.RFC3339Nano, enqueuedAt)
		out = append(out, m)
		ids = append(ids, m.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	lockQuery := fmt.Sprintf(`UPDATE outbound_queue SET locked = 1, attempts = attempts + 1 WHERE id IN (%s)`,
		placeholdersFor(len(ids)))
	if _, err := d.db.Exec(lockQuery, ids...); err != nil {
		return nil, fmt.Errorf("lock batch: %w", err)
	}
	return out, nil
}

// Ack deletes a successfully published row. Acking an id that is not
// currently locked (already acked, or never existed) is a no-op error the
// sync manager treats as already-done rather than fatal.
func (d *DB) Ack(id int64) error {
	res, err := d.db.Exec(`DELETE FROM outbound_queue WHERE id = ? AND locked = 1`, id)
	if err != nil {
		return fmt.Errorf("ack: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAckUnknownID
	}
	return nil
}

// Requeue unlocks a batch of ids whose publish attempt failed, making them
// eligible for PopBatch again.
func (d *DB) Requeue(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf(`UPDATE outbound_queue SET locked = 0 WHERE id IN (%s)`, placeholdersFor(len(ids)))
	_, err := d.db.Exec(query, args...)
	return err
}

// QueueDepth returns the total number of rows currently queued (locked or not).
func (d *DB) QueueDepth() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM outbound_queue`).Scan(&n)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	return n, nil
}

func placeholdersFor(n int) string {
	b := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
