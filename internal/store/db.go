// Package store provides the edge controller's durable local persistence:
// telemetry history, decision history, alarms, and the outbound sync queue.
// Backed by a single pure-Go SQLite file in WAL mode.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO required

	"github.com/lifo4/edge-controller/internal/domain"
)

// DB wraps a SQLite connection configured for single-writer WAL durability.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at path, enabling WAL mode,
// foreign keys, and a 5-second busy timeout.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer; one connection avoids SQLITE_BUSY churn
	// under WAL and keeps writes strictly ordered with the control loop.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	d := &DB{db: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS telemetry (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			soc             REAL NOT NULL,
			soh             REAL NOT NULL,
			pack_voltage    REAL NOT NULL,
			current         REAL NOT NULL,
			power_kw        REAL NOT NULL,
			temp_min        REAL NOT NULL,
			temp_max        REAL NOT NULL,
			temp_avg        REAL NOT NULL,
			grid_frequency  REAL NOT NULL,
			grid_voltage    REAL NOT NULL,
			cell_voltage_min REAL NOT NULL,
			cell_voltage_max REAL NOT NULL,
			captured_at     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_telemetry_captured_at ON telemetry(captured_at)`,

		`CREATE TABLE IF NOT EXISTS decisions (
			id          TEXT PRIMARY KEY,
			mode        TEXT NOT NULL,
			source      INTEGER NOT NULL,
			setpoint_kw REAL NOT NULL,
			reason      TEXT NOT NULL,
			decided_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_decided_at ON decisions(decided_at)`,

		`CREATE TABLE IF NOT EXISTS alarms (
			id        TEXT PRIMARY KEY,
			severity  INTEGER NOT NULL,
			source    TEXT NOT NULL,
			message   TEXT NOT NULL,
			raised_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alarms_raised_at ON alarms(raised_at)`,

		`CREATE TABLE IF NOT EXISTS outbound_queue (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			kind        TEXT NOT NULL,
			topic       TEXT NOT NULL,
			payload     BLOB NOT NULL,
			enqueued_at TEXT NOT NULL,
			attempts    INTEGER NOT NULL DEFAULT 0,
			locked      INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbound_queue_kind ON outbound_queue(kind)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func mapScanErr(err error) error {
	if err == sql.ErrNoRows {
		return domain.ErrQueueRowNotFound
	}
	return err
}
