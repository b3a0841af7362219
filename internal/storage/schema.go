package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current ledger schema version.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    config_path TEXT,
    output_dir TEXT,
    status TEXT NOT NULL,  -- 'running', 'completed', 'failed'
    started_at TEXT NOT NULL,
    finished_at TEXT,
    frames INTEGER DEFAULT 0,
    checks INTEGER DEFAULT 0,
    iterations INTEGER DEFAULT 0,
    converged INTEGER DEFAULT 0,
    error TEXT,
    metrics TEXT,  -- JSON object
    result TEXT    -- JSON, the full sim.Result
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS checks (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    stage TEXT NOT NULL,
    cycle INTEGER NOT NULL,
    iteration INTEGER NOT NULL,
    total INTEGER NOT NULL,
    averages TEXT NOT NULL,  -- JSON array, one per fluid
    errors TEXT NOT NULL,
    converged INTEGER NOT NULL,
    PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS frames (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    frame INTEGER NOT NULL,
    stage TEXT NOT NULL,
    cycle INTEGER NOT NULL,
    iteration INTEGER NOT NULL,
    total INTEGER NOT NULL,
    pressure_drop REAL,
    cohesion REAL,
    PRIMARY KEY (run_id, frame)
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema creates the ledger tables on a fresh database and checks the
// version of an existing one.
func InitSchema(ctx context.Context, db *sql.DB) error {
	version, err := schemaVersion(ctx, db)
	if err != nil {
		return createSchema(ctx, db)
	}
	if version > SchemaVersion {
		return fmt.Errorf("ledger schema version %d is newer than supported %d", version, SchemaVersion)
	}
	return nil
}

func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	return version, err
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}
