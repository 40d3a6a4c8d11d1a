// Package store keeps a queryable history of sweeps in SQLite, alongside the
// JSON summaries written into each run directory.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS sweeps (
    id TEXT PRIMARY KEY,
    run_dir TEXT NOT NULL,
    sweep_index INTEGER NOT NULL,
    num_targets INTEGER NOT NULL,
    time_step REAL NOT NULL,
    time_limit INTEGER NOT NULL,
    repetition INTEGER NOT NULL,
    primal_seed INTEGER NOT NULL,
    rng TEXT NOT NULL,
    format TEXT NOT NULL,
    observed TEXT,
    participants TEXT NOT NULL,  -- JSON array, declared order
    status TEXT NOT NULL,        -- 'completed', 'failed'
    error TEXT,
    started_at TEXT NOT NULL,
    duration_s INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sweeps_started ON sweeps(started_at);

-- One row per participant per run; NULL marks an absent sample
CREATE TABLE IF NOT EXISTS samples (
    sweep_id TEXT NOT NULL REFERENCES sweeps(id) ON DELETE CASCADE,
    run_index INTEGER NOT NULL,
    seed INTEGER NOT NULL,
    participant TEXT NOT NULL,
    final_score REAL,
    time_remaining REAL,
    PRIMARY KEY (sweep_id, run_index, participant)
);

CREATE TABLE IF NOT EXISTS anomalies (
    sweep_id TEXT NOT NULL REFERENCES sweeps(id) ON DELETE CASCADE,
    run_index INTEGER NOT NULL,
    seed INTEGER NOT NULL,
    participant TEXT NOT NULL,
    kind TEXT NOT NULL,          -- 'LAST', 'NOT_BEST'
    score REAL NOT NULL,
    best REAL NOT NULL,
    PRIMARY KEY (sweep_id, run_index)
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema creates the schema on a fresh database and is a no-op on one
// that already carries the current version.
func InitSchema(ctx context.Context, db *sql.DB) error {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err == nil {
		if version > SchemaVersion {
			return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
		}
		return nil
	}

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
