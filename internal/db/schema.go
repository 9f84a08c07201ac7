package db

import (
	"database/sql"
	"fmt"
)

// SchemaSQL is the complete schema for fresh installs.
// This schema reflects the current state after all migrations.
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. Tests use it via
// GetSchemaSQL(); if repository code references a column that doesn't exist
// here, tests fail immediately with "no such column".
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
//  3. Bump SchemaVersion
//
// Timestamps are stored as fixed-width UTC text (see TimestampLayout) so that
// text ordering is chronological ordering.
const SchemaSQL = `
-- Jobs (phase plus the grouping attributes copied from the CRUD layer)
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	phase TEXT NOT NULL,
	insurer TEXT NOT NULL DEFAULT '',
	vehicle_model TEXT NOT NULL DEFAULT '',
	amount REAL NOT NULL DEFAULT 0 CHECK(amount >= 0),
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_phase ON jobs(phase);

-- Phase transitions (append-only ledger; only timestamp is mutable)
CREATE TABLE IF NOT EXISTS phase_transitions (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	previous_phase TEXT,
	new_phase TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	actor_id TEXT,
	duration_ns INTEGER,
	FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE RESTRICT
);

CREATE INDEX IF NOT EXISTS idx_phase_transitions_job ON phase_transitions(job_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_phase_transitions_first ON phase_transitions(new_phase, job_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_phase_transitions_timestamp ON phase_transitions(timestamp);
`

// SchemaVersion is the migration version SchemaSQL corresponds to.
const SchemaVersion = 2

// TimestampLayout is the storage format for every timestamp column.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// InitSchema creates the schema on a fresh database or migrates an existing one.
func InitSchema(conn *sql.DB) error {
	var tableCount int
	err := conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount > 0 {
		return RunMigrations(conn)
	}

	var jobsCount int
	err = conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='jobs'").Scan(&jobsCount)
	if err != nil {
		return err
	}
	if jobsCount > 0 {
		// Tables predate version tracking
		return RunMigrations(conn)
	}

	// Completely fresh install - create modern schema directly and mark
	// every migration as applied
	if _, err := conn.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := createVersionTable(conn); err != nil {
		return err
	}
	for i := 1; i <= SchemaVersion; i++ {
		if _, err := conn.Exec("INSERT INTO schema_version (version) VALUES (?)", i); err != nil {
			return err
		}
	}
	return nil
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
