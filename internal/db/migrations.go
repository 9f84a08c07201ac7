package db

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_jobs_and_phase_transitions",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_first_occurrence_indexes",
		Up:      migrationV2,
	},
}

func createVersionTable(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

// RunMigrations executes all pending migrations
func RunMigrations(conn *sql.DB) error {
	if err := createVersionTable(conn); err != nil {
		return err
	}

	var currentVersion int
	err := conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("running migration", "version", migration.Version, "name", migration.Name)

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// migrationV1 creates the job and ledger tables
func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			phase TEXT NOT NULL,
			insurer TEXT NOT NULL DEFAULT '',
			vehicle_model TEXT NOT NULL DEFAULT '',
			amount REAL NOT NULL DEFAULT 0 CHECK(amount >= 0),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

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
	`)
	return err
}

// migrationV2 adds the indexes behind first-occurrence and window scans
func migrationV2(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_jobs_phase ON jobs(phase);
		CREATE INDEX IF NOT EXISTS idx_phase_transitions_first ON phase_transitions(new_phase, job_id, timestamp);
		CREATE INDEX IF NOT EXISTS idx_phase_transitions_timestamp ON phase_transitions(timestamp);
	`)
	return err
}
