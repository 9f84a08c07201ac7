// Package sqlite_test contains integration tests for SQLite repositories.
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() so tests run against the
// authoritative schema. Do not hardcode CREATE TABLE statements in test files;
// use setupTestDB() and the seed* helpers instead.
package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/example/bark/internal/adapters/sqlite"
	"github.com/example/bark/internal/db"
	"github.com/example/bark/internal/ports/secondary"
)

var t0 = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func day(n int) time.Time { return t0.Add(time.Duration(n) * 24 * time.Hour) }

// setupTestDB creates an in-memory database with the authoritative schema.
// An in-memory database lives on a single connection, so the pool is capped at one.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedJob inserts a job through the repository and returns its ID.
func seedJob(t *testing.T, database *sql.DB, id, phase string, dims secondary.DimensionsRecord) string {
	t.Helper()
	err := sqlite.NewJobRepository(database).Create(context.Background(), &secondary.JobRecord{
		ID:         id,
		Phase:      phase,
		Dimensions: dims,
		CreatedAt:  t0,
		UpdatedAt:  t0,
	})
	if err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}
	return id
}

// seedTransition appends a record through the repository.
func seedTransition(t *testing.T, database *sql.DB, id, jobID, prev, next string, ts time.Time) {
	t.Helper()
	err := sqlite.NewTransitionRepository(database).Create(context.Background(), &secondary.TransitionRecord{
		ID:            id,
		JobID:         jobID,
		PreviousPhase: prev,
		NewPhase:      next,
		Timestamp:     ts,
	})
	if err != nil {
		t.Fatalf("failed to seed transition: %v", err)
	}
}
