package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/bark/internal/domain"
	"github.com/example/bark/internal/ports/secondary"
)

// TransitionRepository implements secondary.TransitionRepository with SQLite.
// Chronological order is timestamp then rowid, so records sharing a timestamp
// keep their insertion order.
type TransitionRepository struct {
	db *sql.DB
}

// NewTransitionRepository creates a new SQLite transition repository.
func NewTransitionRepository(db *sql.DB) *TransitionRepository {
	return &TransitionRepository{db: db}
}

const transitionColumns = `id, job_id, previous_phase, new_phase, timestamp, actor_id, duration_ns`

// Create appends a record.
func (r *TransitionRepository) Create(ctx context.Context, rec *secondary.TransitionRecord) error {
	var previousPhase, actorID sql.NullString
	if rec.PreviousPhase != "" {
		previousPhase = sql.NullString{String: rec.PreviousPhase, Valid: true}
	}
	if rec.ActorID != "" {
		actorID = sql.NullString{String: rec.ActorID, Valid: true}
	}
	var duration sql.NullInt64
	if rec.Duration != nil {
		duration = sql.NullInt64{Int64: int64(*rec.Duration), Valid: true}
	}

	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO phase_transitions (`+transitionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.JobID,
		previousPhase,
		rec.NewPhase,
		formatTime(rec.Timestamp),
		actorID,
		duration,
	)
	if err != nil {
		return fmt.Errorf("failed to create transition: %w", err)
	}
	return nil
}

// GetByID retrieves a record by its ID.
func (r *TransitionRepository) GetByID(ctx context.Context, id string) (*secondary.TransitionRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+transitionColumns+` FROM phase_transitions WHERE id = ?`,
		id,
	)
	rec, err := scanTransition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transition %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transition: %w", err)
	}
	return rec, nil
}

// ListByJob returns every record of a job in chronological order.
func (r *TransitionRepository) ListByJob(ctx context.Context, jobID string) ([]*secondary.TransitionRecord, error) {
	return r.list(ctx,
		`SELECT `+transitionColumns+` FROM phase_transitions WHERE job_id = ? ORDER BY timestamp, rowid`,
		jobID,
	)
}

// Tail returns the most recent record of a job, or nil when it has none.
func (r *TransitionRepository) Tail(ctx context.Context, jobID string) (*secondary.TransitionRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+transitionColumns+` FROM phase_transitions WHERE job_id = ? ORDER BY timestamp DESC, rowid DESC LIMIT 1`,
		jobID,
	)
	rec, err := scanTransition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest transition: %w", err)
	}
	return rec, nil
}

// UpdateTimestamp changes the timestamp of one record.
func (r *TransitionRepository) UpdateTimestamp(ctx context.Context, id string, ts time.Time) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE phase_transitions SET timestamp = ? WHERE id = ?`,
		formatTime(ts),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update transition timestamp: %w", err)
	}
	return requireOneRow(result, "transition", id)
}

// FirstOccurrences returns, per job, the earliest timestamp among records whose
// new phase is in q.Phases. Start/End bound that earliest timestamp, so a job
// whose first occurrence predates the window is excluded even if it re-entered
// the phase inside it.
func (r *TransitionRepository) FirstOccurrences(ctx context.Context, q secondary.OccurrenceQuery) (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	if len(q.Phases) == 0 {
		return out, nil
	}
	if q.JobIDs == nil {
		if err := r.firstOccurrences(ctx, q, nil, out); err != nil {
			return nil, err
		}
		return out, nil
	}
	for _, chunk := range inChunks(q.JobIDs, maxInParams) {
		if err := r.firstOccurrences(ctx, q, chunk, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *TransitionRepository) firstOccurrences(ctx context.Context, q secondary.OccurrenceQuery, jobIDs []string, out map[string]time.Time) error {
	query := `SELECT job_id, MIN(timestamp) FROM phase_transitions WHERE new_phase IN (` + placeholders(len(q.Phases)) + `)`
	args := make([]any, 0, len(q.Phases)+len(jobIDs)+2)
	for _, p := range q.Phases {
		args = append(args, p)
	}

	if len(jobIDs) > 0 {
		query += " AND job_id IN (" + placeholders(len(jobIDs)) + ")"
		for _, id := range jobIDs {
			args = append(args, id)
		}
	}

	query += " GROUP BY job_id HAVING 1=1"
	if !q.Start.IsZero() {
		query += " AND MIN(timestamp) >= ?"
		args = append(args, formatTime(q.Start))
	}
	if !q.End.IsZero() {
		query += " AND MIN(timestamp) < ?"
		args = append(args, formatTime(q.End))
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query first occurrences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var jobID, ts string
		if err := rows.Scan(&jobID, &ts); err != nil {
			return fmt.Errorf("failed to scan first occurrence: %w", err)
		}
		t, err := parseTime(ts)
		if err != nil {
			return err
		}
		out[jobID] = t
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to query first occurrences: %w", err)
	}
	return nil
}

// ListWithDuration returns records carrying a duration whose timestamp is in [start, end).
func (r *TransitionRepository) ListWithDuration(ctx context.Context, start, end time.Time) ([]*secondary.TransitionRecord, error) {
	return r.list(ctx,
		`SELECT `+transitionColumns+` FROM phase_transitions
		WHERE duration_ns IS NOT NULL AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp, rowid`,
		formatTime(start),
		formatTime(end),
	)
}

// GetNextID returns the next available record ID.
func (r *TransitionRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	prefixLen := len("TR-") + 1
	err := conn(ctx, r.db).QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(CAST(SUBSTR(id, %d) AS INTEGER)), 0) FROM phase_transitions WHERE id LIKE 'TR-%%'", prefixLen),
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next transition ID: %w", err)
	}

	return fmt.Sprintf("TR-%04d", maxID+1), nil
}

func (r *TransitionRepository) list(ctx context.Context, query string, args ...any) ([]*secondary.TransitionRecord, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	var records []*secondary.TransitionRecord
	for rows.Next() {
		rec, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	return records, nil
}

func scanTransition(s rowScanner) (*secondary.TransitionRecord, error) {
	var (
		rec           secondary.TransitionRecord
		previousPhase sql.NullString
		actorID       sql.NullString
		timestamp     string
		duration      sql.NullInt64
	)
	err := s.Scan(&rec.ID,
		&rec.JobID,
		&previousPhase,
		&rec.NewPhase,
		&timestamp,
		&actorID,
		&duration)
	if err != nil {
		return nil, err
	}
	if rec.Timestamp, err = parseTime(timestamp); err != nil {
		return nil, err
	}
	rec.PreviousPhase = previousPhase.String
	rec.ActorID = actorID.String
	if duration.Valid {
		d := time.Duration(duration.Int64)
		rec.Duration = &d
	}
	return &rec, nil
}

var _ secondary.TransitionRepository = (*TransitionRepository)(nil)
