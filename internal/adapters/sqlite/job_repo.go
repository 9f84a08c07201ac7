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

// JobRepository implements secondary.JobRepository with SQLite.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new SQLite job repository.
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, phase, insurer, vehicle_model, amount, created_at, updated_at`

// Create persists a new job.
func (r *JobRepository) Create(ctx context.Context, job *secondary.JobRecord) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Phase,
		job.Dimensions.Insurer,
		job.Dimensions.VehicleModel,
		job.Dimensions.Amount,
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*secondary.JobRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`,
		id,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// List retrieves jobs matching the given filters, most recently updated first.
func (r *JobRepository) List(ctx context.Context, filters secondary.JobFilters) ([]*secondary.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []any{}

	if len(filters.Phases) > 0 {
		query += " AND phase IN (" + placeholders(len(filters.Phases)) + ")"
		for _, p := range filters.Phases {
			args = append(args, p)
		}
	}

	if filters.Insurer != "" {
		query += " AND insurer = ?"
		args = append(args, filters.Insurer)
	}

	query += " ORDER BY updated_at DESC, id"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*secondary.JobRecord
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// UpdatePhase sets the job's phase and updated_at.
func (r *JobRepository) UpdatePhase(ctx context.Context, id, phase string, updatedAt time.Time) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE jobs SET phase = ?, updated_at = ? WHERE id = ?`,
		phase,
		formatTime(updatedAt),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job phase: %w", err)
	}
	return requireOneRow(result, "job", id)
}

// UpdateDimensions refreshes the denormalised grouping attributes.
func (r *JobRepository) UpdateDimensions(ctx context.Context, id string, dims secondary.DimensionsRecord) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE jobs SET insurer = ?, vehicle_model = ?, amount = ? WHERE id = ?`,
		dims.Insurer,
		dims.VehicleModel,
		dims.Amount,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job dimensions: %w", err)
	}
	return requireOneRow(result, "job", id)
}

// Dimensions returns the grouping attributes of the given jobs.
// Unknown job IDs are absent from the result.
func (r *JobRepository) Dimensions(ctx context.Context, jobIDs []string) (map[string]secondary.DimensionsRecord, error) {
	out := make(map[string]secondary.DimensionsRecord, len(jobIDs))
	for _, chunk := range inChunks(jobIDs, maxInParams) {
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := conn(ctx, r.db).QueryContext(ctx,
			`SELECT id, insurer, vehicle_model, amount FROM jobs WHERE id IN (`+placeholders(len(chunk))+`)`,
			args...,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load job dimensions: %w", err)
		}
		for rows.Next() {
			var (
				id   string
				dims secondary.DimensionsRecord
			)
			if err := rows.Scan(&id, &dims.Insurer, &dims.VehicleModel, &dims.Amount); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan job dimensions: %w", err)
			}
			out[id] = dims
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to load job dimensions: %w", err)
		}
	}
	return out, nil
}

// CountByPhase groups jobs by their current phase.
func (r *JobRepository) CountByPhase(ctx context.Context, q secondary.PhaseCountQuery) (map[string]secondary.PhaseCount, error) {
	query := `SELECT phase, COUNT(*), COALESCE(SUM(amount), 0) FROM jobs WHERE 1=1`
	args := []any{}

	if !q.UpdatedFrom.IsZero() {
		query += " AND updated_at >= ?"
		args = append(args, formatTime(q.UpdatedFrom))
	}
	if !q.UpdatedTo.IsZero() {
		query += " AND updated_at < ?"
		args = append(args, formatTime(q.UpdatedTo))
	}

	query += " GROUP BY phase"

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by phase: %w", err)
	}
	defer rows.Close()

	out := make(map[string]secondary.PhaseCount)
	for rows.Next() {
		var (
			phase string
			count secondary.PhaseCount
		)
		if err := rows.Scan(&phase, &count.Jobs, &count.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan phase count: %w", err)
		}
		out[phase] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count jobs by phase: %w", err)
	}
	return out, nil
}

// GetNextID returns the next available job ID.
func (r *JobRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	prefixLen := len("JOB-") + 1
	err := conn(ctx, r.db).QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(CAST(SUBSTR(id, %d) AS INTEGER)), 0) FROM jobs WHERE id LIKE 'JOB-%%'", prefixLen),
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next job ID: %w", err)
	}

	return fmt.Sprintf("JOB-%04d", maxID+1), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(s rowScanner) (*secondary.JobRecord, error) {
	var (
		job       secondary.JobRecord
		createdAt string
		updatedAt string
	)
	err := s.Scan(&job.ID,
		&job.Phase,
		&job.Dimensions.Insurer,
		&job.Dimensions.VehicleModel,
		&job.Dimensions.Amount,
		&createdAt,
		&updatedAt)
	if err != nil {
		return nil, err
	}
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &job, nil
}

func requireOneRow(result sql.Result, entity, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, entity, id)
	}
	return nil
}

var _ secondary.JobRepository = (*JobRepository)(nil)
