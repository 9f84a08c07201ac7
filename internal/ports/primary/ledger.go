// Package primary defines the primary ports (driving adapters) for the application.
// These are the interfaces the CLI and HTTP adapters call into.
package primary

import (
	"context"
	"time"
)

// LedgerService defines the primary port for job phase history.
// The acting user is read from the context (see ctxutil.WithActorID).
type LedgerService interface {
	// RecordCreation creates a job (when needed) and appends its creation record.
	RecordCreation(ctx context.Context, req CreateJobRequest) (*Job, error)

	// RecordTransition moves a job to a new phase and appends the transition record.
	// Moving a job to the phase it is already in is a no-op.
	RecordTransition(ctx context.Context, req TransitionRequest) (*TransitionResult, error)

	// CorrectTimestamp changes the timestamp of one history record.
	CorrectTimestamp(ctx context.Context, req CorrectionRequest) (*Transition, error)

	// GetHistory returns a job's records, most recent first. A limit of 0 means all.
	GetHistory(ctx context.Context, jobID string, limit int) ([]*Transition, error)

	// GetJob retrieves a job with its timeline counters.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// ListJobs retrieves jobs matching the given filters.
	ListJobs(ctx context.Context, filters JobFilters) ([]*Job, error)

	// UpdateDimensions refreshes the grouping attributes copied from the CRUD layer.
	UpdateDimensions(ctx context.Context, jobID string, dims Dimensions) error
}

// Dimensions are the grouping attributes of a job.
type Dimensions struct {
	Insurer      string
	VehicleModel string
	Amount       float64 `validate:"gte=0"`
}

// CreateJobRequest contains parameters for recording a job's creation.
// JobID may be empty, in which case a new ID is allocated.
type CreateJobRequest struct {
	JobID        string
	InitialPhase string
	Dimensions   Dimensions
}

// TransitionRequest contains parameters for a phase change.
type TransitionRequest struct {
	JobID    string
	NewPhase string
}

// TransitionResult reports the outcome of a phase change.
type TransitionResult struct {
	Job        *Job
	Transition *Transition // nil when Noop
	Noop       bool
}

// CorrectionRequest contains parameters for a timestamp correction.
type CorrectionRequest struct {
	RecordID     string
	NewTimestamp time.Time
}

// Job represents a job at the port boundary.
type Job struct {
	ID                 string
	Phase              string
	PhaseLabel         string
	Category           string
	Dimensions         Dimensions
	CreatedAt          time.Time
	UpdatedAt          time.Time
	PhaseStartedAt     time.Time
	TotalDays          *int // nil for cancelled jobs
	DaysInCurrentPhase *int // nil for cancelled jobs
}

// Transition represents one history record at the port boundary.
type Transition struct {
	ID            string
	JobID         string
	PreviousPhase string // empty for the creation record
	NewPhase      string
	Timestamp     time.Time
	ActorID       string
	Duration      *time.Duration
}

// JobFilters contains filter options for listing jobs.
type JobFilters struct {
	Phase   string // exact phase or category
	Insurer string
	Limit   int
}
