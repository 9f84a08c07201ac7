// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"time"
)

// JobRepository defines the secondary port for job persistence.
type JobRepository interface {
	// Create persists a new job.
	Create(ctx context.Context, job *JobRecord) error

	// GetByID retrieves a job by its ID.
	GetByID(ctx context.Context, id string) (*JobRecord, error)

	// List retrieves jobs matching the given filters.
	List(ctx context.Context, filters JobFilters) ([]*JobRecord, error)

	// UpdatePhase sets the job's phase and updated_at.
	// Only the ledger service calls this, inside the transaction that appends the record.
	UpdatePhase(ctx context.Context, id, phase string, updatedAt time.Time) error

	// UpdateDimensions refreshes the denormalised grouping attributes.
	UpdateDimensions(ctx context.Context, id string, dims DimensionsRecord) error

	// Dimensions returns the grouping attributes of the given jobs, keyed by job ID.
	Dimensions(ctx context.Context, jobIDs []string) (map[string]DimensionsRecord, error)

	// CountByPhase returns, per current phase, the number of jobs and the sum
	// of their amounts, subject to the query's restrictions.
	CountByPhase(ctx context.Context, q PhaseCountQuery) (map[string]PhaseCount, error)

	// GetNextID returns the next available job ID.
	GetNextID(ctx context.Context) (string, error)
}

// PhaseCountQuery restricts a per-phase count to jobs whose updated_at is in
// [UpdatedFrom, UpdatedTo). A zero bound leaves that side open.
type PhaseCountQuery struct {
	UpdatedFrom time.Time
	UpdatedTo   time.Time
}

// PhaseCount is one row of a per-phase count.
type PhaseCount struct {
	Jobs   int
	Amount float64
}

// JobRecord represents a job as stored in persistence.
type JobRecord struct {
	ID         string
	Phase      string
	Dimensions DimensionsRecord
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DimensionsRecord holds the grouping attributes copied from the CRUD layer.
type DimensionsRecord struct {
	Insurer      string
	VehicleModel string
	Amount       float64
}

// JobFilters contains filter options for querying jobs.
type JobFilters struct {
	Phases  []string // any of
	Insurer string
	Limit   int
}

// TransitionRepository defines the secondary port for the phase history ledger.
// Records are ordered by timestamp, ties by insertion order.
type TransitionRepository interface {
	// Create appends a record.
	Create(ctx context.Context, rec *TransitionRecord) error

	// GetByID retrieves a record by its ID.
	GetByID(ctx context.Context, id string) (*TransitionRecord, error)

	// ListByJob returns every record of a job in chronological order.
	ListByJob(ctx context.Context, jobID string) ([]*TransitionRecord, error)

	// Tail returns the most recent record of a job, or nil when it has none.
	Tail(ctx context.Context, jobID string) (*TransitionRecord, error)

	// UpdateTimestamp changes the timestamp of one record. Nothing else is mutable.
	UpdateTimestamp(ctx context.Context, id string, ts time.Time) error

	// FirstOccurrences returns, per job, the earliest timestamp of a record whose
	// new phase is one of q.Phases, subject to the query's restrictions.
	FirstOccurrences(ctx context.Context, q OccurrenceQuery) (map[string]time.Time, error)

	// ListWithDuration returns records carrying a duration whose timestamp is in [start, end).
	ListWithDuration(ctx context.Context, start, end time.Time) ([]*TransitionRecord, error)

	// GetNextID returns the next available record ID.
	GetNextID(ctx context.Context) (string, error)
}

// TransitionRecord represents a history record as stored in persistence.
type TransitionRecord struct {
	ID            string
	JobID         string
	PreviousPhase string // empty for the creation record
	NewPhase      string
	Timestamp     time.Time
	ActorID       string
	Duration      *time.Duration
}

// OccurrenceQuery restricts a first-occurrence lookup.
// A zero Start/End leaves that side unbounded; the bounds apply to the first
// occurrence itself, not to individual records. A nil JobIDs means all jobs.
type OccurrenceQuery struct {
	Phases []string
	Start  time.Time
	End    time.Time
	JobIDs []string
}

// Transactor runs a function inside a single write transaction.
// Repositories called with the context passed to fn join that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Authorizer decides whether an actor may correct history.
type Authorizer interface {
	CanCorrectHistory(ctx context.Context, actorID string) (bool, error)
}

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// TransitionPublisher announces committed phase changes to other systems.
type TransitionPublisher interface {
	PublishTransition(ctx context.Context, evt TransitionEvent) error
}

// TransitionEvent is the payload published after a transition commits.
type TransitionEvent struct {
	RecordID      string    `json:"record_id"`
	JobID         string    `json:"job_id"`
	PreviousPhase string    `json:"previous_phase,omitempty"`
	NewPhase      string    `json:"new_phase"`
	Timestamp     time.Time `json:"timestamp"`
	ActorID       string    `json:"actor_id,omitempty"`
	DurationNanos *int64    `json:"duration_ns,omitempty"`
}

// Metrics receives ledger and analytics counters.
type Metrics interface {
	TransitionRecorded(from, to string)
	CorrectionApplied()
	CorrectionRejected(reason string)
	QueryServed(name string, elapsed time.Duration)
}
