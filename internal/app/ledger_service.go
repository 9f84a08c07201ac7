package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/bark/internal/core/ledger"
	"github.com/example/bark/internal/core/phase"
	"github.com/example/bark/internal/ctxutil"
	"github.com/example/bark/internal/domain"
	"github.com/example/bark/internal/ports/primary"
	"github.com/example/bark/internal/ports/secondary"
)

// LedgerDeps holds the collaborators of the ledger service.
// Publisher and Metrics are optional.
type LedgerDeps struct {
	Jobs        secondary.JobRepository
	Transitions secondary.TransitionRepository
	Tx          secondary.Transactor
	Authorizer  secondary.Authorizer
	Clock       secondary.Clock
	Publisher   secondary.TransitionPublisher
	Metrics     secondary.Metrics
	Location    *time.Location
	Logger      *slog.Logger
}

// LedgerServiceImpl implements the LedgerService interface.
// Every write to a job's history happens inside one transaction and under a
// per-job lock, so the tail read and the append cannot interleave.
type LedgerServiceImpl struct {
	jobs        secondary.JobRepository
	transitions secondary.TransitionRepository
	tx          secondary.Transactor
	authorizer  secondary.Authorizer
	clock       secondary.Clock
	publisher   secondary.TransitionPublisher
	metrics     secondary.Metrics
	loc         *time.Location
	logger      *slog.Logger
	validator   *RequestValidator
	locks       *keyedMutex
}

// NewLedgerService creates a new LedgerService with injected dependencies.
func NewLedgerService(deps LedgerDeps) *LedgerServiceImpl {
	s := &LedgerServiceImpl{
		jobs:        deps.Jobs,
		transitions: deps.Transitions,
		tx:          deps.Tx,
		authorizer:  deps.Authorizer,
		clock:       deps.Clock,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		loc:         deps.Location,
		logger:      deps.Logger,
		validator:   NewRequestValidator(),
		locks:       newKeyedMutex(),
	}
	if s.publisher == nil {
		s.publisher = noopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// RecordCreation creates the job when it does not exist yet and appends its
// creation record. A job that already has history is rejected.
func (s *LedgerServiceImpl) RecordCreation(ctx context.Context, req primary.CreateJobRequest) (*primary.Job, error) {
	if err := s.validator.Validate(req.Dimensions); err != nil {
		return nil, err
	}

	initial := phase.Default
	if req.InitialPhase != "" {
		initial, _ = phase.Parse(req.InitialPhase)
	}

	if req.JobID != "" {
		unlock := s.locks.Lock(req.JobID)
		defer unlock()
	}

	actor := ctxutil.ActorFromContext(ctx)
	var entry ledger.Entry

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		jobID := req.JobID
		if jobID == "" {
			nextID, err := s.jobs.GetNextID(ctx)
			if err != nil {
				return fmt.Errorf("failed to generate job ID: %w", err)
			}
			jobID = nextID
		}

		existing, err := s.jobs.GetByID(ctx, jobID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		hasCreation := false
		if existing != nil {
			tail, err := s.transitions.Tail(ctx, jobID)
			if err != nil {
				return err
			}
			hasCreation = tail != nil
		}

		guard := ledger.CanRecordCreation(ledger.CreationContext{
			JobID:             jobID,
			InitialPhase:      initial,
			HasCreationRecord: hasCreation,
		})
		if !guard.Allowed {
			return guard.Error()
		}

		now := s.clock.Now()
		if existing == nil {
			if err := s.jobs.Create(ctx, &secondary.JobRecord{
				ID:         jobID,
				Phase:      string(initial),
				Dimensions: dimensionsToRecord(req.Dimensions),
				CreatedAt:  now,
				UpdatedAt:  now,
			}); err != nil {
				return err
			}
		} else if err := s.jobs.UpdatePhase(ctx, jobID, string(initial), now); err != nil {
			return err
		}

		entry = ledger.PlanCreation(jobID, initial, actor, now)
		return s.appendEntry(ctx, &entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("job created", "job_id", entry.JobID, "phase", entry.NewPhase, "actor", actor)
	s.metrics.TransitionRecorded("", string(entry.NewPhase))
	s.publish(ctx, entry)

	return s.GetJob(ctx, entry.JobID)
}

// RecordTransition moves a job to a new phase. The appended record's duration
// is the time spent in the phase being exited.
func (s *LedgerServiceImpl) RecordTransition(ctx context.Context, req primary.TransitionRequest) (*primary.TransitionResult, error) {
	next, _ := phase.Parse(req.NewPhase)

	unlock := s.locks.Lock(req.JobID)
	defer unlock()

	actor := ctxutil.ActorFromContext(ctx)
	var (
		entry ledger.Entry
		noop  bool
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		job, err := s.jobs.GetByID(ctx, req.JobID)
		if err != nil {
			return err
		}

		tailRecord, err := s.transitions.Tail(ctx, req.JobID)
		if err != nil {
			return err
		}

		guard := ledger.CanRecordTransition(ledger.TransitionContext{
			JobID:             req.JobID,
			NewPhase:          next,
			HasCreationRecord: tailRecord != nil,
		})
		if !guard.Allowed {
			return guard.Error()
		}

		current := phase.Phase(job.Phase)
		if ledger.IsNoop(current, next) {
			noop = true
			return nil
		}

		entry = ledger.PlanTransition(req.JobID, current, next, recordToEntry(tailRecord), actor, s.clock.Now())
		if err := s.appendEntry(ctx, &entry); err != nil {
			return err
		}
		return s.jobs.UpdatePhase(ctx, req.JobID, string(next), entry.Timestamp)
	})
	if err != nil {
		return nil, err
	}

	job, err := s.GetJob(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	if noop {
		return &primary.TransitionResult{Job: job, Noop: true}, nil
	}

	s.logger.Info("phase changed",
		"job_id", entry.JobID,
		"from", entry.PreviousPhase,
		"to", entry.NewPhase,
		"actor", actor,
	)
	s.metrics.TransitionRecorded(string(entry.PreviousPhase), string(entry.NewPhase))
	s.publish(ctx, entry)

	return &primary.TransitionResult{Job: job, Transition: entryToTransition(entry)}, nil
}

// CorrectTimestamp changes one record's timestamp. The new date must stay
// between the dates of the record's neighbours; durations are left as recorded.
func (s *LedgerServiceImpl) CorrectTimestamp(ctx context.Context, req primary.CorrectionRequest) (*primary.Transition, error) {
	actor := ctxutil.ActorFromContext(ctx)

	allowed, err := s.authorizer.CanCorrectHistory(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("failed to check correction capability: %w", err)
	}
	if !allowed {
		s.metrics.CorrectionRejected("unauthorized")
		return nil, ledger.CanCorrectTimestamp(ledger.CorrectionContext{RecordID: req.RecordID}).Error()
	}

	// job_id never changes, so it is safe to read before taking the lock.
	target, err := s.transitions.GetByID(ctx, req.RecordID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(target.JobID)
	defer unlock()

	var (
		updated ledger.Entry
		changed bool
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		records, err := s.transitions.ListByJob(ctx, target.JobID)
		if err != nil {
			return err
		}
		sequence := recordsToEntries(records)

		guard := ledger.CanCorrectTimestamp(ledger.CorrectionContext{
			RecordID:     req.RecordID,
			CanCorrect:   allowed,
			Sequence:     sequence,
			NewTimestamp: req.NewTimestamp,
			Now:          s.clock.Now(),
			Location:     s.loc,
		})
		if !guard.Allowed {
			return guard.Error()
		}

		updated = sequence[ledger.IndexOf(sequence, req.RecordID)]
		if updated.Timestamp.Equal(req.NewTimestamp) {
			return nil
		}

		if err := s.transitions.UpdateTimestamp(ctx, req.RecordID, req.NewTimestamp); err != nil {
			return err
		}
		updated.Timestamp = req.NewTimestamp.UTC()
		changed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrOrderingViolation) {
			s.metrics.CorrectionRejected("ordering")
		}
		return nil, err
	}

	if changed {
		s.logger.Info("timestamp corrected",
			"record_id", updated.ID,
			"job_id", updated.JobID,
			"timestamp", updated.Timestamp,
			"actor", actor,
		)
		s.metrics.CorrectionApplied()
	}
	return entryToTransition(updated), nil
}

// GetHistory returns a job's records, most recent first.
func (s *LedgerServiceImpl) GetHistory(ctx context.Context, jobID string, limit int) ([]*primary.Transition, error) {
	if _, err := s.jobs.GetByID(ctx, jobID); err != nil {
		return nil, err
	}
	records, err := s.transitions.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	history := make([]*primary.Transition, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		history = append(history, entryToTransition(recordToEntry(records[i])))
		if limit > 0 && len(history) == limit {
			break
		}
	}
	return history, nil
}

// GetJob retrieves a job with its timeline counters.
func (s *LedgerServiceImpl) GetJob(ctx context.Context, jobID string) (*primary.Job, error) {
	record, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return s.toJob(ctx, record)
}

// ListJobs retrieves jobs matching the given filters.
func (s *LedgerServiceImpl) ListJobs(ctx context.Context, filters primary.JobFilters) ([]*primary.Job, error) {
	query := secondary.JobFilters{Insurer: filters.Insurer, Limit: filters.Limit}
	if filters.Phase != "" {
		f, err := phase.ParseFilter(filters.Phase)
		if err != nil {
			return nil, &domain.ValidationError{Field: "Phase", Message: err.Error()}
		}
		for _, p := range f.Phases() {
			query.Phases = append(query.Phases, string(p))
		}
	}

	records, err := s.jobs.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]*primary.Job, 0, len(records))
	for _, r := range records {
		job, err := s.toJob(ctx, r)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// UpdateDimensions refreshes the grouping attributes of a job.
func (s *LedgerServiceImpl) UpdateDimensions(ctx context.Context, jobID string, dims primary.Dimensions) error {
	if err := s.validator.Validate(dims); err != nil {
		return err
	}
	return s.jobs.UpdateDimensions(ctx, jobID, dimensionsToRecord(dims))
}

// Helper methods

// appendEntry allocates an ID for e and persists it. Must run inside a transaction.
func (s *LedgerServiceImpl) appendEntry(ctx context.Context, e *ledger.Entry) error {
	id, err := s.transitions.GetNextID(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate transition ID: %w", err)
	}
	e.ID = id
	return s.transitions.Create(ctx, entryToRecord(*e))
}

// publish announces a committed record. Delivery failures are logged only;
// the ledger is the source of truth.
func (s *LedgerServiceImpl) publish(ctx context.Context, e ledger.Entry) {
	evt := secondary.TransitionEvent{
		RecordID:      e.ID,
		JobID:         e.JobID,
		PreviousPhase: string(e.PreviousPhase),
		NewPhase:      string(e.NewPhase),
		Timestamp:     e.Timestamp,
		ActorID:       e.ActorID,
	}
	if e.Duration != nil {
		ns := int64(*e.Duration)
		evt.DurationNanos = &ns
	}
	if err := s.publisher.PublishTransition(ctx, evt); err != nil {
		s.logger.Warn("failed to publish transition", "record_id", e.ID, "error", err)
	}
}

func (s *LedgerServiceImpl) toJob(ctx context.Context, r *secondary.JobRecord) (*primary.Job, error) {
	records, err := s.transitions.ListByJob(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	current := phase.Phase(r.Phase)
	tl := ledger.BuildTimeline(recordsToEntries(records), current, s.clock.Now(), s.loc)
	category, _ := phase.CategoryOf(current)

	return &primary.Job{
		ID:         r.ID,
		Phase:      r.Phase,
		PhaseLabel: phase.Label(current),
		Category:   string(category),
		Dimensions: primary.Dimensions{
			Insurer:      r.Dimensions.Insurer,
			VehicleModel: r.Dimensions.VehicleModel,
			Amount:       r.Dimensions.Amount,
		},
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		PhaseStartedAt:     tl.PhaseStartedAt,
		TotalDays:          tl.TotalDays,
		DaysInCurrentPhase: tl.DaysInCurrentPhase,
	}, nil
}

func dimensionsToRecord(d primary.Dimensions) secondary.DimensionsRecord {
	return secondary.DimensionsRecord{
		Insurer:      d.Insurer,
		VehicleModel: d.VehicleModel,
		Amount:       d.Amount,
	}
}

func entryToRecord(e ledger.Entry) *secondary.TransitionRecord {
	return &secondary.TransitionRecord{
		ID:            e.ID,
		JobID:         e.JobID,
		PreviousPhase: string(e.PreviousPhase),
		NewPhase:      string(e.NewPhase),
		Timestamp:     e.Timestamp,
		ActorID:       e.ActorID,
		Duration:      e.Duration,
	}
}

func recordToEntry(r *secondary.TransitionRecord) ledger.Entry {
	return ledger.Entry{
		ID:            r.ID,
		JobID:         r.JobID,
		PreviousPhase: phase.Phase(r.PreviousPhase),
		NewPhase:      phase.Phase(r.NewPhase),
		Timestamp:     r.Timestamp,
		ActorID:       r.ActorID,
		Duration:      r.Duration,
	}
}

func recordsToEntries(records []*secondary.TransitionRecord) []ledger.Entry {
	entries := make([]ledger.Entry, len(records))
	for i, r := range records {
		entries[i] = recordToEntry(r)
	}
	return entries
}

func entryToTransition(e ledger.Entry) *primary.Transition {
	return &primary.Transition{
		ID:            e.ID,
		JobID:         e.JobID,
		PreviousPhase: string(e.PreviousPhase),
		NewPhase:      string(e.NewPhase),
		Timestamp:     e.Timestamp,
		ActorID:       e.ActorID,
		Duration:      e.Duration,
	}
}

type noopPublisher struct{}

func (noopPublisher) PublishTransition(context.Context, secondary.TransitionEvent) error { return nil }

type noopMetrics struct{}

func (noopMetrics) TransitionRecorded(string, string) {}
func (noopMetrics) CorrectionApplied() {}
func (noopMetrics) CorrectionRejected(string) {}
func (noopMetrics) QueryServed(string, time.Duration) {}

// Ensure LedgerServiceImpl implements the interface.
var _ primary.LedgerService = (*LedgerServiceImpl)(nil)
