// Package ledger contains the pure business rules of the phase transition ledger.
// Guards are pure functions that evaluate preconditions without side effects;
// the app layer loads the context, asks the guard, then performs the writes.
package ledger

import (
	"fmt"
	"time"

	"github.com/example/bark/internal/core/phase"
	"github.com/example/bark/internal/domain"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
	Kind    error // sentinel from the domain package, nil when allowed
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	if r.Kind == nil {
		return fmt.Errorf("%s", r.Reason)
	}
	return fmt.Errorf("%w: %s", r.Kind, r.Reason)
}

func deny(kind error, format string, args ...any) GuardResult {
	return GuardResult{Allowed: false, Reason: fmt.Sprintf(format, args...), Kind: kind}
}

// CreationContext provides context for the creation-record guard.
type CreationContext struct {
	JobID             string
	InitialPhase      phase.Phase
	HasCreationRecord bool
}

// TransitionContext provides context for the transition guard.
type TransitionContext struct {
	JobID             string
	NewPhase          phase.Phase
	HasCreationRecord bool
}

// CorrectionContext provides context for the timestamp correction guard.
type CorrectionContext struct {
	RecordID     string
	CanCorrect   bool    // capability granted by the external authorizer
	Sequence     []Entry // full history of the owning job, oldest first
	NewTimestamp time.Time
	Now          time.Time // bounds the last record; zero means unbounded
	Location     *time.Location
}

// CanRecordCreation evaluates whether a creation record can be appended.
// Rules:
// - Initial phase must exist in the catalog
// - Job must not already have a creation record
func CanRecordCreation(ctx CreationContext) GuardResult {
	if !phase.IsValid(ctx.InitialPhase) {
		return deny(domain.ErrInvalidPhase, "phase %q is not in the catalog", ctx.InitialPhase)
	}
	if ctx.HasCreationRecord {
		return deny(domain.ErrDuplicateCreation, "job %s already has a creation record", ctx.JobID)
	}
	return GuardResult{Allowed: true}
}

// CanRecordTransition evaluates whether a transition can be appended.
// Any catalog phase may follow any other.
// Rules:
// - New phase must exist in the catalog
// - Job must already have its creation record
func CanRecordTransition(ctx TransitionContext) GuardResult {
	if !phase.IsValid(ctx.NewPhase) {
		return deny(domain.ErrInvalidPhase, "phase %q is not in the catalog", ctx.NewPhase)
	}
	if !ctx.HasCreationRecord {
		return deny(domain.ErrMissingCreationRecord, "job %s has no creation record", ctx.JobID)
	}
	return GuardResult{Allowed: true}
}

// CanCorrectTimestamp evaluates whether a record's timestamp may be moved.
// Rules:
// - Actor must hold the history-correction capability
// - Record must belong to the sequence
// - New date must not be before the previous record's date
// - New date must not be after the next record's date
// - The last record must not move past today
//
// Dates are compared in ctx.Location; same-day corrections always pass.
func CanCorrectTimestamp(ctx CorrectionContext) GuardResult {
	if !ctx.CanCorrect {
		return deny(domain.ErrUnauthorized, "actor may not correct history")
	}

	i := IndexOf(ctx.Sequence, ctx.RecordID)
	if i < 0 {
		return deny(domain.ErrNotFound, "record %s not found in job history", ctx.RecordID)
	}

	loc := ctx.Location
	if loc == nil {
		loc = time.UTC
	}
	newDate := DateOf(ctx.NewTimestamp, loc)

	if i > 0 {
		prev := ctx.Sequence[i-1]
		if newDate.Before(DateOf(prev.Timestamp, loc)) {
			return deny(domain.ErrOrderingViolation,
				"timestamp cannot be before previous phase (%s on %s)",
				prev.NewPhase, DateOf(prev.Timestamp, loc))
		}
	}
	if i < len(ctx.Sequence)-1 {
		next := ctx.Sequence[i+1]
		if newDate.After(DateOf(next.Timestamp, loc)) {
			return deny(domain.ErrOrderingViolation,
				"timestamp cannot be after next phase (%s on %s)",
				next.NewPhase, DateOf(next.Timestamp, loc))
		}
	} else if !ctx.Now.IsZero() {
		today := DateOf(ctx.Now, loc)
		if newDate.After(today) {
			return deny(domain.ErrOrderingViolation,
				"timestamp of the latest record cannot be after today (%s)", today)
		}
	}

	return GuardResult{Allowed: true}
}
