package ledger

import (
	"time"

	"github.com/example/bark/internal/core/phase"
)

// Timeline holds the day counters shown on a job card.
// Both are nil for cancelled jobs.
type Timeline struct {
	PhaseStartedAt     time.Time
	TotalDays          *int
	DaysInCurrentPhase *int
}

// BuildTimeline derives the day counters from a chronologically sorted history.
// Counts are inclusive calendar days in loc, never less than one.
func BuildTimeline(history []Entry, current phase.Phase, now time.Time, loc *time.Location) Timeline {
	var tl Timeline
	if len(history) == 0 {
		return tl
	}
	first := history[0]
	last := history[len(history)-1]
	tl.PhaseStartedAt = last.Timestamp

	if current == phase.Cancelled {
		return tl
	}

	today := DateOf(now, loc)
	total := inclusiveDays(DateOf(first.Timestamp, loc), today)
	inPhase := inclusiveDays(DateOf(last.Timestamp, loc), today)
	tl.TotalDays = &total
	tl.DaysInCurrentPhase = &inPhase
	return tl
}

func inclusiveDays(from, to Date) int {
	n := from.DaysUntil(to) + 1
	if n < 1 {
		return 1
	}
	return n
}
