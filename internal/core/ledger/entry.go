package ledger

import (
	"sort"
	"time"

	"github.com/example/bark/internal/core/phase"
)

// Entry is one transition record of a job's history.
// PreviousPhase is empty only for the creation record.
type Entry struct {
	ID            string
	JobID         string
	PreviousPhase phase.Phase
	NewPhase      phase.Phase
	Timestamp     time.Time
	ActorID       string
	Duration      *time.Duration // dwell time in PreviousPhase, nil for creation
}

// IsCreation reports whether e is the job's creation record.
func (e Entry) IsCreation() bool {
	return e.PreviousPhase == ""
}

// PlanCreation builds the creation record for a new job.
func PlanCreation(jobID string, initial phase.Phase, actorID string, now time.Time) Entry {
	return Entry{
		JobID:     jobID,
		NewPhase:  initial,
		Timestamp: now,
		ActorID:   actorID,
	}
}

// PlanTransition builds the record for a phase change. The duration is the time
// spent in the phase being exited: now minus the tail record's timestamp.
func PlanTransition(jobID string, current, next phase.Phase, tail Entry, actorID string, now time.Time) Entry {
	d := now.Sub(tail.Timestamp)
	return Entry{
		JobID:         jobID,
		PreviousPhase: current,
		NewPhase:      next,
		Timestamp:     now,
		ActorID:       actorID,
		Duration:      &d,
	}
}

// IsNoop reports whether moving from current to next changes nothing.
func IsNoop(current, next phase.Phase) bool {
	return current == next
}

// SortChronological orders entries by timestamp. The sort is stable, so entries
// that share a timestamp keep their insertion order.
func SortChronological(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}

// Tail returns the most recent entry of a chronologically sorted history.
func Tail(entries []Entry) (Entry, bool) {
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[len(entries)-1], true
}

// IndexOf returns the position of the record with the given ID, or -1.
func IndexOf(entries []Entry, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// IsDateOrdered reports whether the entries' dates never decrease in loc.
func IsDateOrdered(entries []Entry, loc *time.Location) bool {
	for i := 1; i < len(entries); i++ {
		if DateOf(entries[i].Timestamp, loc).Before(DateOf(entries[i-1].Timestamp, loc)) {
			return false
		}
	}
	return true
}
