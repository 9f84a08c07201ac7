package cycletime

import (
	"time"

	"github.com/example/bark/internal/core/ledger"
	"github.com/example/bark/internal/core/phase"
)

// Occurrences maps a job ID to the instant it first reached some phase.
type Occurrences map[string]time.Time

// JobIDs returns the jobs present in o.
func (o Occurrences) JobIDs() []string {
	ids := make([]string, 0, len(o))
	for id := range o {
		ids = append(ids, id)
	}
	return ids
}

// Index answers first-occurrence lookups for a set of ledger entries.
// It is built in one pass; every lookup afterwards is a map access.
type Index struct {
	first map[string]map[phase.Phase]time.Time
}

// BuildIndex indexes entries by job and new phase, keeping the earliest timestamp.
// Input order does not matter.
func BuildIndex(entries []ledger.Entry) *Index {
	idx := &Index{first: make(map[string]map[phase.Phase]time.Time)}
	for _, e := range entries {
		byPhase, ok := idx.first[e.JobID]
		if !ok {
			byPhase = make(map[phase.Phase]time.Time)
			idx.first[e.JobID] = byPhase
		}
		if cur, seen := byPhase[e.NewPhase]; !seen || e.Timestamp.Before(cur) {
			byPhase[e.NewPhase] = e.Timestamp
		}
	}
	return idx
}

// FirstOccurrence returns when job first entered p.
func (idx *Index) FirstOccurrence(jobID string, p phase.Phase) (time.Time, bool) {
	t, ok := idx.first[jobID][p]
	return t, ok
}

// FirstMatching returns when job first entered any phase selected by f.
func (idx *Index) FirstMatching(jobID string, f phase.Filter) (time.Time, bool) {
	var (
		best  time.Time
		found bool
	)
	for _, p := range f.Phases() {
		if t, ok := idx.first[jobID][p]; ok && (!found || t.Before(best)) {
			best, found = t, true
		}
	}
	return best, found
}

// Occurrences projects the index onto one filter: job -> first matching instant.
func (idx *Index) Occurrences(f phase.Filter) Occurrences {
	out := make(Occurrences)
	for jobID := range idx.first {
		if t, ok := idx.FirstMatching(jobID, f); ok {
			out[jobID] = t
		}
	}
	return out
}
