package cycletime

import (
	"sort"
	"time"

	"github.com/example/bark/internal/core/ledger"
	"github.com/example/bark/internal/core/phase"
)

// Span is one job's contribution to a phase-to-phase average.
type Span struct {
	JobID string
	Start time.Time
	End   time.Time
}

// Elapsed returns End minus Start.
func (s Span) Elapsed() time.Duration {
	return s.End.Sub(s.Start)
}

// PairSpans joins start and end occurrences by job. A job contributes only when
// both exist, the end is not before the start, and the end falls inside w.
// The result is ordered by job ID.
func PairSpans(starts, ends Occurrences, w Window) []Span {
	spans := make([]Span, 0, len(ends))
	for jobID, end := range ends {
		start, ok := starts[jobID]
		if !ok || end.Before(start) || !w.Contains(end) {
			continue
		}
		spans = append(spans, Span{JobID: jobID, Start: start, End: end})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].JobID < spans[j].JobID })
	return spans
}

// Average returns the mean elapsed time of spans, or nil when there are none.
func Average(spans []Span) *time.Duration {
	if len(spans) == 0 {
		return nil
	}
	var sum time.Duration
	for _, s := range spans {
		sum += s.Elapsed()
	}
	avg := sum / time.Duration(len(spans))
	return &avg
}

// AveragePhaseToPhase computes the mean time from first reaching a to first
// reaching b over the jobs in idx, restricted to ends inside w.
func AveragePhaseToPhase(idx *Index, a, b phase.Phase, w Window) *time.Duration {
	return Average(PairSpans(idx.Occurrences(phase.ExactFilter(a)), idx.Occurrences(phase.ExactFilter(b)), w))
}

// GroupAverage is one row of a grouped average.
type GroupAverage struct {
	Label   string
	Average *time.Duration
	Jobs    int
}

// GroupedAverage partitions spans by label and averages each partition.
// Rows are sorted by average descending, ties broken by label ascending.
func GroupedAverage(spans []Span, labelOf func(jobID string) string) []GroupAverage {
	parts := make(map[string][]Span)
	for _, s := range spans {
		label := labelOf(s.JobID)
		parts[label] = append(parts[label], s)
	}

	rows := make([]GroupAverage, 0, len(parts))
	for label, group := range parts {
		rows = append(rows, GroupAverage{Label: label, Average: Average(group), Jobs: len(group)})
	}
	sort.Slice(rows, func(i, j int) bool {
		ai, aj := *rows[i].Average, *rows[j].Average
		if ai != aj {
			return ai > aj
		}
		return rows[i].Label < rows[j].Label
	})
	return rows
}

// TrendPoint is the number of jobs first reaching a phase on one day.
type TrendPoint struct {
	Date  ledger.Date
	Label string
	Count int
}

// DailyTrend buckets first occurrences by calendar day of w. Every day of the
// window gets a point, zero when no job landed on it.
func DailyTrend(firsts Occurrences, w Window) []TrendPoint {
	counts := make(map[ledger.Date]int)
	for _, t := range firsts {
		if w.Contains(t) {
			counts[ledger.DateOf(t, w.location())]++
		}
	}

	days := w.Dates()
	points := make([]TrendPoint, len(days))
	for i, d := range days {
		points[i] = TrendPoint{Date: d, Label: d.Label(), Count: counts[d]}
	}
	return points
}

// Count is one row of a distribution.
type Count struct {
	Label string
	Jobs  int
}

// Distribution counts the jobs whose occurrence falls inside w, per label.
// Rows are sorted by count descending, then label ascending.
func Distribution(firsts Occurrences, w Window, labelOf func(jobID string) string) []Count {
	counts := make(map[string]int)
	for jobID, t := range firsts {
		if w.Contains(t) {
			counts[labelOf(jobID)]++
		}
	}

	rows := make([]Count, 0, len(counts))
	for label, n := range counts {
		rows = append(rows, Count{Label: label, Jobs: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Jobs != rows[j].Jobs {
			return rows[i].Jobs > rows[j].Jobs
		}
		return rows[i].Label < rows[j].Label
	})
	return rows
}

// Dwell is the average time records spent in one phase before leaving it.
type Dwell struct {
	Phase   phase.Phase
	Average *time.Duration
	Records int
}

// DwellAverages averages stored durations by the phase exited, over records
// whose timestamp is inside w. Creation records carry no duration and are
// skipped. One row per catalog phase, in catalog order.
func DwellAverages(entries []ledger.Entry, w Window) []Dwell {
	sums := make(map[phase.Phase]time.Duration)
	counts := make(map[phase.Phase]int)
	for _, e := range entries {
		if e.Duration == nil || e.IsCreation() || !w.Contains(e.Timestamp) {
			continue
		}
		sums[e.PreviousPhase] += *e.Duration
		counts[e.PreviousPhase]++
	}

	all := phase.All()
	rows := make([]Dwell, len(all))
	for i, entry := range all {
		row := Dwell{Phase: entry.Phase, Records: counts[entry.Phase]}
		if row.Records > 0 {
			avg := sums[entry.Phase] / time.Duration(row.Records)
			row.Average = &avg
		}
		rows[i] = row
	}
	return rows
}

// Days converts a duration to fractional days.
func Days(d time.Duration) float64 {
	return d.Hours() / 24
}
