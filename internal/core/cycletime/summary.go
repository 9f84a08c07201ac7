package cycletime

import "github.com/example/bark/internal/core/phase"

// PhaseTotals counts the jobs currently in one phase and sums their amounts.
type PhaseTotals struct {
	Jobs   int
	Amount float64
}

// CategoryCount is the number of jobs currently in one category.
type CategoryCount struct {
	Category phase.Category
	Jobs     int
}

// Summary is the dashboard headline for the shop floor.
type Summary struct {
	Jobs           int
	Active         int
	Alerts         int
	Revenue        float64
	Pipeline       []CategoryCount
	BillingPending float64
}

// PipelineCategories are the stages shown as pipeline counters, in display order.
var PipelineCategories = []phase.Category{phase.CategoryParts, phase.CategoryApproval, phase.CategoryRepair}

// Summarize reduces per-phase totals to the dashboard headline. all covers
// every job; recent covers only jobs last moved inside the window, and feeds
// the pipeline counters and the pending billing total. Unknown phases count
// towards Jobs and Active but belong to no category.
func Summarize(all, recent map[phase.Phase]PhaseTotals) Summary {
	var s Summary
	for p, t := range all {
		s.Jobs += t.Jobs
		s.Revenue += t.Amount
		if !phase.IsClosed(p) {
			s.Active += t.Jobs
		}
		if p == phase.ApprovalLOARejected {
			s.Alerts += t.Jobs
		}
	}

	s.Pipeline = make([]CategoryCount, len(PipelineCategories))
	for i, c := range PipelineCategories {
		s.Pipeline[i].Category = c
	}
	for p, t := range recent {
		c, ok := phase.CategoryOf(p)
		if !ok {
			continue
		}
		for i := range s.Pipeline {
			if s.Pipeline[i].Category == c {
				s.Pipeline[i].Jobs += t.Jobs
			}
		}
		if p == phase.BillingPending {
			s.BillingPending += t.Amount
		}
	}
	return s
}
