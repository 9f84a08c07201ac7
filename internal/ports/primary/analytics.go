package primary

import (
	"context"
	"time"
)

// AnalyticsService defines the primary port for cycle-time queries.
// Every query is read-only; "no data" is reported as a nil average, never as an error.
type AnalyticsService interface {
	// AveragePhaseToPhase averages the time from first reaching one phase to first reaching another.
	AveragePhaseToPhase(ctx context.Context, req AverageRequest) (*AverageResult, error)

	// DailyTrend counts, per day, jobs whose first matching phase landed on that day.
	DailyTrend(ctx context.Context, req TrendRequest) (*TrendResult, error)

	// CycleTimes computes every standard dashboard metric for a window.
	CycleTimes(ctx context.Context, req WindowRequest) (*CycleTimesResult, error)

	// DwellTimes averages recorded durations by the phase exited.
	DwellTimes(ctx context.Context, req WindowRequest) (*DwellResult, error)

	// Distribution counts new jobs in the window by insurer or model.
	Distribution(ctx context.Context, req DistributionRequest) (*DistributionResult, error)

	// Table computes one of the named grouped averages.
	Table(ctx context.Context, req TableRequest) (*TableResult, error)

	// Summary reports the dashboard headline: open work, alerts, releases,
	// pipeline counters and billing totals.
	Summary(ctx context.Context, req WindowRequest) (*SummaryResult, error)
}

// WindowRequest selects a date range. Either a preset Range or both
// From and To (YYYY-MM-DD, inclusive) may be given; neither means the
// trailing default window ending today.
type WindowRequest struct {
	Range string `validate:"omitempty,oneof=today 7d month 30d"`
	From  string `validate:"omitempty,datetime=2006-01-02"`
	To    string `validate:"omitempty,datetime=2006-01-02"`
}

// AverageRequest contains parameters for a phase-to-phase average.
type AverageRequest struct {
	WindowRequest
	StartPhase string `validate:"required"`
	EndPhase   string `validate:"required"`
	Group      string `validate:"omitempty,oneof=insurer model price_range model_price"`
}

// TrendRequest contains parameters for a daily trend.
// Phase is an exact phase name or a category name.
type TrendRequest struct {
	WindowRequest
	Phase string `validate:"required"`
}

// DistributionRequest contains parameters for a distribution count.
type DistributionRequest struct {
	WindowRequest
	Group string `validate:"required,oneof=insurer model"`
}

// TableRequest names a standard grouped table.
type TableRequest struct {
	WindowRequest
	Name string `validate:"required"`
}

// Window describes the resolved date range of a result.
type Window struct {
	From string
	To   string
	Days int
	Zone string
}

// GroupAverage is one row of a grouped average.
type GroupAverage struct {
	Label   string
	Average *time.Duration
	Jobs    int
}

// AverageResult contains a phase-to-phase average.
type AverageResult struct {
	Window     Window
	StartPhase string
	EndPhase   string
	Average    *time.Duration // nil when no job contributed
	Jobs       int
	Groups     []GroupAverage // set only when a group was requested
}

// TrendPoint is one day of a trend.
type TrendPoint struct {
	Date  string
	Label string
	Count int
}

// TrendResult contains a zero-filled daily series.
type TrendResult struct {
	Window Window
	Filter string
	Points []TrendPoint
}

// MetricResult is one named dashboard metric.
type MetricResult struct {
	Name       string
	Label      string
	StartPhase string
	EndPhase   string
	Average    *time.Duration
	Jobs       int
}

// CycleTimesResult contains every standard metric.
type CycleTimesResult struct {
	Window  Window
	Metrics []MetricResult
}

// DwellRow is the average time spent in one phase.
type DwellRow struct {
	Phase   string
	Label   string
	Average *time.Duration
	Records int
}

// DwellResult contains one row per catalog phase.
type DwellResult struct {
	Window Window
	Rows   []DwellRow
}

// CountRow is one row of a distribution.
type CountRow struct {
	Label string
	Jobs  int
}

// DistributionResult contains job counts per group label.
type DistributionResult struct {
	Window Window
	Group  string
	Rows   []CountRow
}

// TableResult contains a named grouped average.
type TableResult struct {
	Window Window
	Name   string
	Title  string
	Metric string
	Group  string
	Rows   []GroupAverage
}

// PipelineCount is the number of jobs in one category that last moved inside the window.
type PipelineCount struct {
	Category string
	Label    string
	Jobs     int
}

// SummaryResult contains the dashboard headline.
type SummaryResult struct {
	Window         Window
	Jobs           int     // every job in the ledger
	Active         int     // jobs not yet released, written off or cancelled
	Alerts         int     // jobs whose LOA is currently rejected
	Released       int     // jobs first released during the last ReleasedDays days
	ReleasedDays   int
	Pipeline       []PipelineCount
	BillingPending float64 // amount of jobs pending billing that last moved inside the window
	Revenue        float64 // amount of every job
}
