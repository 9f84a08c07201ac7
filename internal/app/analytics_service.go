package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/bark/internal/core/cycletime"
	"github.com/example/bark/internal/core/ledger"
	"github.com/example/bark/internal/core/phase"
	"github.com/example/bark/internal/domain"
	"github.com/example/bark/internal/ports/primary"
	"github.com/example/bark/internal/ports/secondary"
)

// DefaultWindowDays is the trailing window used when a query names no range.
const DefaultWindowDays = 30

// ReleasedDays is the trailing period, in days, of the released counter.
const ReleasedDays = 7

// DefaultMaxWindowDays caps the length of any explicit window.
const DefaultMaxWindowDays = 366

// AnalyticsDeps holds the collaborators of the analytics service.
type AnalyticsDeps struct {
	Jobs        secondary.JobRepository
	Transitions secondary.TransitionRepository
	Clock       secondary.Clock
	Rules       cycletime.Rules
	Location    *time.Location
	WindowDays  int
	MaxWindow   int // longest window in days; 0 means DefaultMaxWindowDays
	Metrics     secondary.Metrics
	Logger      *slog.Logger
}

// AnalyticsServiceImpl implements the AnalyticsService interface.
// It reads first-occurrence projections from the store and leaves the
// arithmetic to the cycletime package.
type AnalyticsServiceImpl struct {
	jobs        secondary.JobRepository
	transitions secondary.TransitionRepository
	clock       secondary.Clock
	rules       cycletime.Rules
	loc         *time.Location
	windowDays  int
	maxWindow   int
	metrics     secondary.Metrics
	logger      *slog.Logger
	validator   *RequestValidator
}

// NewAnalyticsService creates a new AnalyticsService with injected dependencies.
func NewAnalyticsService(deps AnalyticsDeps) *AnalyticsServiceImpl {
	s := &AnalyticsServiceImpl{
		jobs:        deps.Jobs,
		transitions: deps.Transitions,
		clock:       deps.Clock,
		rules:       deps.Rules,
		loc:         deps.Location,
		windowDays:  deps.WindowDays,
		maxWindow:   deps.MaxWindow,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		validator:   NewRequestValidator(),
	}
	if len(s.rules.PriceBrackets) == 0 {
		s.rules = cycletime.DefaultRules()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.windowDays <= 0 {
		s.windowDays = DefaultWindowDays
	}
	if s.maxWindow <= 0 {
		s.maxWindow = DefaultMaxWindowDays
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if compiled, err := s.rules.Compile(); err != nil {
		s.logger.Warn("normalization rules rejected, using defaults", "error", err)
		s.rules = cycletime.DefaultRules()
	} else {
		s.rules = compiled
	}
	return s
}

// AveragePhaseToPhase averages, over jobs whose first EndPhase lands in the
// window, the time since their first StartPhase.
func (s *AnalyticsServiceImpl) AveragePhaseToPhase(ctx context.Context, req primary.AverageRequest) (*primary.AverageResult, error) {
	defer s.observe("average", time.Now())

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	w, err := s.resolveWindow(req.WindowRequest)
	if err != nil {
		return nil, err
	}
	from, err := parsePhase("StartPhase", req.StartPhase)
	if err != nil {
		return nil, err
	}
	to, err := parsePhase("EndPhase", req.EndPhase)
	if err != nil {
		return nil, err
	}

	spans, err := s.spans(ctx, from, to, w)
	if err != nil {
		return nil, err
	}

	result := &primary.AverageResult{
		Window:     s.toWindow(w),
		StartPhase: string(from),
		EndPhase:   string(to),
		Average:    cycletime.Average(spans),
		Jobs:       len(spans),
	}

	if req.Group != "" {
		key, err := cycletime.ParseGroupKey(req.Group)
		if err != nil {
			return nil, &domain.ValidationError{Field: "Group", Message: err.Error()}
		}
		groups, err := s.group(ctx, spans, key)
		if err != nil {
			return nil, err
		}
		result.Groups = groups
	}
	return result, nil
}

// DailyTrend counts, per day of the window, jobs whose first matching phase
// landed on that day.
func (s *AnalyticsServiceImpl) DailyTrend(ctx context.Context, req primary.TrendRequest) (*primary.TrendResult, error) {
	defer s.observe("trend", time.Now())

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	w, err := s.resolveWindow(req.WindowRequest)
	if err != nil {
		return nil, err
	}
	filter, err := phase.ParseFilter(req.Phase)
	if err != nil {
		return nil, &domain.ValidationError{Field: "Phase", Message: err.Error()}
	}

	start, end := w.Bounds()
	firsts, err := s.transitions.FirstOccurrences(ctx, secondary.OccurrenceQuery{
		Phases: phaseStrings(filter.Phases()),
		Start:  start,
		End:    end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load occurrences: %w", err)
	}

	points := cycletime.DailyTrend(cycletime.Occurrences(firsts), w)
	result := &primary.TrendResult{
		Window: s.toWindow(w),
		Filter: filter.String(),
		Points: make([]primary.TrendPoint, len(points)),
	}
	for i, p := range points {
		result.Points[i] = primary.TrendPoint{Date: p.Date.String(), Label: p.Label, Count: p.Count}
	}
	return result, nil
}

// CycleTimes computes every standard metric for the window, one query per
// metric, concurrently.
func (s *AnalyticsServiceImpl) CycleTimes(ctx context.Context, req primary.WindowRequest) (*primary.CycleTimesResult, error) {
	defer s.observe("cycle_times", time.Now())

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	w, err := s.resolveWindow(req)
	if err != nil {
		return nil, err
	}

	metrics := cycletime.StandardMetrics()
	results := make([]primary.MetricResult, len(metrics))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range metrics {
		g.Go(func() error {
			spans, err := s.spans(gctx, m.From, m.To, w)
			if err != nil {
				return fmt.Errorf("metric %s: %w", m.Name, err)
			}
			results[i] = primary.MetricResult{
				Name:       m.Name,
				Label:      m.Label,
				StartPhase: string(m.From),
				EndPhase:   string(m.To),
				Average:    cycletime.Average(spans),
				Jobs:       len(spans),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &primary.CycleTimesResult{Window: s.toWindow(w), Metrics: results}, nil
}

// DwellTimes averages stored durations by the phase that was exited.
func (s *AnalyticsServiceImpl) DwellTimes(ctx context.Context, req primary.WindowRequest) (*primary.DwellResult, error) {
	defer s.observe("dwell", time.Now())

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	w, err := s.resolveWindow(req)
	if err != nil {
		return nil, err
	}

	start, end := w.Bounds()
	records, err := s.transitions.ListWithDuration(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load durations: %w", err)
	}

	dwell := cycletime.DwellAverages(recordsToEntries(records), w)
	result := &primary.DwellResult{Window: s.toWindow(w), Rows: make([]primary.DwellRow, len(dwell))}
	for i, d := range dwell {
		result.Rows[i] = primary.DwellRow{
			Phase:   string(d.Phase),
			Label:   phase.Label(d.Phase),
			Average: d.Average,
			Records: d.Records,
		}
	}
	return result, nil
}

// Distribution counts jobs entering the pipeline in the window, by insurer or model.
func (s *AnalyticsServiceImpl) Distribution(ctx context.Context, req primary.DistributionRequest) (*primary.DistributionResult, error) {
	defer s.observe("distribution", time.Now())

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	w, err := s.resolveWindow(req.WindowRequest)
	if err != nil {
		return nil, err
	}
	key, err := cycletime.ParseGroupKey(req.Group)
	if err != nil {
		return nil, &domain.ValidationError{Field: "Group", Message: err.Error()}
	}

	start, end := w.Bounds()
	firsts, err := s.transitions.FirstOccurrences(ctx, secondary.OccurrenceQuery{
		Phases: []string{string(phase.ApprovalEstimateDone)},
		Start:  start,
		End:    end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load occurrences: %w", err)
	}

	occurrences := cycletime.Occurrences(firsts)
	labelOf, err := s.labeler(ctx, occurrences.JobIDs(), key)
	if err != nil {
		return nil, err
	}

	counts := cycletime.Distribution(occurrences, w, labelOf)
	result := &primary.DistributionResult{Window: s.toWindow(w), Group: string(key), Rows: make([]primary.CountRow, len(counts))}
	for i, c := range counts {
		result.Rows[i] = primary.CountRow{Label: c.Label, Jobs: c.Jobs}
	}
	return result, nil
}

// Table computes one of the standard grouped averages.
func (s *AnalyticsServiceImpl) Table(ctx context.Context, req primary.TableRequest) (*primary.TableResult, error) {
	defer s.observe("table", time.Now())

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	table, ok := cycletime.LookupTable(strings.ToLower(strings.TrimSpace(req.Name)))
	if !ok {
		return nil, &domain.ValidationError{Field: "Name", Message: fmt.Sprintf("unknown table %q", req.Name)}
	}
	metric, _ := cycletime.LookupMetric(table.Metric)

	w, err := s.resolveWindow(req.WindowRequest)
	if err != nil {
		return nil, err
	}
	spans, err := s.spans(ctx, metric.From, metric.To, w)
	if err != nil {
		return nil, err
	}
	rows, err := s.group(ctx, spans, table.Group)
	if err != nil {
		return nil, err
	}

	return &primary.TableResult{
		Window: s.toWindow(w),
		Name:   table.Name,
		Title:  table.Title,
		Metric: table.Metric,
		Group:  string(table.Group),
		Rows:   rows,
	}, nil
}

// Summary loads per-phase totals for every job and for jobs last moved inside
// the window, plus the jobs first released in the last ReleasedDays days.
func (s *AnalyticsServiceImpl) Summary(ctx context.Context, req primary.WindowRequest) (*primary.SummaryResult, error) {
	defer s.observe("summary", time.Now())

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	w, err := s.resolveWindow(req)
	if err != nil {
		return nil, err
	}
	start, end := w.Bounds()
	now := s.clock.Now()

	var (
		all, recent map[string]secondary.PhaseCount
		released    map[string]time.Time
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if all, err = s.jobs.CountByPhase(gctx, secondary.PhaseCountQuery{}); err != nil {
			return fmt.Errorf("failed to count jobs: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if recent, err = s.jobs.CountByPhase(gctx, secondary.PhaseCountQuery{UpdatedFrom: start, UpdatedTo: end}); err != nil {
			return fmt.Errorf("failed to count jobs in window: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		released, err = s.transitions.FirstOccurrences(gctx, secondary.OccurrenceQuery{
			Phases: phaseStrings(phase.Released()),
			Start:  now.Add(-ReleasedDays * 24 * time.Hour),
		})
		if err != nil {
			return fmt.Errorf("failed to load releases: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum := cycletime.Summarize(phaseTotals(all), phaseTotals(recent))
	result := &primary.SummaryResult{
		Window:         s.toWindow(w),
		Jobs:           sum.Jobs,
		Active:         sum.Active,
		Alerts:         sum.Alerts,
		Released:       len(released),
		ReleasedDays:   ReleasedDays,
		Pipeline:       make([]primary.PipelineCount, len(sum.Pipeline)),
		BillingPending: sum.BillingPending,
		Revenue:        sum.Revenue,
	}
	for i, c := range sum.Pipeline {
		result.Pipeline[i] = primary.PipelineCount{Category: string(c.Category), Label: c.Category.Label(), Jobs: c.Jobs}
	}
	return result, nil
}

// Helper methods

// spans loads the first `to` occurrences ending inside w, then the first
// `from` occurrences of those same jobs, and pairs them.
func (s *AnalyticsServiceImpl) spans(ctx context.Context, from, to phase.Phase, w cycletime.Window) ([]cycletime.Span, error) {
	start, end := w.Bounds()
	ends, err := s.transitions.FirstOccurrences(ctx, secondary.OccurrenceQuery{
		Phases: []string{string(to)},
		Start:  start,
		End:    end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load end occurrences: %w", err)
	}
	if len(ends) == 0 {
		return nil, nil
	}

	endOccurrences := cycletime.Occurrences(ends)
	starts, err := s.transitions.FirstOccurrences(ctx, secondary.OccurrenceQuery{
		Phases: []string{string(from)},
		JobIDs: endOccurrences.JobIDs(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load start occurrences: %w", err)
	}

	return cycletime.PairSpans(cycletime.Occurrences(starts), endOccurrences, w), nil
}

func (s *AnalyticsServiceImpl) group(ctx context.Context, spans []cycletime.Span, key cycletime.GroupKey) ([]primary.GroupAverage, error) {
	ids := make([]string, len(spans))
	for i, sp := range spans {
		ids[i] = sp.JobID
	}
	labelOf, err := s.labeler(ctx, ids, key)
	if err != nil {
		return nil, err
	}

	groups := cycletime.GroupedAverage(spans, labelOf)
	out := make([]primary.GroupAverage, len(groups))
	for i, g := range groups {
		out[i] = primary.GroupAverage{Label: g.Label, Average: g.Average, Jobs: g.Jobs}
	}
	return out, nil
}

// labeler loads the grouping attributes of jobIDs and returns a label func
// over them. Jobs without a row fall into the unknown bucket.
func (s *AnalyticsServiceImpl) labeler(ctx context.Context, jobIDs []string, key cycletime.GroupKey) (func(string) string, error) {
	dims, err := s.jobs.Dimensions(ctx, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load job dimensions: %w", err)
	}
	return func(jobID string) string {
		d := dims[jobID]
		return s.rules.Label(key, cycletime.Dimensions{
			Insurer:      d.Insurer,
			VehicleModel: d.VehicleModel,
			Amount:       d.Amount,
		})
	}, nil
}

// resolveWindow turns a request into a window in the configured zone.
// A preset wins over explicit dates; neither means the trailing default.
func (s *AnalyticsServiceImpl) resolveWindow(req primary.WindowRequest) (cycletime.Window, error) {
	today := ledger.DateOf(s.clock.Now(), s.loc)

	if req.Range != "" {
		return cycletime.ResolvePreset(req.Range, today, s.loc, s.windowDays)
	}
	if req.From == "" && req.To == "" {
		return cycletime.Trailing(today, s.windowDays, s.loc), nil
	}
	if req.From == "" || req.To == "" {
		return cycletime.Window{}, fmt.Errorf("%w: both from and to are required", domain.ErrInvalidWindow)
	}

	from, err := ledger.ParseDate(req.From)
	if err != nil {
		return cycletime.Window{}, fmt.Errorf("%w: %v", domain.ErrInvalidWindow, err)
	}
	to, err := ledger.ParseDate(req.To)
	if err != nil {
		return cycletime.Window{}, fmt.Errorf("%w: %v", domain.ErrInvalidWindow, err)
	}
	w, err := cycletime.NewWindow(from, to, s.loc)
	if err != nil {
		return cycletime.Window{}, err
	}
	if w.Days() > s.maxWindow {
		return cycletime.Window{}, fmt.Errorf("%w: %d days exceeds the %d-day limit", domain.ErrInvalidWindow, w.Days(), s.maxWindow)
	}
	return w, nil
}

func (s *AnalyticsServiceImpl) toWindow(w cycletime.Window) primary.Window {
	return primary.Window{
		From: w.From.String(),
		To:   w.To.String(),
		Days: w.Days(),
		Zone: s.loc.String(),
	}
}

func (s *AnalyticsServiceImpl) observe(query string, started time.Time) {
	elapsed := time.Since(started)
	s.metrics.QueryServed(query, elapsed)
	s.logger.Debug("analytics query served", "query", query, "elapsed", elapsed)
}

func parsePhase(field, raw string) (phase.Phase, error) {
	p, ok := phase.Parse(raw)
	if !ok {
		return "", fmt.Errorf("%w: %s %q is not in the catalog", domain.ErrInvalidPhase, field, raw)
	}
	return p, nil
}

func phaseStrings(phases []phase.Phase) []string {
	out := make([]string, len(phases))
	for i, p := range phases {
		out[i] = string(p)
	}
	return out
}

func phaseTotals(counts map[string]secondary.PhaseCount) map[phase.Phase]cycletime.PhaseTotals {
	out := make(map[phase.Phase]cycletime.PhaseTotals, len(counts))
	for p, c := range counts {
		out[phase.Phase(p)] = cycletime.PhaseTotals{Jobs: c.Jobs, Amount: c.Amount}
	}
	return out
}

// Ensure AnalyticsServiceImpl implements the interface.
var _ primary.AnalyticsService = (*AnalyticsServiceImpl)(nil)
