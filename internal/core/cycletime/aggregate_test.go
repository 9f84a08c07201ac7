package cycletime

import (
	"testing"
	"time"

	"github.com/example/bark/internal/core/ledger"
	"github.com/example/bark/internal/core/phase"
)

var t0 = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func day(n int) time.Time { return t0.Add(time.Duration(n) * 24 * time.Hour) }

func march(t *testing.T) Window {
	t.Helper()
	w, err := NewWindow(ledger.Date{Year: 2025, Month: 3, Day: 1}, ledger.Date{Year: 2025, Month: 3, Day: 31}, time.UTC)
	if err != nil {
		t.Fatalf("NewWindow failed: %v", err)
	}
	return w
}

func rec(jobID string, p phase.Phase, ts time.Time) ledger.Entry {
	return ledger.Entry{JobID: jobID, NewPhase: p, Timestamp: ts}
}

func TestAveragePhaseToPhase(t *testing.T) {
	tests := []struct {
		name    string
		entries []ledger.Entry
		want    *time.Duration
	}{
		{
			name: "single job two days",
			entries: []ledger.Entry{
				rec("JOB-0001", phase.ApprovalLOAProcessing, t0),
				rec("JOB-0001", phase.ApprovalLOAApproved, day(2)),
			},
			want: durationPtr(48 * time.Hour),
		},
		{
			name: "end before start is excluded",
			entries: []ledger.Entry{
				rec("JOB-0001", phase.ApprovalLOAProcessing, t0),
				rec("JOB-0001", phase.ApprovalLOAApproved, day(2)),
				rec("JOB-0002", phase.ApprovalLOAApproved, day(1)),
				rec("JOB-0002", phase.ApprovalLOAProcessing, day(3)),
			},
			want: durationPtr(48 * time.Hour),
		},
		{
			name: "first occurrence wins over later repeats",
			entries: []ledger.Entry{
				rec("JOB-0001", phase.ApprovalLOAProcessing, t0),
				rec("JOB-0001", phase.ApprovalLOARevising, day(1)),
				rec("JOB-0001", phase.ApprovalLOAProcessing, day(2)),
				rec("JOB-0001", phase.ApprovalLOAApproved, day(4)),
				rec("JOB-0001", phase.ApprovalLOAApproved, day(9)),
			},
			want: durationPtr(96 * time.Hour),
		},
		{
			name: "averages across jobs",
			entries: []ledger.Entry{
				rec("JOB-0001", phase.ApprovalLOAProcessing, t0),
				rec("JOB-0001", phase.ApprovalLOAApproved, day(2)),
				rec("JOB-0002", phase.ApprovalLOAProcessing, t0),
				rec("JOB-0002", phase.ApprovalLOAApproved, day(4)),
			},
			want: durationPtr(72 * time.Hour),
		},
		{
			name: "end outside window is excluded",
			entries: []ledger.Entry{
				rec("JOB-0001", phase.ApprovalLOAProcessing, day(20)),
				rec("JOB-0001", phase.ApprovalLOAApproved, day(40)),
			},
		},
		{
			name: "missing start is no data",
			entries: []ledger.Entry{
				rec("JOB-0001", phase.ApprovalLOAApproved, day(2)),
			},
		},
		{
			name: "no jobs is no data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AveragePhaseToPhase(BuildIndex(tt.entries), phase.ApprovalLOAProcessing, phase.ApprovalLOAApproved, march(t))
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("got %v, want no data", *got)
			case tt.want != nil && got == nil:
				t.Errorf("got no data, want %v", *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Errorf("got %v, want %v", *got, *tt.want)
			}
		})
	}
}

func TestAverageNeverReturnsZeroForNoData(t *testing.T) {
	if got := Average(nil); got != nil {
		t.Errorf("Average(nil) = %v, want nil", *got)
	}
	zero := Average([]Span{{JobID: "JOB-0001", Start: t0, End: t0}})
	if zero == nil || *zero != 0 {
		t.Errorf("Average of a zero-length span = %v, want 0", zero)
	}
}

func TestAverageIsExactForLongSpans(t *testing.T) {
	long := 100 * 24 * time.Hour
	spans := []Span{
		{JobID: "JOB-0001", Start: t0, End: t0.Add(long + 1)},
		{JobID: "JOB-0002", Start: t0, End: t0.Add(long + 2)},
		{JobID: "JOB-0003", Start: t0, End: t0.Add(long + 3)},
	}
	got := Average(spans)
	if got == nil || *got != long+2 {
		t.Errorf("Average = %v, want %v", got, long+2)
	}
}

func TestGroupedAverageOrdering(t *testing.T) {
	spans := []Span{
		{JobID: "JOB-0001", Start: t0, End: day(2)},
		{JobID: "JOB-0002", Start: t0, End: day(4)},
		{JobID: "JOB-0003", Start: t0, End: day(2)},
		{JobID: "JOB-0004", Start: t0, End: day(6)},
	}
	labels := map[string]string{
		"JOB-0001": "MALAYAN",
		"JOB-0002": "FPG",
		"JOB-0003": "AXA",
		"JOB-0004": "FPG",
	}

	rows := GroupedAverage(spans, func(id string) string { return labels[id] })

	want := []struct {
		label string
		avg   time.Duration
		jobs  int
	}{
		{"FPG", 120 * time.Hour, 2},
		{"AXA", 48 * time.Hour, 1},
		{"MALAYAN", 48 * time.Hour, 1},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i, w := range want {
		if rows[i].Label != w.label || *rows[i].Average != w.avg || rows[i].Jobs != w.jobs {
			t.Errorf("rows[%d] = {%s %v %d}, want {%s %v %d}",
				i, rows[i].Label, *rows[i].Average, rows[i].Jobs, w.label, w.avg, w.jobs)
		}
	}
}

func TestDailyTrend(t *testing.T) {
	w, err := NewWindow(ledger.Date{Year: 2025, Month: 3, Day: 3}, ledger.Date{Year: 2025, Month: 3, Day: 9}, time.UTC)
	if err != nil {
		t.Fatalf("NewWindow failed: %v", err)
	}
	entries := []ledger.Entry{
		rec("JOB-0001", phase.PartsOrdered, t0),
		rec("JOB-0001", phase.PartsArrived, day(1)),
		rec("JOB-0002", phase.PartsAvailable, t0.Add(3*time.Hour)),
		rec("JOB-0003", phase.ApprovalEstimateDone, t0),
		rec("JOB-0003", phase.PartsOrdered, day(2)),
		rec("JOB-0004", phase.PartsOrdered, day(10)),
	}
	f, err := phase.ParseFilter("PARTS")
	if err != nil {
		t.Fatalf("ParseFilter failed: %v", err)
	}

	points := DailyTrend(BuildIndex(entries).Occurrences(f), w)

	if len(points) != 7 {
		t.Fatalf("got %d points, want 7", len(points))
	}
	wantCounts := []int{2, 0, 1, 0, 0, 0, 0}
	for i, n := range wantCounts {
		if points[i].Count != n {
			t.Errorf("points[%d] (%s) = %d, want %d", i, points[i].Date, points[i].Count, n)
		}
	}
	if points[0].Label != "Mar 03" || points[6].Date.String() != "2025-03-09" {
		t.Errorf("unexpected axis: first %q last %s", points[0].Label, points[6].Date)
	}
}

func TestDailyTrendSingleDay(t *testing.T) {
	d := ledger.DateOf(t0, time.UTC)
	w, _ := NewWindow(d, d, time.UTC)
	points := DailyTrend(nil, w)
	if len(points) != 1 || points[0].Count != 0 {
		t.Errorf("got %+v, want one zero point", points)
	}
}

func TestDistribution(t *testing.T) {
	firsts := Occurrences{
		"JOB-0001": t0,
		"JOB-0002": day(1),
		"JOB-0003": day(2),
		"JOB-0004": day(60),
	}
	labels := map[string]string{
		"JOB-0001": "AXA",
		"JOB-0002": "MALAYAN",
		"JOB-0003": "MALAYAN",
		"JOB-0004": "AXA",
	}

	rows := Distribution(firsts, march(t), func(id string) string { return labels[id] })

	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Label != "MALAYAN" || rows[0].Jobs != 2 {
		t.Errorf("rows[0] = %+v, want MALAYAN 2", rows[0])
	}
	if rows[1].Label != "AXA" || rows[1].Jobs != 1 {
		t.Errorf("rows[1] = %+v, want AXA 1", rows[1])
	}
}

func TestDwellAverages(t *testing.T) {
	d1, d2, d3 := 10*time.Hour, 20*time.Hour, 5*time.Hour
	entries := []ledger.Entry{
		{JobID: "JOB-0001", NewPhase: phase.PartsOrdered, Timestamp: t0},
		{JobID: "JOB-0001", PreviousPhase: phase.PartsOrdered, NewPhase: phase.PartsArrived, Timestamp: day(1), Duration: &d1},
		{JobID: "JOB-0002", PreviousPhase: phase.PartsOrdered, NewPhase: phase.PartsArrived, Timestamp: day(2), Duration: &d2},
		{JobID: "JOB-0003", PreviousPhase: phase.PartsOrdered, NewPhase: phase.PartsArrived, Timestamp: day(45), Duration: &d3},
	}

	rows := DwellAverages(entries, march(t))

	if len(rows) != len(phase.All()) {
		t.Fatalf("got %d rows, want one per catalog phase", len(rows))
	}
	for _, r := range rows {
		switch r.Phase {
		case phase.PartsOrdered:
			if r.Records != 2 || r.Average == nil || *r.Average != 15*time.Hour {
				t.Errorf("PARTS_ORDERED dwell = %+v, want 15h over 2 records", r)
			}
		default:
			if r.Average != nil {
				t.Errorf("%s dwell = %v, want no data", r.Phase, *r.Average)
			}
		}
	}
}

func TestStandardMetricsAndTables(t *testing.T) {
	if len(StandardMetrics()) != 5 {
		t.Errorf("got %d standard metrics, want 5", len(StandardMetrics()))
	}
	for _, m := range StandardMetrics() {
		if !phase.IsValid(m.From) || !phase.IsValid(m.To) {
			t.Errorf("metric %s references unknown phases", m.Name)
		}
	}
	for _, tbl := range StandardTables() {
		if _, ok := LookupMetric(tbl.Metric); !ok {
			t.Errorf("table %s references unknown metric %s", tbl.Name, tbl.Metric)
		}
	}
	if _, ok := LookupTable("repair_by_model_price"); !ok {
		t.Error("repair_by_model_price should exist")
	}
}

func TestDays(t *testing.T) {
	if got := Days(36 * time.Hour); got != 1.5 {
		t.Errorf("Days(36h) = %v, want 1.5", got)
	}
}

func durationPtr(d time.Duration) *time.Duration { return &d }
