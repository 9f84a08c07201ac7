package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/bark/internal/ctxutil"
	"github.com/example/bark/internal/domain"
	"github.com/example/bark/internal/ports/primary"
)

// ============================================================================
// Mock Implementations
// ============================================================================

type mockLedger struct {
	createReq  primary.CreateJobRequest
	createErr  error
	transition *primary.TransitionResult
	corrected  primary.CorrectionRequest
	actor      string
	correctErr error
	history    []*primary.Transition
	limit      int
	filters    primary.JobFilters
}

var testJob = &primary.Job{
	ID:         "JOB-0001",
	Phase:      "PARTS_ORDERED",
	PhaseLabel: "Parts - Ordered",
	Category:   "PARTS",
	Dimensions: primary.Dimensions{Insurer: "AXA", VehicleModel: "Vios", Amount: 45000},
	CreatedAt:  time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
	UpdatedAt:  time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
}

func (m *mockLedger) RecordCreation(ctx context.Context, req primary.CreateJobRequest) (*primary.Job, error) {
	m.createReq = req
	m.actor = ctxutil.ActorFromContext(ctx)
	if m.createErr != nil {
		return nil, m.createErr
	}
	return testJob, nil
}

func (m *mockLedger) RecordTransition(ctx context.Context, req primary.TransitionRequest) (*primary.TransitionResult, error) {
	if m.transition == nil {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, req.JobID)
	}
	return m.transition, nil
}

func (m *mockLedger) CorrectTimestamp(ctx context.Context, req primary.CorrectionRequest) (*primary.Transition, error) {
	m.corrected = req
	m.actor = ctxutil.ActorFromContext(ctx)
	if m.correctErr != nil {
		return nil, m.correctErr
	}
	return &primary.Transition{ID: req.RecordID, JobID: "JOB-0001", NewPhase: "PARTS_ARRIVED", Timestamp: req.NewTimestamp}, nil
}

func (m *mockLedger) GetHistory(ctx context.Context, jobID string, limit int) ([]*primary.Transition, error) {
	m.limit = limit
	return m.history, nil
}

func (m *mockLedger) GetJob(ctx context.Context, jobID string) (*primary.Job, error) {
	if jobID != testJob.ID {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	return testJob, nil
}

func (m *mockLedger) ListJobs(ctx context.Context, filters primary.JobFilters) ([]*primary.Job, error) {
	m.filters = filters
	return []*primary.Job{testJob}, nil
}

func (m *mockLedger) UpdateDimensions(ctx context.Context, jobID string, dims primary.Dimensions) error {
	return nil
}

type mockAnalytics struct {
	averageReq primary.AverageRequest
	summaryReq primary.WindowRequest
	err        error
}

func (m *mockAnalytics) AveragePhaseToPhase(ctx context.Context, req primary.AverageRequest) (*primary.AverageResult, error) {
	m.averageReq = req
	if m.err != nil {
		return nil, m.err
	}
	avg := 48 * time.Hour
	return &primary.AverageResult{
		Window:     primary.Window{From: "2025-03-01", To: "2025-03-31", Days: 31, Zone: "UTC"},
		StartPhase: req.StartPhase,
		EndPhase:   req.EndPhase,
		Average:    &avg,
		Jobs:       2,
	}, nil
}

func (m *mockAnalytics) DailyTrend(ctx context.Context, req primary.TrendRequest) (*primary.TrendResult, error) {
	return &primary.TrendResult{Filter: req.Phase, Points: []primary.TrendPoint{{Date: "2025-03-03", Label: "Mar 03", Count: 1}}}, nil
}

func (m *mockAnalytics) CycleTimes(ctx context.Context, req primary.WindowRequest) (*primary.CycleTimesResult, error) {
	return &primary.CycleTimesResult{Metrics: []primary.MetricResult{{Name: "loa_efficiency"}}}, nil
}

func (m *mockAnalytics) DwellTimes(ctx context.Context, req primary.WindowRequest) (*primary.DwellResult, error) {
	return &primary.DwellResult{}, nil
}

func (m *mockAnalytics) Distribution(ctx context.Context, req primary.DistributionRequest) (*primary.DistributionResult, error) {
	return &primary.DistributionResult{Group: req.Group, Rows: []primary.CountRow{{Label: "AXA", Jobs: 3}}}, nil
}

func (m *mockAnalytics) Table(ctx context.Context, req primary.TableRequest) (*primary.TableResult, error) {
	return &primary.TableResult{Name: req.Name}, nil
}

func (m *mockAnalytics) Summary(ctx context.Context, req primary.WindowRequest) (*primary.SummaryResult, error) {
	m.summaryReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &primary.SummaryResult{
		Window:         primary.Window{From: "2025-03-01", To: "2025-03-31", Days: 31, Zone: "UTC"},
		Jobs:           12,
		Active:         9,
		Alerts:         2,
		Released:       3,
		ReleasedDays:   7,
		Pipeline:       []primary.PipelineCount{{Category: "PARTS", Label: "Parts Procurement", Jobs: 4}},
		BillingPending: 125000.5,
		Revenue:        900000,
	}, nil
}

// ============================================================================
// Helpers
// ============================================================================

func newTestServer(ledger *mockLedger, analytics *mockAnalytics) http.Handler {
	return NewServer(ServerDeps{
		Ledger:    ledger,
		Analytics: analytics,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "bark_up 1\n")
		}),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func do(t *testing.T, h http.Handler, method, target, body string, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("invalid JSON response: %v\n%s", err, rec.Body.String())
		}
	}
	return rec, env
}

func errorCode(env map[string]any) string {
	e, _ := env["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

// ============================================================================
// Tests
// ============================================================================

func TestCreateJob(t *testing.T) {
	ledger := &mockLedger{}
	srv := newTestServer(ledger, &mockAnalytics{})

	rec, env := do(t, srv, http.MethodPost, "/api/v1/jobs",
		`{"job_id":"JOB-0001","initial_phase":"PARTS_ORDERED","insurer":"AXA","vehicle_model":"Vios","amount":45000}`,
		HeaderActorID, "alice")

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ledger.createReq.Dimensions.Insurer != "AXA" || ledger.createReq.InitialPhase != "PARTS_ORDERED" {
		t.Errorf("request = %+v", ledger.createReq)
	}
	if ledger.actor != "alice" {
		t.Errorf("actor = %q, want alice", ledger.actor)
	}
	data := env["data"].(map[string]any)
	if data["id"] != "JOB-0001" || data["total_days"] != nil {
		t.Errorf("data = %v", data)
	}
}

func TestTransitionStatus(t *testing.T) {
	d := 26*time.Hour + 15*time.Minute
	recorded := &primary.TransitionResult{
		Job: testJob,
		Transition: &primary.Transition{
			ID: "TR-0002", JobID: "JOB-0001", PreviousPhase: "PARTS_ORDERED", NewPhase: "PARTS_ARRIVED", Duration: &d,
		},
	}

	tests := []struct {
		name       string
		result     *primary.TransitionResult
		wantStatus int
		wantNoop   bool
	}{
		{"recorded", recorded, http.StatusCreated, false},
		{"noop", &primary.TransitionResult{Job: testJob, Noop: true}, http.StatusOK, true},
		{"unknown job", nil, http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&mockLedger{transition: tt.result}, &mockAnalytics{})
			rec, env := do(t, srv, http.MethodPost, "/api/v1/jobs/JOB-0001/transitions", `{"phase":"PARTS_ARRIVED"}`)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus >= 400 {
				return
			}
			data := env["data"].(map[string]any)
			if data["noop"] != tt.wantNoop {
				t.Errorf("noop = %v, want %v", data["noop"], tt.wantNoop)
			}
			if !tt.wantNoop {
				tr := data["transition"].(map[string]any)
				if tr["duration_seconds"] != d.Seconds() {
					t.Errorf("duration_seconds = %v, want %v", tr["duration_seconds"], d.Seconds())
				}
			}
		})
	}
}

func TestCorrectTimestamp(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"applied", `{"timestamp":"2025-03-04T10:00:00+08:00"}`, nil, http.StatusOK, ""},
		{"ordering violation", `{"timestamp":"2025-03-09T10:00:00Z"}`, fmt.Errorf("%w: after next phase", domain.ErrOrderingViolation), http.StatusUnprocessableEntity, "ordering_violation"},
		{"not an editor", `{"timestamp":"2025-03-04T10:00:00Z"}`, fmt.Errorf("%w: actor may not correct history", domain.ErrUnauthorized), http.StatusForbidden, "forbidden"},
		{"missing timestamp", `{}`, nil, http.StatusBadRequest, "Bad Request"},
		{"malformed body", `{"timestamp":"yesterday"}`, nil, http.StatusBadRequest, "Bad Request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &mockLedger{correctErr: tt.err}
			srv := newTestServer(ledger, &mockAnalytics{})

			rec, env := do(t, srv, http.MethodPatch, "/api/v1/transitions/TR-0002", tt.body, HeaderActorID, "admin")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" && errorCode(env) != tt.wantCode {
				t.Errorf("code = %q, want %q", errorCode(env), tt.wantCode)
			}
		})
	}

	t.Run("timestamp reaches the service in its instant", func(t *testing.T) {
		ledger := &mockLedger{}
		srv := newTestServer(ledger, &mockAnalytics{})
		do(t, srv, http.MethodPatch, "/api/v1/transitions/TR-0002", `{"timestamp":"2025-03-04T10:00:00+08:00"}`, HeaderActorID, "admin")

		want := time.Date(2025, 3, 4, 2, 0, 0, 0, time.UTC)
		if !ledger.corrected.NewTimestamp.Equal(want) || ledger.corrected.RecordID != "TR-0002" {
			t.Errorf("correction = %+v", ledger.corrected)
		}
		if ledger.actor != "admin" {
			t.Errorf("actor = %q", ledger.actor)
		}
	})
}

func TestListAndHistoryQueries(t *testing.T) {
	ledger := &mockLedger{history: []*primary.Transition{{ID: "TR-0001", JobID: "JOB-0001", NewPhase: "PARTS_ORDERED"}}}
	srv := newTestServer(ledger, &mockAnalytics{})

	rec, _ := do(t, srv, http.MethodGet, "/api/v1/jobs?phase=PARTS&insurer=AXA&limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ledger.filters != (primary.JobFilters{Phase: "PARTS", Insurer: "AXA", Limit: 5}) {
		t.Errorf("filters = %+v", ledger.filters)
	}

	rec, env := do(t, srv, http.MethodGet, "/api/v1/jobs/JOB-0001/history?limit=3", "")
	if rec.Code != http.StatusOK || ledger.limit != 3 {
		t.Fatalf("status = %d, limit = %d", rec.Code, ledger.limit)
	}
	first := env["data"].([]any)[0].(map[string]any)
	if first["previous_phase"] != nil || first["duration_seconds"] != nil {
		t.Errorf("creation record should have null previous phase and duration: %v", first)
	}

	rec, _ = do(t, srv, http.MethodGet, "/api/v1/jobs?limit=many", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}

	rec, env = do(t, srv, http.MethodGet, "/api/v1/jobs/JOB-0404", "")
	if rec.Code != http.StatusNotFound || errorCode(env) != "not_found" {
		t.Errorf("unknown job = %d %q", rec.Code, errorCode(env))
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	analytics := &mockAnalytics{}
	srv := newTestServer(&mockLedger{}, analytics)

	rec, env := do(t, srv, http.MethodGet,
		"/api/v1/analytics/average?start=APPROVAL_LOA_PROCESSING&end=APPROVAL_LOA_APPROVED&group=insurer&from=2025-03-01&to=2025-03-31", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	want := primary.AverageRequest{
		WindowRequest: primary.WindowRequest{From: "2025-03-01", To: "2025-03-31"},
		StartPhase:    "APPROVAL_LOA_PROCESSING",
		EndPhase:      "APPROVAL_LOA_APPROVED",
		Group:         "insurer",
	}
	if analytics.averageReq != want {
		t.Errorf("request = %+v", analytics.averageReq)
	}
	data := env["data"].(map[string]any)
	if data["average_days"] != 2.0 || data["jobs"] != 2.0 {
		t.Errorf("data = %v", data)
	}

	paths := []string{
		"/api/v1/analytics/trend?phase=PARTS&range=7d",
		"/api/v1/analytics/cycle-times?range=month",
		"/api/v1/analytics/dwell",
		"/api/v1/analytics/distribution?group=insurer",
		"/api/v1/analytics/tables/loa_by_insurer",
	}
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			rec, _ := do(t, srv, http.MethodGet, p, "")
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d (%s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSummaryEndpoint(t *testing.T) {
	analytics := &mockAnalytics{}
	srv := newTestServer(&mockLedger{}, analytics)

	rec, env := do(t, srv, http.MethodGet, "/api/v1/analytics/summary?range=month", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if analytics.summaryReq != (primary.WindowRequest{Range: "month"}) {
		t.Errorf("request = %+v", analytics.summaryReq)
	}

	data := env["data"].(map[string]any)
	checks := map[string]float64{
		"jobs":                  12,
		"active":                9,
		"alerts":                2,
		"released":              3,
		"released_days":         7,
		"billing_pending_total": 125000.5,
		"revenue":               900000,
	}
	for key, want := range checks {
		if data[key] != want {
			t.Errorf("%s = %v, want %v", key, data[key], want)
		}
	}
	pipeline, _ := data["pipeline"].([]any)
	if len(pipeline) != 1 {
		t.Fatalf("pipeline = %v", data["pipeline"])
	}
	row := pipeline[0].(map[string]any)
	if row["category"] != "PARTS" || row["jobs"] != 4.0 {
		t.Errorf("pipeline row = %v", row)
	}

	analytics.err = fmt.Errorf("%w: unknown range", domain.ErrInvalidWindow)
	rec, _ = do(t, srv, http.MethodGet, "/api/v1/analytics/summary?range=fortnight", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &domain.ValidationError{Field: "EndPhase", Message: "failed on 'required' validation"}, http.StatusBadRequest, "validation_error"},
		{"invalid window", fmt.Errorf("%w: end before start", domain.ErrInvalidWindow), http.StatusBadRequest, "invalid_window"},
		{"invalid phase", fmt.Errorf("%w: NOPE", domain.ErrInvalidPhase), http.StatusBadRequest, "invalid_phase"},
		{"duplicate creation", fmt.Errorf("%w: JOB-0001", domain.ErrDuplicateCreation), http.StatusConflict, "conflict"},
		{"internal", errors.New("database is locked"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&mockLedger{}, &mockAnalytics{err: tt.err})
			rec, env := do(t, srv, http.MethodGet, "/api/v1/analytics/average?start=A&end=B", "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if errorCode(env) != tt.wantCode {
				t.Errorf("code = %q, want %q", errorCode(env), tt.wantCode)
			}
		})
	}

	t.Run("validation details carry the field", func(t *testing.T) {
		srv := newTestServer(&mockLedger{}, &mockAnalytics{err: &domain.ValidationError{Field: "Group", Message: "failed on 'oneof' validation"}})
		_, env := do(t, srv, http.MethodGet, "/api/v1/analytics/average", "")
		details := env["error"].(map[string]any)["details"].([]any)
		if details[0].(map[string]any)["field"] != "Group" {
			t.Errorf("details = %v", details)
		}
	})
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(&mockLedger{}, &mockAnalytics{})

	rec, env := do(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || env["data"].(map[string]any)["status"] != "ok" {
		t.Errorf("health = %d %v", rec.Code, env)
	}

	rec, _ = do(t, srv, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "bark_up 1") {
		t.Errorf("metrics = %d %q", rec.Code, rec.Body.String())
	}

	rec, env = do(t, srv, http.MethodGet, "/nowhere", "")
	if rec.Code != http.StatusNotFound || errorCode(env) != "Not Found" {
		t.Errorf("unknown route = %d %q", rec.Code, errorCode(env))
	}
}
