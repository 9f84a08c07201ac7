package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/bark/internal/ports/primary"
)

type dimensionsBody struct {
	Insurer      string  `json:"insurer"`
	VehicleModel string  `json:"vehicle_model"`
	Amount       float64 `json:"amount"`
}

func (b dimensionsBody) toPrimary() primary.Dimensions {
	return primary.Dimensions{Insurer: b.Insurer, VehicleModel: b.VehicleModel, Amount: b.Amount}
}

type createJobBody struct {
	JobID        string `json:"job_id"`
	InitialPhase string `json:"initial_phase"`
	dimensionsBody
}

type transitionBody struct {
	Phase string `json:"phase"`
}

type correctionBody struct {
	Timestamp time.Time `json:"timestamp"`
}

type listJobsQuery struct {
	Phase   string `query:"phase"`
	Insurer string `query:"insurer"`
	Limit   int    `query:"limit"`
}

type historyQuery struct {
	Limit int `query:"limit"`
}

type jobResponse struct {
	ID                 string     `json:"id"`
	Phase              string     `json:"phase"`
	PhaseLabel         string     `json:"phase_label"`
	Category           string     `json:"category"`
	Insurer            string     `json:"insurer"`
	VehicleModel       string     `json:"vehicle_model"`
	Amount             float64    `json:"amount"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	PhaseStartedAt     *time.Time `json:"phase_started_at"`
	TotalDays          *int       `json:"total_days"`
	DaysInCurrentPhase *int       `json:"days_in_current_phase"`
}

func toJobResponse(j *primary.Job) jobResponse {
	r := jobResponse{
		ID:                 j.ID,
		Phase:              j.Phase,
		PhaseLabel:         j.PhaseLabel,
		Category:           j.Category,
		Insurer:            j.Dimensions.Insurer,
		VehicleModel:       j.Dimensions.VehicleModel,
		Amount:             j.Dimensions.Amount,
		CreatedAt:          j.CreatedAt,
		UpdatedAt:          j.UpdatedAt,
		TotalDays:          j.TotalDays,
		DaysInCurrentPhase: j.DaysInCurrentPhase,
	}
	if !j.PhaseStartedAt.IsZero() {
		started := j.PhaseStartedAt
		r.PhaseStartedAt = &started
	}
	return r
}

type transitionResponse struct {
	ID              string    `json:"id"`
	JobID           string    `json:"job_id"`
	PreviousPhase   *string   `json:"previous_phase"`
	NewPhase        string    `json:"new_phase"`
	Timestamp       time.Time `json:"timestamp"`
	ActorID         string    `json:"actor_id,omitempty"`
	DurationSeconds *float64  `json:"duration_seconds"`
}

func toTransitionResponse(t *primary.Transition) transitionResponse {
	r := transitionResponse{
		ID:              t.ID,
		JobID:           t.JobID,
		NewPhase:        t.NewPhase,
		Timestamp:       t.Timestamp,
		ActorID:         t.ActorID,
		DurationSeconds: seconds(t.Duration),
	}
	if t.PreviousPhase != "" {
		prev := t.PreviousPhase
		r.PreviousPhase = &prev
	}
	return r
}

type transitionResultResponse struct {
	Job        jobResponse         `json:"job"`
	Transition *transitionResponse `json:"transition"`
	Noop       bool                `json:"noop"`
}

// JobHandler serves the ledger endpoints.
type JobHandler struct {
	ledger primary.LedgerService
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(ledger primary.LedgerService) *JobHandler {
	return &JobHandler{ledger: ledger}
}

// Create handles POST /jobs.
func (h *JobHandler) Create(c echo.Context) error {
	var body createJobBody
	if err := (&echo.DefaultBinder{}).BindBody(c, &body); err != nil {
		return err
	}

	job, err := h.ledger.RecordCreation(c.Request().Context(), primary.CreateJobRequest{
		JobID:        body.JobID,
		InitialPhase: body.InitialPhase,
		Dimensions:   body.toPrimary(),
	})
	if err != nil {
		return err
	}
	return JSON(c, http.StatusCreated, toJobResponse(job))
}

// List handles GET /jobs.
func (h *JobHandler) List(c echo.Context) error {
	var q listJobsQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return err
	}

	jobs, err := h.ledger.ListJobs(c.Request().Context(), primary.JobFilters{
		Phase:   q.Phase,
		Insurer: q.Insurer,
		Limit:   q.Limit,
	})
	if err != nil {
		return err
	}

	out := make([]jobResponse, len(jobs))
	for i, j := range jobs {
		out[i] = toJobResponse(j)
	}
	return JSON(c, http.StatusOK, out)
}

// Get handles GET /jobs/:id.
func (h *JobHandler) Get(c echo.Context) error {
	job, err := h.ledger.GetJob(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, toJobResponse(job))
}

// UpdateDimensions handles PATCH /jobs/:id/dimensions.
func (h *JobHandler) UpdateDimensions(c echo.Context) error {
	var body dimensionsBody
	if err := (&echo.DefaultBinder{}).BindBody(c, &body); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.ledger.UpdateDimensions(ctx, c.Param("id"), body.toPrimary()); err != nil {
		return err
	}
	job, err := h.ledger.GetJob(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, toJobResponse(job))
}

// Transition handles POST /jobs/:id/transitions. A move to the current phase
// answers 200 with noop set; a recorded move answers 201.
func (h *JobHandler) Transition(c echo.Context) error {
	var body transitionBody
	if err := (&echo.DefaultBinder{}).BindBody(c, &body); err != nil {
		return err
	}

	res, err := h.ledger.RecordTransition(c.Request().Context(), primary.TransitionRequest{
		JobID:    c.Param("id"),
		NewPhase: body.Phase,
	})
	if err != nil {
		return err
	}

	out := transitionResultResponse{Job: toJobResponse(res.Job), Noop: res.Noop}
	if res.Noop {
		return JSON(c, http.StatusOK, out)
	}
	tr := toTransitionResponse(res.Transition)
	out.Transition = &tr
	return JSON(c, http.StatusCreated, out)
}

// History handles GET /jobs/:id/history.
func (h *JobHandler) History(c echo.Context) error {
	var q historyQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return err
	}

	history, err := h.ledger.GetHistory(c.Request().Context(), c.Param("id"), q.Limit)
	if err != nil {
		return err
	}

	out := make([]transitionResponse, len(history))
	for i, t := range history {
		out[i] = toTransitionResponse(t)
	}
	return JSON(c, http.StatusOK, out)
}

// Correct handles PATCH /transitions/:id.
func (h *JobHandler) Correct(c echo.Context) error {
	var body correctionBody
	if err := (&echo.DefaultBinder{}).BindBody(c, &body); err != nil {
		return err
	}
	if body.Timestamp.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "timestamp is required")
	}

	tr, err := h.ledger.CorrectTimestamp(c.Request().Context(), primary.CorrectionRequest{
		RecordID:     c.Param("id"),
		NewTimestamp: body.Timestamp,
	})
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, toTransitionResponse(tr))
}
