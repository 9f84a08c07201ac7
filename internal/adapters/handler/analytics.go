package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/bark/internal/ports/primary"
)

// WindowQuery holds the date range parameters shared by every analytics endpoint.
type WindowQuery struct {
	Range string `query:"range"`
	From  string `query:"from"`
	To    string `query:"to"`
}

func (q WindowQuery) toPrimary() primary.WindowRequest {
	return primary.WindowRequest{Range: q.Range, From: q.From, To: q.To}
}

type averageQuery struct {
	WindowQuery
	Start string `query:"start"`
	End   string `query:"end"`
	Group string `query:"group"`
}

type trendQuery struct {
	WindowQuery
	Phase string `query:"phase"`
}

type distributionQuery struct {
	WindowQuery
	Group string `query:"group"`
}

type windowResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
	Days int    `json:"days"`
	Zone string `json:"zone"`
}

func toWindowResponse(w primary.Window) windowResponse {
	return windowResponse{From: w.From, To: w.To, Days: w.Days, Zone: w.Zone}
}

// averageJSON renders a duration that may be absent. Both fields are null
// when no job contributed.
type averageJSON struct {
	AverageSeconds *float64 `json:"average_seconds"`
	AverageDays    *float64 `json:"average_days"`
}

func toAverageJSON(d *time.Duration) averageJSON {
	return averageJSON{AverageSeconds: seconds(d), AverageDays: days(d)}
}

type groupResponse struct {
	Label string `json:"label"`
	averageJSON
	Jobs int `json:"jobs"`
}

func toGroupResponses(groups []primary.GroupAverage) []groupResponse {
	out := make([]groupResponse, len(groups))
	for i, g := range groups {
		out[i] = groupResponse{Label: g.Label, averageJSON: toAverageJSON(g.Average), Jobs: g.Jobs}
	}
	return out
}

type averageResponse struct {
	Window     windowResponse `json:"window"`
	StartPhase string         `json:"start_phase"`
	EndPhase   string         `json:"end_phase"`
	averageJSON
	Jobs   int             `json:"jobs"`
	Groups []groupResponse `json:"groups,omitempty"`
}

type trendPointResponse struct {
	Date  string `json:"date"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

type trendResponse struct {
	Window windowResponse       `json:"window"`
	Filter string               `json:"filter"`
	Points []trendPointResponse `json:"points"`
}

type metricResponse struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	StartPhase string `json:"start_phase"`
	EndPhase   string `json:"end_phase"`
	averageJSON
	Jobs int `json:"jobs"`
}

type cycleTimesResponse struct {
	Window  windowResponse   `json:"window"`
	Metrics []metricResponse `json:"metrics"`
}

type dwellRowResponse struct {
	Phase string `json:"phase"`
	Label string `json:"label"`
	averageJSON
	Records int `json:"records"`
}

type dwellResponse struct {
	Window windowResponse     `json:"window"`
	Rows   []dwellRowResponse `json:"rows"`
}

type countResponse struct {
	Label string `json:"label"`
	Jobs  int    `json:"jobs"`
}

type distributionResponse struct {
	Window windowResponse  `json:"window"`
	Group  string          `json:"group"`
	Rows   []countResponse `json:"rows"`
}

type tableResponse struct {
	Window windowResponse  `json:"window"`
	Name   string          `json:"name"`
	Title  string          `json:"title"`
	Metric string          `json:"metric"`
	Group  string          `json:"group"`
	Rows   []groupResponse `json:"rows"`
}

type pipelineResponse struct {
	Category string `json:"category"`
	Label    string `json:"label"`
	Jobs     int    `json:"jobs"`
}

type summaryResponse struct {
	Window         windowResponse     `json:"window"`
	Jobs           int                `json:"jobs"`
	Active         int                `json:"active"`
	Alerts         int                `json:"alerts"`
	Released       int                `json:"released"`
	ReleasedDays   int                `json:"released_days"`
	Pipeline       []pipelineResponse `json:"pipeline"`
	BillingPending float64            `json:"billing_pending_total"`
	Revenue        float64            `json:"revenue"`
}

// AnalyticsHandler serves the cycle-time endpoints.
type AnalyticsHandler struct {
	analytics primary.AnalyticsService
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analytics primary.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Average handles GET /analytics/average.
func (h *AnalyticsHandler) Average(c echo.Context) error {
	var q averageQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return err
	}

	res, err := h.analytics.AveragePhaseToPhase(c.Request().Context(), primary.AverageRequest{
		WindowRequest: q.toPrimary(),
		StartPhase:    q.Start,
		EndPhase:      q.End,
		Group:         q.Group,
	})
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, averageResponse{
		Window:      toWindowResponse(res.Window),
		StartPhase:  res.StartPhase,
		EndPhase:    res.EndPhase,
		averageJSON: toAverageJSON(res.Average),
		Jobs:        res.Jobs,
		Groups:      toGroupResponses(res.Groups),
	})
}

// Trend handles GET /analytics/trend.
func (h *AnalyticsHandler) Trend(c echo.Context) error {
	var q trendQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return err
	}

	res, err := h.analytics.DailyTrend(c.Request().Context(), primary.TrendRequest{
		WindowRequest: q.toPrimary(),
		Phase:         q.Phase,
	})
	if err != nil {
		return err
	}

	points := make([]trendPointResponse, len(res.Points))
	for i, p := range res.Points {
		points[i] = trendPointResponse{Date: p.Date, Label: p.Label, Count: p.Count}
	}
	return JSON(c, http.StatusOK, trendResponse{Window: toWindowResponse(res.Window), Filter: res.Filter, Points: points})
}

// CycleTimes handles GET /analytics/cycle-times.
func (h *AnalyticsHandler) CycleTimes(c echo.Context) error {
	var q WindowQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return err
	}

	res, err := h.analytics.CycleTimes(c.Request().Context(), q.toPrimary())
	if err != nil {
		return err
	}

	metrics := make([]metricResponse, len(res.Metrics))
	for i, m := range res.Metrics {
		metrics[i] = metricResponse{
			Name:        m.Name,
			Label:       m.Label,
			StartPhase:  m.StartPhase,
			EndPhase:    m.EndPhase,
			averageJSON: toAverageJSON(m.Average),
			Jobs:        m.Jobs,
		}
	}
	return JSON(c, http.StatusOK, cycleTimesResponse{Window: toWindowResponse(res.Window), Metrics: metrics})
}

// Dwell handles GET /analytics/dwell.
func (h *AnalyticsHandler) Dwell(c echo.Context) error {
	var q WindowQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return err
	}

	res, err := h.analytics.DwellTimes(c.Request().Context(), q.toPrimary())
	if err != nil {
		return err
	}

	rows := make([]dwellRowResponse, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = dwellRowResponse{Phase: r.Phase, Label: r.Label, averageJSON: toAverageJSON(r.Average), Records: r.Records}
	}
	return JSON(c, http.StatusOK, dwellResponse{Window: toWindowResponse(res.Window), Rows: rows})
}

// Distribution handles GET /analytics/distribution.
func (h *AnalyticsHandler) Distribution(c echo.Context) error {
	var q distributionQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return err
	}

	res, err := h.analytics.Distribution(c.Request().Context(), primary.DistributionRequest{
		WindowRequest: q.toPrimary(),
		Group:         q.Group,
	})
	if err != nil {
		return err
	}

	rows := make([]countResponse, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = countResponse{Label: r.Label, Jobs: r.Jobs}
	}
	return JSON(c, http.StatusOK, distributionResponse{Window: toWindowResponse(res.Window), Group: res.Group, Rows: rows})
}

// Table handles GET /analytics/tables/:name.
func (h *AnalyticsHandler) Table(c echo.Context) error {
	var q WindowQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return err
	}

	res, err := h.analytics.Table(c.Request().Context(), primary.TableRequest{
		WindowRequest: q.toPrimary(),
		Name:          c.Param("name"),
	})
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, tableResponse{
		Window: toWindowResponse(res.Window),
		Name:   res.Name,
		Title:  res.Title,
		Metric: res.Metric,
		Group:  res.Group,
		Rows:   toGroupResponses(res.Rows),
	})
}

// Summary handles GET /analytics/summary.
func (h *AnalyticsHandler) Summary(c echo.Context) error {
	var q WindowQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return err
	}

	res, err := h.analytics.Summary(c.Request().Context(), q.toPrimary())
	if err != nil {
		return err
	}

	pipeline := make([]pipelineResponse, len(res.Pipeline))
	for i, p := range res.Pipeline {
		pipeline[i] = pipelineResponse{Category: p.Category, Label: p.Label, Jobs: p.Jobs}
	}
	return JSON(c, http.StatusOK, summaryResponse{
		Window:         toWindowResponse(res.Window),
		Jobs:           res.Jobs,
		Active:         res.Active,
		Alerts:         res.Alerts,
		Released:       res.Released,
		ReleasedDays:   res.ReleasedDays,
		Pipeline:       pipeline,
		BillingPending: res.BillingPending,
		Revenue:        res.Revenue,
	})
}
