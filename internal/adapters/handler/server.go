package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/example/bark/internal/ports/primary"
)

// ServerDeps holds what the HTTP surface needs. Metrics may be nil.
type ServerDeps struct {
	Ledger    primary.LedgerService
	Analytics primary.AnalyticsService
	Metrics   http.Handler
	Logger    *slog.Logger
}

// NewServer builds the echo instance with every route registered.
func NewServer(deps ServerDeps) *echo.Echo {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(Actor())
	e.Use(RequestLogger(logger))

	e.GET("/health", func(c echo.Context) error {
		return JSON(c, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics))
	}

	jobs := NewJobHandler(deps.Ledger)
	analytics := NewAnalyticsHandler(deps.Analytics)

	api := e.Group("/api/v1")

	api.POST("/jobs", jobs.Create)
	api.GET("/jobs", jobs.List)
	api.GET("/jobs/:id", jobs.Get)
	api.PATCH("/jobs/:id/dimensions", jobs.UpdateDimensions)
	api.POST("/jobs/:id/transitions", jobs.Transition)
	api.GET("/jobs/:id/history", jobs.History)
	api.PATCH("/transitions/:id", jobs.Correct)

	api.GET("/analytics/average", analytics.Average)
	api.GET("/analytics/trend", analytics.Trend)
	api.GET("/analytics/cycle-times", analytics.CycleTimes)
	api.GET("/analytics/dwell", analytics.Dwell)
	api.GET("/analytics/distribution", analytics.Distribution)
	api.GET("/analytics/tables/:name", analytics.Table)
	api.GET("/analytics/summary", analytics.Summary)

	return e
}
