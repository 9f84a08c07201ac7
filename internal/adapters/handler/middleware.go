package handler

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/bark/internal/ctxutil"
)

// HeaderActorID names the caller on write requests.
const HeaderActorID = "X-Actor-ID"

// RequestLogger logs each HTTP request with structured fields.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// let the error handler set the status before it is logged
				c.Error(err)
			}

			logger.Info("http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"actor", ctxutil.ActorFromContext(c.Request().Context()),
			)

			return nil
		}
	}
}

// Actor copies the X-Actor-ID header into the request context.
func Actor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := c.Request().Header.Get(HeaderActorID); id != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(ctxutil.WithActorID(req.Context(), id)))
			}
			return next(c)
		}
	}
}
