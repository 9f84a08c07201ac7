// Package handler exposes the ledger and analytics services over HTTP with echo.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/bark/internal/domain"
)

// Envelope is the standard API response wrapper.
type Envelope struct {
	Data  any       `json:"data,omitempty"`
	Error *APIError `json:"error,omitempty"`
}

// APIError represents an error in the API response.
type APIError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// JSON writes a JSON response with the standard envelope.
func JSON(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Data: data})
}

// ErrorHandler returns the global echo error handler. Server-side failures are
// logged on logger; client errors are only reported to the caller.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, apiErr := mapError(err)
		if status >= http.StatusInternalServerError {
			logger.Error("unhandled error", "path", c.Request().URL.Path, "error", err)
		}
		if jsonErr := c.JSON(status, Envelope{Error: &apiErr}); jsonErr != nil {
			logger.Error("failed to send error response", "error", jsonErr)
		}
	}
}

func mapError(err error) (int, APIError) {
	// Handle echo's own HTTP errors (404, 405, bind failures)
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		msg, _ := echoErr.Message.(string)
		if msg == "" {
			msg = http.StatusText(echoErr.Code)
		}
		return echoErr.Code, APIError{
			Code:    http.StatusText(echoErr.Code),
			Message: msg,
		}
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, APIError{
			Code:    "validation_error",
			Message: "Validation failed",
			Details: []FieldError{
				{Field: validationErr.Field, Message: validationErr.Message},
			},
		}
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, APIError{Code: "not_found", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidPhase):
		return http.StatusBadRequest, APIError{Code: "invalid_phase", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidWindow):
		return http.StatusBadRequest, APIError{Code: "invalid_window", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, APIError{Code: "invalid_input", Message: err.Error()}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, APIError{
			Code:    "forbidden",
			Message: "You do not have permission to correct history",
		}
	case errors.Is(err, domain.ErrDuplicateCreation), errors.Is(err, domain.ErrMissingCreationRecord):
		return http.StatusConflict, APIError{Code: "conflict", Message: err.Error()}
	case errors.Is(err, domain.ErrOrderingViolation):
		return http.StatusUnprocessableEntity, APIError{Code: "ordering_violation", Message: err.Error()}
	default:
		return http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "An unexpected error occurred",
		}
	}
}

func seconds(d *time.Duration) *float64 {
	if d == nil {
		return nil
	}
	v := d.Seconds()
	return &v
}

func days(d *time.Duration) *float64 {
	if d == nil {
		return nil
	}
	v := d.Hours() / 24
	return &v
}
