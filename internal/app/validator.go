package app

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/example/bark/internal/domain"
)

// RequestValidator wraps go-playground/validator for request structs.
// It is shared by the services and the echo adapter.
type RequestValidator struct {
	validator *validator.Validate
}

// NewRequestValidator creates a new RequestValidator.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validator: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate validates a struct using its validate tags. The first failing
// field is reported as a *domain.ValidationError.
func (v *RequestValidator) Validate(i any) error {
	if err := v.validator.Struct(i); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			return &domain.ValidationError{
				Field:   fe.Field(),
				Message: fmt.Sprintf("failed on '%s' validation", fe.Tag()),
			}
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
