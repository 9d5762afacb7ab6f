package handlers

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/lecternhq/lectern/internal/models"
)

// Shared validator instance; validator.Validate caches struct metadata
// and is safe for concurrent use.
var validate = validator.New()

// ValidateRequest runs struct tag validation on a decoded request body.
// The first failing field is returned as a *models.ValidationError so
// handlers can surface it verbatim in a 400 response.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	ve, ok := err.(validator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return models.NewValidationError("", err.Error())
	}
	return models.NewValidationError(ve[0].Field(), validationMessage(ve[0]))
}

// validationMessage translates a validator tag failure into a message
// safe to show to API clients.
func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must contain only digits"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
