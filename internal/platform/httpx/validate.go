package httpx

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a request DTO against its `validate` struct tags.
func Validate(v any) error {
	return validate.Struct(v)
}

// AsValidationErrors extracts structured field errors when present.
func AsValidationErrors(err error, target *validator.ValidationErrors) bool {
	return errors.As(err, target)
}
