package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "savethespice-backend/internal/errors"
)

var validate = validator.New()

// ValidateStruct validates a struct by its `validate` tags and returns a VALIDATION error
// listing every failed field.
func ValidateStruct(s any) error {
	return ValidateStructAs(s, appErrors.CodeValidationFailed, "")
}

// ValidateStructAs is ValidateStruct with the error code and resource of the caller's entity.
func ValidateStructAs(s any, code appErrors.ErrorCode, resource string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return appErrors.Validation(code, err.Error()).WithResource(resource).Build()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return appErrors.Validation(code, strings.Join(msgs, "; ")).
		WithResource(resource).
		WithCause(err).
		Build()
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	field = strings.ToLower(field)

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
