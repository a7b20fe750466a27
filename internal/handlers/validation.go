package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report field names as they appear on the wire.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest returns a client-facing message for the first failing field.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return fmt.Errorf("invalid request: %w", err)
	}

	first := validationErrors[0]
	switch first.Tag() {
	case "required":
		return fmt.Errorf("field '%s' is required", first.Field())
	case "max":
		return fmt.Errorf("field '%s' must be at most %s characters long", first.Field(), first.Param())
	case "min":
		return fmt.Errorf("field '%s' must be at least %s", first.Field(), first.Param())
	default:
		return fmt.Errorf("field '%s' validation failed on tag '%s'", first.Field(), first.Tag())
	}
}
