package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidSettings wraps every field constraint violation.
var ErrInvalidSettings = errors.New("invalid settings")

//nolint:gochecknoglobals // validator caches struct metadata and is safe for concurrent use.
var structValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their YAML names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return field.Name
		}

		return name
	})

	return v
})

func validateStruct(settings *Config) error {
	err := structValidator().Struct(settings)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		messages = append(messages, fieldPath(fieldError)+" "+friendlyMessage(fieldError))
	}

	return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(messages, "; "))
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fieldError validator.FieldError) string {
	_, path, found := strings.Cut(fieldError.Namespace(), ".")
	if !found {
		return fieldError.Field()
	}

	return path
}

func friendlyMessage(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "oneof":
		return "must be one of: " + fieldError.Param()
	case "gte":
		return "must be greater than or equal to " + fieldError.Param()
	case "lte":
		return "must be less than or equal to " + fieldError.Param()
	case "gt":
		return "must be greater than " + fieldError.Param()
	case "lt":
		return "must be less than " + fieldError.Param()
	default:
		return "is invalid"
	}
}
