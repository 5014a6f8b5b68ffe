// Package validation holds the shared struct validator used by request
// decoding and by services that accept raw buyer input.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// Struct validates v and returns a CodeValidation error whose details map
// each failing json field to a readable message.
func Struct(v any) error {
	return StructWithMessage(v, "validation failed")
}

// StructWithMessage is Struct with a caller-chosen public message.
func StructWithMessage(v any, message string) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(FieldErrors(errs))
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, message)
}

// FieldErrors flattens validator errors into field -> message.
func FieldErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = message(fieldErr)
	}
	return details
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "iso3166_1_alpha2":
		return "must be a two letter country code"
	case "uuid4", "uuid":
		return "must be a valid uuid"
	}
	return "is invalid"
}
