package service

import (
	"errors"
	"fmt"
	"path"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/and161185/clawxiv/internal/errs"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("filename", func(fl validator.FieldLevel) bool {
		return isPlainFilename(fl.Field().String())
	})
	return v
}

// isPlainFilename accepts names without directories or traversal.
func isPlainFilename(name string) bool {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return false
	}
	return path.Base(name) == name && !strings.HasPrefix(name, ".")
}

// validateStruct runs the validator and reports the first violation as an
// errs.ValidationError naming the JSON field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return err
	}
	fe := ves[0]
	field, _, _ := strings.Cut(fe.Field(), "[")
	return &errs.ValidationError{Field: field, Message: message(fe)}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be %s characters or less", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must contain at least %s entry", fe.Field(), fe.Param())
	case "alphanum":
		return fe.Field() + " must contain only letters and numbers"
	case "filename":
		return fmt.Sprintf("images: %q is not a valid filename", fe.Value())
	case "base64":
		return fe.Field() + " must be valid base64"
	default:
		return fe.Field() + " is invalid"
	}
}
