package validator

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the go-playground validator with the gateway's rules.
// It satisfies echo.Validator.
type Validator struct {
	validator *validator.Validate
}

// New creates a validator that reports fields by their JSON names.
func New() *Validator {
	validate := validator.New()

	registerCustomValidators(validate)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validator: validate}
}

// Validate validates a struct and returns a *ValidationError for rule
// violations.
func (v *Validator) Validate(i any) error {
	err := v.validator.Struct(i)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		return NewValidationError(errs)
	}
	return err
}

// ValidationError maps JSON field names to user-facing messages.
type ValidationError struct {
	Errors map[string]string `json:"errors"`
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	messages := make([]string, 0, len(fields))
	for _, field := range fields {
		messages = append(messages, fmt.Sprintf("%s: %s", field, e.Errors[field]))
	}
	return "validation failed: " + strings.Join(messages, ", ")
}

// NewValidationError creates a ValidationError from validator.ValidationErrors.
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	out := make(map[string]string, len(errs))

	for _, err := range errs {
		field := err.Field()

		switch err.Tag() {
		case "required":
			out[field] = fmt.Sprintf("The %s field is required.", field)
		case "email":
			out[field] = fmt.Sprintf("The %s must be a valid email address.", field)
		case "min":
			out[field] = fmt.Sprintf("The %s must be at least %s characters.", field, err.Param())
		case "max":
			out[field] = fmt.Sprintf("The %s may not be greater than %s characters.", field, err.Param())
		case "eqfield":
			out[field] = "The password confirmation does not match."
		case "password":
			out[field] = "The password must contain at least one letter and one number."
		case "required_with":
			out[field] = fmt.Sprintf("The %s field is required when changing the password.", field)
		default:
			out[field] = fmt.Sprintf("The %s is invalid.", field)
		}
	}

	return &ValidationError{Errors: out}
}

func registerCustomValidators(validate *validator.Validate) {
	// At least one letter and one digit; length is checked by min/max.
	_ = validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		var letter, digit bool
		for _, r := range fl.Field().String() {
			switch {
			case unicode.IsLetter(r):
				letter = true
			case unicode.IsDigit(r):
				digit = true
			}
		}
		return letter && digit
	})
}
