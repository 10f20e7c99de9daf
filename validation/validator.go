package validation

import (
	"fmt"
	"strings"

	"github.com/kbukum/cmdproxy/errors"
)

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// String renders "field: message".
func (e FieldError) String() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// FieldErrors is a list of failing fields.
type FieldErrors []FieldError

// Error joins all field messages.
func (fe FieldErrors) Error() string {
	msgs := make([]string, len(fe))
	for i, e := range fe {
		msgs[i] = e.String()
	}
	return strings.Join(msgs, "; ")
}

// AppError wraps the field errors in an AppError with the given code. The
// fields are listed under the "fields" detail.
func (fe FieldErrors) AppError(code errors.ErrorCode) *errors.AppError {
	return errors.New(code, fe.Error()).WithDetail("fields", []FieldError(fe))
}

// Validator collects validation errors.
type Validator struct {
	errors FieldErrors
}

// New creates a new Validator.
func New() *Validator {
	return &Validator{}
}

// AddError adds a field error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *Validator) Errors() FieldErrors {
	return v.errors
}

// Struct runs tag validation on s and collects its failures under prefix.
func (v *Validator) Struct(prefix string, s any) *Validator {
	for _, e := range Struct(s) {
		if prefix != "" {
			if e.Field == "" {
				e.Field = prefix
			} else {
				e.Field = prefix + "." + e.Field
			}
		}
		v.errors = append(v.errors, e)
	}
	return v
}

// Validate returns an AppError with the given code if there are validation
// errors, nil otherwise.
func (v *Validator) Validate(code errors.ErrorCode) *errors.AppError {
	if !v.HasErrors() {
		return nil
	}
	return v.errors.AppError(code)
}

// Required checks if a string is non-empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
	return v
}

// Min checks if a number meets minimum value.
func (v *Validator) Min(field string, value, minVal int) *Validator {
	if value < minVal {
		v.AddError(field, fmt.Sprintf("must be at least %d", minVal))
	}
	return v
}

// Max checks if a number is within max value.
func (v *Validator) Max(field string, value, maxVal int) *Validator {
	if value > maxVal {
		v.AddError(field, fmt.Sprintf("must be %d or less", maxVal))
	}
	return v
}

// OneOf checks if a value is one of the allowed values.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value == "" {
		return v
	}
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	return v
}

// Custom applies a custom validation condition.
func (v *Validator) Custom(condition bool, field, message string) *Validator {
	if !condition {
		v.AddError(field, message)
	}
	return v
}
