// Package validation checks decoded server responses against their struct-tag
// constraints before they reach a caller.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ConstraintViolation is a single failed constraint.
type ConstraintViolation struct {
	Field string // Dotted JSON path, e.g. "transactions[2].id"
	Rule  string // Human-readable rule, e.g. "must be numeric"
	Value any    // The offending value
}

func (v ConstraintViolation) String() string {
	return fmt.Sprintf("At %s %s but got %v", v.Field, v.Rule, v.Value)
}

// Error reports every violation found in one value.
type Error struct {
	Violations []ConstraintViolation
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return strings.Join(parts, ",")
}

// Validator validates server responses. The zero value is not usable; use New.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator that reports fields by their JSON names.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate returns nil if v satisfies its constraints, otherwise an *Error listing
// every violation. Nil pointers and non-struct values pass.
func (v *Validator) Validate(value any) error {
	if value == nil {
		return nil
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	err := v.validate.Struct(value)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate %T: %w", value, err)
	}

	violations := make([]ConstraintViolation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, ConstraintViolation{
			Field: fieldPath(fe.Namespace()),
			Rule:  describe(fe),
			Value: fe.Value(),
		})
	}
	return &Error{Violations: violations}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "numeric":
		return "must be numeric"
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	case "eq":
		return "must equal " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " elements"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	}
	if fe.Param() != "" {
		return fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
	}
	return "must satisfy " + fe.Tag()
}

// IsValidationError reports whether err carries constraint violations.
func IsValidationError(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}
