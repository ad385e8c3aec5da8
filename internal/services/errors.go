package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrNotFound is wrapped by lookups that match no order.
var ErrNotFound = errors.New("not found")

// ValidationError is returned before any storage or gateway call when input is unusable.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Fields, "; "))
}

func newValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// GatewayError is a failed call to the payment gateway, including timeouts.
type GatewayError struct {
	Provider string
	Message  string
	Timeout  bool
	Err      error
}

func (e *GatewayError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("payment gateway %s timed out: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("payment gateway %s failed: %v", e.Provider, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// UserMessage is the text safe to show to API callers.
func (e *GatewayError) UserMessage() string {
	if e.Timeout {
		return "The payment gateway did not respond in time. Please try again."
	}
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return "The payment gateway could not process the request."
}

// PersistenceError is a storage failure on read or conditional write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func newInputValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// validationErrorFrom converts validator output into a ValidationError with one
// message per failing field, e.g. "customer.email must be a valid email address".
func validationErrorFrom(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return newValidationError(err.Error())
	}

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := fe.Namespace()
		if _, rest, ok := strings.Cut(name, "."); ok {
			name = rest
		}
		fields = append(fields, name+" "+describeRule(fe))
	}
	return newValidationError(fields...)
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
