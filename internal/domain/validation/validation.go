package validation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid matches every validation failure via errors.Is.
var ErrInvalid = errors.New("validation failed")

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error collects field-level validation failures.
type Error struct {
	Message string
	Fields  []FieldError
}

// New starts an Error with a summary message.
func New(message string) *Error {
	return &Error{Message: message}
}

// Add records a failure for field.
func (e *Error) Add(field, message string) *Error {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
	return e
}

// OrNil returns nil when no failures were recorded.
func (e *Error) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = ErrInvalid.Error()
	}
	if len(e.Fields) == 0 {
		return msg
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return msg + " (" + strings.Join(parts, "; ") + ")"
}

// Is makes errors.Is(err, ErrInvalid) hold.
func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

// Details returns the field failures of err, if it is a validation error.
func Details(err error) []FieldError {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}

// Message returns the summary message of a validation error.
func Message(err error) string {
	var verr *Error
	if errors.As(err, &verr) && verr.Message != "" {
		return verr.Message
	}
	return ErrInvalid.Error()
}
