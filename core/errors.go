package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// Kind discriminates domain failures so callers (and the API error handler)
// can map them without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindCapacityExceeded
	KindForbidden
	KindValidation
	KindStore
)

// Error is a typed domain failure: a Kind plus a human-readable message.
type Error struct {
	kind Kind
	msg  string
}

func NewError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Kind() Kind    { return e.kind }

// ErrKind unwraps err and reports its Kind; KindUnknown for foreign errors.
func ErrKind(err error) Kind {
	switch e := errors.Cause(err).(type) {
	case *Error:
		return e.kind
	case *ValidationError:
		return KindValidation
	}
	return KindUnknown
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
