package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Status    int      `json:"status"`
	Details   []string `json:"details,omitempty"`
	Retryable bool     `json:"retryable,omitempty"`
	Err       error    `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so cloned errors compare equal to their template.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound               = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden              = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized           = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict               = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation             = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal               = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss              = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrIllegalTransition      = New("ILLEGAL_TRANSITION", http.StatusConflict, "illegal state transition")
	ErrDuplicateSubmission    = New("DUPLICATE_SUBMISSION", http.StatusConflict, "an active submission of this type already exists")
	ErrSubmissionWindowClosed = New("SUBMISSION_WINDOW_CLOSED", http.StatusUnprocessableEntity, "submission window closed")
	ErrContention             = &Error{Code: "CONTENTION", Status: http.StatusConflict, Message: "concurrent modification, retry", Retryable: true}
	ErrCascadeFailure         = New("CASCADE_FAILURE", http.StatusInternalServerError, "archival cascade failed")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	if len(err.Details) > 0 {
		clone.Details = append([]string(nil), err.Details...)
	}
	return &clone
}

// WithDetails clones the error and attaches every provided detail line.
func WithDetails(err *Error, message string, details ...string) *Error {
	clone := Clone(err, message)
	if clone == nil {
		return nil
	}
	clone.Details = append(clone.Details, details...)
	return clone
}

// Violations collects business rule failures so callers see every failed rule at once.
type Violations struct {
	items []string
}

// Add records a failed rule.
func (v *Violations) Add(format string, args ...interface{}) {
	v.items = append(v.items, fmt.Sprintf(format, args...))
}

// Check records the message when ok is false.
func (v *Violations) Check(ok bool, format string, args ...interface{}) {
	if !ok {
		v.Add(format, args...)
	}
}

// Empty reports whether no rule failed.
func (v *Violations) Empty() bool {
	return len(v.items) == 0
}

// List returns a copy of the recorded failures.
func (v *Violations) List() []string {
	return append([]string(nil), v.items...)
}

// Err returns a validation error carrying every failure, or nil.
func (v *Violations) Err(message string) error {
	if v.Empty() {
		return nil
	}
	return WithDetails(ErrValidation, message, v.items...)
}

// Is reports whether err carries the same code as target.
func Is(err error, target *Error) bool {
	return errors.Is(err, target)
}
