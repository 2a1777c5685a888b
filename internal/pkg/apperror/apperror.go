package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError independently of the transport.
type Kind string

const (
	KindInternal        Kind = "internal"
	KindInvalidInput    Kind = "invalid_input"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindInvalidInterval Kind = "invalid_interval"
	KindInvalidState    Kind = "invalid_state"
	KindPolicyViolation Kind = "policy_violation"
	KindForbidden       Kind = "forbidden"
)

var kindStatus = map[Kind]int{
	KindInvalidInput:    http.StatusBadRequest,
	KindNotFound:        http.StatusNotFound,
	KindConflict:        http.StatusConflict,
	KindInvalidInterval: http.StatusBadRequest,
	KindInvalidState:    http.StatusConflict,
	KindPolicyViolation: http.StatusUnprocessableEntity,
	KindForbidden:       http.StatusForbidden,
}

// AppError is a caller-visible error carrying its kind, the HTTP status it maps to
// and an optional underlying cause.
type AppError struct {
	Kind    Kind
	Code    int    // HTTP Status Code (e.g., 400, 404)
	Message string // User-facing error message
	Err     error  // The underlying error, if any (not exposed to user)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches two AppErrors of the same kind and message, so a wrapped copy of a
// sentinel still satisfies errors.Is against the sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// New creates a new AppError of the given kind.
func New(kind Kind, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    statusOf(kind),
		Message: message,
	}
}

// Wrap creates a new AppError wrapping an existing error.
func Wrap(err error, kind Kind, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    statusOf(kind),
		Message: message,
		Err:     err,
	}
}

// Detailf returns a copy of e whose message carries the formatted detail.
// The copy unwraps to e, so errors.Is still matches the original.
func (e *AppError) Detailf(format string, args ...any) *AppError {
	return &AppError{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: e.Message + ": " + fmt.Sprintf(format, args...),
		Err:     e,
	}
}

// KindOf returns the kind of the first AppError in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func statusOf(kind Kind) int {
	if code, ok := kindStatus[kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}
