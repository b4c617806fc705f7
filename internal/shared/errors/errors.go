// Package errors defines the relay's error taxonomy.
//
// Every failure that reaches a client is an *AppError carrying a Kind.
// Backend-facing failures are classified once, at the backend client
// boundary, and surfaced verbatim to the caller of the dispatcher.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies a relay failure.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindBackendUnreachable Kind = "backend_unreachable"
	KindBackendTimeout     Kind = "backend_timeout"
	KindBackendHTTP        Kind = "backend_http"
	KindBackendProtocol    Kind = "backend_protocol"
	KindSessionExpired     Kind = "session_expired"
	KindInternal           Kind = "internal"
)

// ErrSessionExpired is observed inside the session store when a session
// outlives its expiry window. It triggers transparent replacement and is
// never returned to clients.
var ErrSessionExpired = New(KindSessionExpired, "session expired", nil)

// AppError is a classified relay failure.
type AppError struct {
	Kind    Kind
	Message string
	// Status is the backend HTTP status for KindBackendHTTP, zero otherwise.
	Status int
	Cause  error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError of the same kind, so sentinels work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Status == 0 || t.Status == e.Status)
}

// New creates a new AppError
func New(kind Kind, message string, cause error) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// Validation reports bad or missing input. No backend was contacted.
func Validation(format string, args ...interface{}) *AppError {
	return New(KindValidation, fmt.Sprintf(format, args...), nil)
}

// Unreachable reports a network or connection failure towards a backend.
func Unreachable(backend string, cause error) *AppError {
	return New(KindBackendUnreachable, fmt.Sprintf("%s backend unreachable", backend), cause)
}

// Timeout reports a backend call that exceeded its deadline.
func Timeout(backend string, cause error) *AppError {
	return New(KindBackendTimeout, fmt.Sprintf("%s backend timed out", backend), cause)
}

// HTTPStatus reports a non-2xx backend reply. detail is the backend's own
// message, passed through verbatim when present.
func HTTPStatus(backend string, status int, detail string) *AppError {
	msg := fmt.Sprintf("%s backend returned HTTP %d", backend, status)
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}
	return &AppError{Kind: KindBackendHTTP, Message: msg, Status: status}
}

// Protocol reports a reply whose shape could not be understood.
func Protocol(backend string, format string, args ...interface{}) *AppError {
	return New(KindBackendProtocol, fmt.Sprintf("%s backend: %s", backend, fmt.Sprintf(format, args...)), nil)
}

// As extracts the *AppError from an error chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPCode maps an error onto the status code returned to relay clients.
func HTTPCode(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindBackendTimeout:
		return http.StatusGatewayTimeout
	case KindBackendUnreachable, KindBackendHTTP, KindBackendProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-facing text for err. Unclassified
// errors are not echoed to clients.
func PublicMessage(err error) string {
	appErr, ok := As(err)
	if !ok {
		return "internal error"
	}
	return appErr.Message
}
