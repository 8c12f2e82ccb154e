// Package errors defines the structured error taxonomy used across the
// broker. Components return these errors rather than writing HTTP
// responses directly; the api/errors package translates them at the
// boundary.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Type identifies the class of failure a broker component reported.
type Type string

// Error types, per the taxonomy in the design spec.
const (
	ErrNotFound         Type = "not_found"
	ErrConflict         Type = "conflict"
	ErrForbidden        Type = "forbidden"
	ErrTransport        Type = "transport_error"
	ErrAllocationFailed Type = "allocation_failed"
	ErrBackendNotReady  Type = "backend_not_ready"
	ErrInvalidArgument  Type = "invalid_argument"
	ErrInternal         Type = "internal"
)

// Error is a structured error carrying a Type, a human message and an
// optional underlying cause.
type Error struct {
	Type    Type
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds an Error of the given type.
func NewError(t Type, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause}
}

// NewNotFoundError builds a NotFound error.
func NewNotFoundError(message string, cause error) *Error {
	return NewError(ErrNotFound, message, cause)
}

// NewConflictError builds a Conflict error.
func NewConflictError(message string, cause error) *Error {
	return NewError(ErrConflict, message, cause)
}

// NewForbiddenError builds a Forbidden error.
func NewForbiddenError(message string, cause error) *Error {
	return NewError(ErrForbidden, message, cause)
}

// NewTransportError builds a TransportError.
func NewTransportError(message string, cause error) *Error {
	return NewError(ErrTransport, message, cause)
}

// NewAllocationFailedError builds an AllocationFailed error.
func NewAllocationFailedError(message string, cause error) *Error {
	return NewError(ErrAllocationFailed, message, cause)
}

// NewBackendNotReadyError builds a BackendNotReady error.
func NewBackendNotReadyError(message string, cause error) *Error {
	return NewError(ErrBackendNotReady, message, cause)
}

// NewInvalidArgumentError builds an InvalidArgument error.
func NewInvalidArgumentError(message string, cause error) *Error {
	return NewError(ErrInvalidArgument, message, cause)
}

// NewInternalError builds an Internal error.
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, cause)
}

func is(err error, t Type) bool {
	if err == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == t
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool { return is(err, ErrNotFound) }

// IsConflict reports whether err is a Conflict error.
func IsConflict(err error) bool { return is(err, ErrConflict) }

// IsForbidden reports whether err is a Forbidden error.
func IsForbidden(err error) bool { return is(err, ErrForbidden) }

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool { return is(err, ErrTransport) }

// IsAllocationFailed reports whether err is an AllocationFailed error.
func IsAllocationFailed(err error) bool { return is(err, ErrAllocationFailed) }

// IsBackendNotReady reports whether err is a BackendNotReady error.
func IsBackendNotReady(err error) bool { return is(err, ErrBackendNotReady) }

// IsInvalidArgument reports whether err is an InvalidArgument error.
func IsInvalidArgument(err error) bool { return is(err, ErrInvalidArgument) }

// IsInternal reports whether err is an Internal error.
func IsInternal(err error) bool { return is(err, ErrInternal) }

// Code maps err to the HTTP status code it should produce at the API
// boundary. Errors that are not of type *Error map to 500.
func Code(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Type {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	case ErrForbidden:
		return http.StatusForbidden
	case ErrBackendNotReady:
		return http.StatusServiceUnavailable
	case ErrTransport:
		return http.StatusBadRequest
	case ErrAllocationFailed:
		return http.StatusInternalServerError
	case ErrInvalidArgument:
		return http.StatusBadRequest
	case ErrInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
