package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "error with cause",
			err: &Error{
				Type:    ErrInvalidArgument,
				Message: "test message",
				Cause:   errors.New("underlying error"),
			},
			want: "invalid_argument: test message: underlying error",
		},
		{
			name: "error without cause",
			err: &Error{
				Type:    ErrTransport,
				Message: "test message",
				Cause:   nil,
			},
			want: "transport_error: test message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &Error{Type: ErrInternal, Message: "test message", Cause: cause}

	if got := err.Unwrap(); got != cause {
		t.Errorf("Error.Unwrap() = %v, want %v", got, cause)
	}

	errNoCause := &Error{Type: ErrInternal, Message: "test message", Cause: nil}
	if got := errNoCause.Unwrap(); got != nil {
		t.Errorf("Error.Unwrap() = %v, want nil", got)
	}
}

func TestNewErrorConstructors(t *testing.T) {
	cause := errors.New("cause")

	tests := []struct {
		name        string
		constructor func(string, error) *Error
		wantType    Type
	}{
		{"NewNotFoundError", NewNotFoundError, ErrNotFound},
		{"NewConflictError", NewConflictError, ErrConflict},
		{"NewForbiddenError", NewForbiddenError, ErrForbidden},
		{"NewTransportError", NewTransportError, ErrTransport},
		{"NewAllocationFailedError", NewAllocationFailedError, ErrAllocationFailed},
		{"NewBackendNotReadyError", NewBackendNotReadyError, ErrBackendNotReady},
		{"NewInvalidArgumentError", NewInvalidArgumentError, ErrInvalidArgument},
		{"NewInternalError", NewInternalError, ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.constructor("test message", cause)
			if err.Type != tt.wantType {
				t.Errorf("%s().Type = %v, want %v", tt.name, err.Type, tt.wantType)
			}
			if err.Message != "test message" {
				t.Errorf("%s().Message = %v, want %v", tt.name, err.Message, "test message")
			}
			if err.Cause != cause {
				t.Errorf("%s().Cause = %v, want %v", tt.name, err.Cause, cause)
			}
		})
	}
}

func TestErrorTypeCheckers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		checker func(error) bool
		want    bool
	}{
		{"IsNotFound matching", NewNotFoundError("x", nil), IsNotFound, true},
		{"IsNotFound non-matching", NewConflictError("x", nil), IsNotFound, false},
		{"IsNotFound non-Error type", errors.New("regular"), IsNotFound, false},
		{"IsConflict matching", NewConflictError("x", nil), IsConflict, true},
		{"IsForbidden matching", NewForbiddenError("x", nil), IsForbidden, true},
		{"IsTransport matching", NewTransportError("x", nil), IsTransport, true},
		{"IsAllocationFailed matching", NewAllocationFailedError("x", nil), IsAllocationFailed, true},
		{"IsBackendNotReady matching", NewBackendNotReadyError("x", nil), IsBackendNotReady, true},
		{"IsInvalidArgument matching", NewInvalidArgumentError("x", nil), IsInvalidArgument, true},
		{"IsInternal matching", NewInternalError("x", nil), IsInternal, true},
		{"IsInternal nil", nil, IsInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.checker(tt.err); got != tt.want {
				t.Errorf("%s() = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewNotFoundError("x", nil), http.StatusNotFound},
		{NewConflictError("x", nil), http.StatusConflict},
		{NewForbiddenError("x", nil), http.StatusForbidden},
		{NewBackendNotReadyError("x", nil), http.StatusServiceUnavailable},
		{NewTransportError("x", nil), http.StatusBadRequest},
		{NewAllocationFailedError("x", nil), http.StatusInternalServerError},
		{NewInvalidArgumentError("x", nil), http.StatusBadRequest},
		{NewInternalError("x", nil), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Errorf("Code(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
