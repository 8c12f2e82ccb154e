// Package errors provides HTTP error handling utilities for the API.
package errors

import (
	"net/http"

	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
	"github.com/stacklok/rrbroker/pkg/logger"
)

// HandlerWithError is an HTTP handler that can return an error. This
// signature lets handlers return a structured error instead of writing
// an HTTP response directly, enabling centralized translation.
type HandlerWithError func(http.ResponseWriter, *http.Request) error

// ErrorHandler wraps a HandlerWithError and converts returned errors
// into HTTP responses.
//
// The decorator:
//   - Returns early if no error is returned (handler already wrote response)
//   - Extracts the HTTP status code from the error using rrberrors.Code()
//   - For 5xx errors: logs full error details, returns a generic message
//   - For 4xx errors: returns the error message verbatim
//
// Usage:
//
//	r.Put("/{cmd}", apierrors.ErrorHandler(routes.command))
func ErrorHandler(fn HandlerWithError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		code := rrberrors.Code(err)
		if code >= http.StatusInternalServerError {
			logger.Errorf("internal server error: %v", err)
			http.Error(w, http.StatusText(code), code)
			return
		}
		http.Error(w, err.Error(), code)
	}
}
