package errors

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
)

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	t.Run("passes through successful response", func(t *testing.T) {
		t.Parallel()

		handler := ErrorHandler(func(w http.ResponseWriter, _ *http.Request) error {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("success"))
			return nil
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "success", rec.Body.String())
	})

	t.Run("converts not-found error to 404 with message", func(t *testing.T) {
		t.Parallel()

		handler := ErrorHandler(func(_ http.ResponseWriter, _ *http.Request) error {
			return rrberrors.NewNotFoundError("session not found", nil)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Contains(t, rec.Body.String(), "session not found")
	})

	t.Run("converts conflict error to 409", func(t *testing.T) {
		t.Parallel()

		handler := ErrorHandler(func(_ http.ResponseWriter, _ *http.Request) error {
			return rrberrors.NewConflictError("session already exists", nil)
		})

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusConflict, rec.Code)
		require.Contains(t, rec.Body.String(), "session already exists")
	})

	t.Run("converts internal error to generic 500 response", func(t *testing.T) {
		t.Parallel()

		handler := ErrorHandler(func(_ http.ResponseWriter, _ *http.Request) error {
			return rrberrors.NewInternalError("sensitive database details", errors.New("dsn leaked"))
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.False(t, strings.Contains(rec.Body.String(), "sensitive"))
		require.Contains(t, rec.Body.String(), "Internal Server Error")
	})

	t.Run("plain error without a type defaults to 500 with generic message", func(t *testing.T) {
		t.Parallel()

		handler := ErrorHandler(func(_ http.ResponseWriter, _ *http.Request) error {
			return errors.New("plain error without code")
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.False(t, strings.Contains(rec.Body.String(), "plain error"))
		require.Contains(t, rec.Body.String(), "Internal Server Error")
	})

	t.Run("handles wrapped structured error", func(t *testing.T) {
		t.Parallel()

		sentinelErr := rrberrors.NewNotFoundError("not found", nil)

		handler := ErrorHandler(func(_ http.ResponseWriter, _ *http.Request) error {
			return fmt.Errorf("session lookup failed: %w", sentinelErr)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Contains(t, rec.Body.String(), "session lookup failed")
	})
}

func TestHandlerWithError_Type(t *testing.T) {
	t.Parallel()

	var handler HandlerWithError = func(w http.ResponseWriter, _ *http.Request) error {
		w.WriteHeader(http.StatusOK)
		return nil
	}

	wrapped := ErrorHandler(handler)
	require.NotNil(t, wrapped)
}
