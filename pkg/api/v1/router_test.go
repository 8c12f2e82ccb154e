package v1

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/rrbroker/pkg/allocator"
	"github.com/stacklok/rrbroker/pkg/broker"
)

func TestMount_HealthzAndSessionSurface(t *testing.T) {
	mgr := newFakeManager()
	store := &fakeStore{sessions: mgr.sessions}
	b := broker.New(mgr, store,
		func() (allocator.Allocator, error) { return fakeAllocator{}, nil },
		func() (allocator.Allocator, error) { return fakeAllocator{}, nil })
	registry := newFakeRegistry()

	r := chi.NewRouter()
	Mount(r, "/rrm/v1", b, registry, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/rrm/v1/session/", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
