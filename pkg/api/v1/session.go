// Package v1 implements the versioned HTTP surface of the design spec's
// §6: session commands, config CRUD, and admin commands, mounted under
// a configurable URI prefix by cmd/rrbrokerd.
package v1

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/stacklok/rrbroker/pkg/api/errors"
	"github.com/stacklok/rrbroker/pkg/broker"
	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
)

// SessionRoutes implements the `/session/` resource family of §6.
type SessionRoutes struct {
	broker         *broker.Broker
	forwardTimeout time.Duration
}

// SessionRouter mounts the session resource routes.
func SessionRouter(b *broker.Broker, forwardTimeout time.Duration) http.Handler {
	routes := &SessionRoutes{broker: b, forwardTimeout: forwardTimeout}

	r := chi.NewRouter()
	r.Post("/", apierrors.ErrorHandler(routes.create))
	r.Get("/", apierrors.ErrorHandler(routes.list))
	r.Delete("/", apierrors.ErrorHandler(routes.destroy))
	r.Get("/{id}/", apierrors.ErrorHandler(routes.detail))
	r.Put("/{cmd}", apierrors.ErrorHandler(routes.command))
	return r
}

type createSessionRequest struct {
	Owner      string `json:"owner"`
	RendererID string `json:"renderer_id"`
}

func (s *SessionRoutes) create(w http.ResponseWriter, r *http.Request) error {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return rrberrors.NewInvalidArgumentError("decoding create session request", err)
	}

	id := uuid.NewString()
	sess, err := s.broker.CreateSession(r.Context(), id, req.Owner, req.RendererID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{Name: broker.CookieName, Value: sess.ID, Path: "/"})
	return writeJSON(w, http.StatusCreated, sess)
}

func (s *SessionRoutes) list(w http.ResponseWriter, r *http.Request) error {
	sessions, err := s.broker.ListSessions(r.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, sessions)
}

func (s *SessionRoutes) destroy(w http.ResponseWriter, r *http.Request) error {
	id, err := sessionIDFromCookie(r)
	if err != nil {
		return err
	}
	if err := s.broker.DeleteSession(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *SessionRoutes) detail(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	sess, err := s.broker.GetSession(r.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, sess)
}

// command implements the §4.5 dispatch table: named commands are
// handled directly, anything else is proxied to the session's backend.
func (s *SessionRoutes) command(w http.ResponseWriter, r *http.Request) error {
	cmd := chi.URLParam(r, "cmd")
	id, err := sessionIDFromCookie(r)
	if err != nil {
		return err
	}

	switch cmd {
	case "schedule":
		req, err := decodeScheduleRequest(r)
		if err != nil {
			return err
		}
		res, err := s.broker.Schedule(r.Context(), id, req)
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, res)
	case "open":
		req, err := decodeScheduleRequest(r)
		if err != nil {
			return err
		}
		res, err := s.broker.Open(r.Context(), id, req)
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, res)
	case "status":
		resp, err := s.broker.Status(r.Context(), id)
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, resp)
	case "log":
		resp, err := s.broker.Log(r.Context(), id)
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, resp)
	case "err":
		resp, err := s.broker.Err(r.Context(), id)
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, resp)
	case "job":
		resp, err := s.broker.Job(r.Context(), id)
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, resp)
	case "imagefeed":
		method := r.URL.Query().Get("method")
		if method == "" {
			method = http.MethodGet
		}
		resp, err := s.broker.ImageFeed(r.Context(), id, method)
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, resp)
	case "keepalive":
		if err := s.broker.KeepAlive(r.Context(), id); err != nil {
			return err
		}
		w.WriteHeader(http.StatusOK)
		return nil
	default:
		return s.broker.Forward(r.Context(), id, cmd, r, w, &broker.ForwardClient{Timeout: s.forwardTimeout})
	}
}

func decodeScheduleRequest(r *http.Request) (broker.ScheduleRequest, error) {
	var req broker.ScheduleRequest
	if r.ContentLength == 0 {
		return req, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, rrberrors.NewInvalidArgumentError("decoding schedule request", err)
	}
	return req, nil
}

func sessionIDFromCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(broker.CookieName)
	if err != nil {
		return "", rrberrors.NewNotFoundError("no session cookie present", err)
	}
	return cookie.Value, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
