// Package manager implements the Session Manager: the state-machine
// owner for create, delete, schedule, query-status, keep-alive, and
// admission control, wired to an allocator and a session store.
package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/stacklok/rrbroker/pkg/allocator"
	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
	"github.com/stacklok/rrbroker/pkg/resourceconfig"
	"github.com/stacklok/rrbroker/pkg/session"
)

// Store is the narrow persistence slice the Session Manager depends on;
// satisfied by pkg/session/repository.Store.
type Store interface {
	Get(ctx context.Context, id string) (*session.Session, error)
	Create(ctx context.Context, s *session.Session) error
	Update(ctx context.Context, s *session.Session) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*session.Session, error)
}

// Admission reports and toggles whether new sessions may be created;
// satisfied by pkg/settings.Settings.
type Admission interface {
	SessionCreationAllowed() bool
	SetSessionCreation(ctx context.Context, allowed bool) error
	KeepAliveTimeout() time.Duration
}

// AllocatorFor resolves an allocator backend; satisfied by
// (allocator.Dispatch).For together with a static choice. The Manager
// holds two of these: one for the daemon-configured job backend (SSH
// batch or UNICORE) and one dedicated to the local-process backend,
// since a session's open/schedule path and teardown path must each
// reach the allocator that actually owns that session's resource
// (job_id vs. process_pid), not whichever one cfg.Allocator happens to
// name.
type AllocatorFor func() (allocator.Allocator, error)

// ConfigLookup is the narrow Resource-Config Registry slice the Session
// Manager needs to read wait_until_running for a session's config;
// satisfied by (*resourceconfig.Registry).Get.
type ConfigLookup interface {
	Get(ctx context.Context, id string) (*resourceconfig.ResourceConfig, error)
}

// Prober issues the readiness probe (a PUT against the backend's
// vocabulary path) the design spec calls request_vocabulary; satisfied
// by pkg/broker's HTTP-backed implementation. A nil Prober is treated as
// always-successful, matching wait_until_running=false behavior.
type Prober interface {
	Probe(ctx context.Context, host string, port int) error
}

// Manager owns every Session state transition described in the design
// spec's state-machine table.
type Manager struct {
	store          Store
	admission      Admission
	allocator      AllocatorFor
	localAllocator AllocatorFor
	configs        ConfigLookup
	prober         Prober
	now            func() time.Time
}

// NewManager constructs a Manager. allocatorFor resolves the
// daemon-configured job backend (SSH batch or UNICORE) that Schedule and
// job-owned teardown use; localAllocatorFor resolves the always-present
// local-process backend that process-owned teardown uses, independent of
// cfg.Allocator. nowFn defaults to time.Now when nil; tests may override
// it for deterministic expiry checks. prober may be nil, in which case
// every STARTING session promotes to RUNNING immediately once its
// config's wait_until_running is honored.
func NewManager(store Store, admission Admission, allocatorFor, localAllocatorFor AllocatorFor, configs ConfigLookup, prober Prober, nowFn func() time.Time) *Manager {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Manager{store: store, admission: admission, allocator: allocatorFor, localAllocator: localAllocatorFor, configs: configs, prober: prober, now: nowFn}
}

// CreateSession creates a new STOPPED session if admission is open and
// the id is not already in use.
func (m *Manager) CreateSession(ctx context.Context, id, owner, configID string) (*session.Session, error) {
	if !m.admission.SessionCreationAllowed() {
		return nil, rrberrors.NewForbiddenError("session creation is currently suspended", nil)
	}
	s := session.New(id, owner, configID, m.now(), m.admission.KeepAliveTimeout())
	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteSession transitions a session to STOPPING, best-effort tears
// down any attached allocator state, then deletes the row.
func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.Status == session.StatusStopping {
		return nil
	}

	s.Status = session.StatusStopping
	if err := m.store.Update(ctx, s); err != nil {
		return err
	}

	if s.ProcessPID != session.NoProcess {
		if a, allocErr := m.localAllocator(); allocErr == nil {
			_, _ = a.Stop(ctx, s)
		}
	}
	if s.JobID != "" {
		if a, allocErr := m.allocator(); allocErr == nil {
			_, _ = a.Stop(ctx, s)
		}
	}

	return m.store.Delete(ctx, id)
}

// Schedule runs the configured allocator's Schedule against the named
// session, marking it FAILED on any allocator error.
func (m *Manager) Schedule(ctx context.Context, id string, info *allocator.JobInformation) (allocator.Result, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return allocator.Result{}, err
	}
	if s.Status != session.StatusStopped {
		return allocator.Result{}, rrberrors.NewInvalidArgumentError(fmt.Sprintf("session %q is not STOPPED", id), nil)
	}

	a, err := m.allocator()
	if err != nil {
		return allocator.Result{}, err
	}

	res, err := a.Schedule(ctx, s, info)
	if err != nil {
		s.Status = session.StatusFailed
		_ = m.store.Update(ctx, s)
		return res, err
	}
	return res, nil
}

// QueryStatus advances s's status per the design spec's table and
// refreshes valid_until while RUNNING, returning the (possibly updated)
// session.
func (m *Manager) QueryStatus(ctx context.Context, id string) (*session.Session, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch s.Status {
	case session.StatusScheduling:
		// allocator still running; no change.
	case session.StatusScheduled, session.StatusGettingHostname:
		if s.HTTPHost != "" {
			s.Status = session.StatusStarting
			if err := m.store.Update(ctx, s); err != nil {
				return nil, err
			}
		}
	case session.StatusStarting:
		if err := m.advanceStarting(ctx, s); err != nil {
			return nil, err
		}
	case session.StatusRunning:
		if m.now().After(s.ValidUntil) {
			s.ValidUntil = m.now().Add(m.admission.KeepAliveTimeout())
			if err := m.store.Update(ctx, s); err != nil {
				return nil, err
			}
		}
	case session.StatusStopping:
		if err := m.store.Delete(ctx, id); err != nil {
			return nil, err
		}
	case session.StatusStopped, session.StatusFailed:
		// nothing to advance; caller reports terminal state.
	}
	return s, nil
}

// advanceStarting promotes a STARTING session to RUNNING once its
// readiness probe succeeds, or leaves it STARTING on failure. The probe
// is only consulted when the session's config has wait_until_running
// set; otherwise the resource is assumed ready as soon as it reaches
// STARTING, matching the original query_status's re-check of the same
// flag the allocator already tested at Start time.
func (m *Manager) advanceStarting(ctx context.Context, s *session.Session) error {
	rc, err := m.configs.Get(ctx, s.ConfigID)
	if err != nil {
		return err
	}

	if rc.WaitUntilRunning {
		if m.prober != nil {
			if err := m.prober.Probe(ctx, s.HTTPHost, s.HTTPPort); err != nil {
				return nil // not yet serving REST traffic; remain STARTING
			}
		}
	}

	s.Status = session.StatusRunning
	s.ValidUntil = m.now().Add(m.admission.KeepAliveTimeout())
	return m.store.Update(ctx, s)
}

// KeepAlive pushes valid_until forward by the configured keep-alive
// duration.
func (m *Manager) KeepAlive(ctx context.Context, id string) error {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	s.ValidUntil = m.now().Add(m.admission.KeepAliveTimeout())
	return m.store.Update(ctx, s)
}

// Suspend closes the session-creation admission gate.
func (m *Manager) Suspend(ctx context.Context) error {
	return m.admission.SetSessionCreation(ctx, false)
}

// Resume reopens the session-creation admission gate.
func (m *Manager) Resume(ctx context.Context) error {
	return m.admission.SetSessionCreation(ctx, true)
}

// VerifyHostname is the idempotent helper described in the design spec:
// if job_id is set and http_host is empty, it asks the allocator to
// resolve a hostname, persisting the result or reverting to SCHEDULED.
// A FAILED sentinel deletes the session.
func (m *Manager) VerifyHostname(ctx context.Context, id string) (*session.Session, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.JobID == "" || s.HTTPHost != "" {
		return s, nil
	}

	s.Status = session.StatusGettingHostname
	if err := m.store.Update(ctx, s); err != nil {
		return nil, err
	}

	a, err := m.allocator()
	if err != nil {
		return nil, err
	}
	host, err := a.Hostname(ctx, s)
	if err != nil {
		return nil, err
	}

	if host == allocator.HostnameFailed {
		if err := m.store.Delete(ctx, id); err != nil {
			return nil, err
		}
		return nil, rrberrors.NewAllocationFailedError(fmt.Sprintf("allocation for session %q failed", id), nil)
	}
	if host == "" {
		s.Status = session.StatusScheduled
		if err := m.store.Update(ctx, s); err != nil {
			return nil, err
		}
		return s, nil
	}

	s.HTTPHost = host
	if err := m.store.Update(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}
