package broker

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"

	"github.com/stacklok/rrbroker/pkg/allocator"
	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
	"github.com/stacklok/rrbroker/pkg/logger"
	"github.com/stacklok/rrbroker/pkg/session"
	"github.com/stacklok/rrbroker/pkg/session/manager"
)

// httpPortRangeLow and httpPortRangeHigh bound the randomized http_port
// assigned on schedule, per the design spec.
const (
	httpPortRangeLow  = 3000
	httpPortRangeHigh = 4000
)

// sessionManager is the slice of *manager.Manager the broker drives.
type sessionManager interface {
	CreateSession(ctx context.Context, id, owner, configID string) (*session.Session, error)
	DeleteSession(ctx context.Context, id string) error
	Schedule(ctx context.Context, id string, info *allocator.JobInformation) (allocator.Result, error)
	QueryStatus(ctx context.Context, id string) (*session.Session, error)
	KeepAlive(ctx context.Context, id string) error
	Suspend(ctx context.Context) error
	Resume(ctx context.Context) error
	VerifyHostname(ctx context.Context, id string) (*session.Session, error)
}

// allocatorFor resolves an allocator backend. The Broker holds one bound
// to the daemon-configured job backend (SSH batch or UNICORE) and one
// dedicated to the always-present local-process backend, since `open`
// and per-session log/status lookups must each reach the allocator that
// actually owns a given session's resource (job_id vs. process_pid), not
// whichever one cfg.Allocator names.
type allocatorFor func() (allocator.Allocator, error)

// Broker is the per-session command dispatch entry point.
type Broker struct {
	manager           sessionManager
	store             manager.Store
	allocatorFor      allocatorFor
	localAllocatorFor allocatorFor
	imageFeed         ImageFeedHook
}

// New constructs a Broker with a no-op ImageFeedHook; use WithImageFeed
// to inject a real one. allocatorFor resolves the daemon-configured job
// backend that Schedule uses; localAllocatorFor resolves the
// always-present local-process backend that Open uses directly,
// independent of cfg.Allocator.
func New(mgr sessionManager, store manager.Store, allocatorFor, localAllocatorFor allocatorFor) *Broker {
	return &Broker{manager: mgr, store: store, allocatorFor: allocatorFor, localAllocatorFor: localAllocatorFor, imageFeed: NoopImageFeedHook{}}
}

// WithImageFeed replaces the broker's image-feed hook.
func (b *Broker) WithImageFeed(hook ImageFeedHook) *Broker {
	b.imageFeed = hook
	return b
}

// CreateSession creates a new session row and registers it with the
// image-feed sidecar.
func (b *Broker) CreateSession(ctx context.Context, id, owner, configID string) (*session.Session, error) {
	sess, err := b.manager.CreateSession(ctx, id, owner, configID)
	if err != nil {
		return nil, err
	}
	if err := b.imageFeed.Register(ctx, id, sess.HTTPHost, sess.HTTPPort); err != nil {
		logger.FromContext(ctx).Debugw("image-feed registration failed", "session", id, "error", err)
	}
	return sess, nil
}

// DeleteSession destroys the session identified by id and unregisters
// it from the image-feed sidecar.
func (b *Broker) DeleteSession(ctx context.Context, id string) error {
	if err := b.manager.DeleteSession(ctx, id); err != nil {
		return err
	}
	if err := b.imageFeed.Unregister(ctx, id); err != nil {
		logger.FromContext(ctx).Debugw("image-feed unregistration failed", "session", id, "error", err)
	}
	return nil
}

// ImageFeed implements the `imagefeed` command, delegating to the
// configured image-feed hook for POST/DELETE, and reporting current
// registration status for GET.
func (b *Broker) ImageFeed(ctx context.Context, id string, method string) (ContentsResponse, error) {
	sess, err := b.store.Get(ctx, id)
	if err != nil {
		return ContentsResponse{}, err
	}
	switch method {
	case http.MethodPost:
		if err := b.imageFeed.Register(ctx, id, sess.HTTPHost, sess.HTTPPort); err != nil {
			return ContentsResponse{}, rrberrors.NewTransportError(err.Error(), err)
		}
	case http.MethodDelete:
		if err := b.imageFeed.Unregister(ctx, id); err != nil {
			return ContentsResponse{}, rrberrors.NewTransportError(err.Error(), err)
		}
	}
	return ContentsResponse{Contents: fmt.Sprintf("http://%s:%d", sess.HTTPHost, sess.HTTPPort)}, nil
}

// Schedule implements the `schedule` command: parse JobInformation,
// randomize http_port, clear http_host, then run the state-machine
// schedule transition.
func (b *Broker) Schedule(ctx context.Context, id string, req ScheduleRequest) (allocator.Result, error) {
	sess, err := b.store.Get(ctx, id)
	if err != nil {
		return allocator.Result{}, err
	}
	sess.HTTPPort = httpPortRangeLow + rand.Intn(httpPortRangeHigh-httpPortRangeLow) //nolint:gosec // port selection, not a security-sensitive value
	sess.HTTPHost = ""
	if err := b.store.Update(ctx, sess); err != nil {
		return allocator.Result{}, err
	}

	info := &allocator.JobInformation{
		Params:      req.Params,
		Environment: req.Environment,
		Reservation: req.ReservationName,
		Queue:       req.QueueName,
		Exclusive:   req.ExclusiveAllocation,
	}
	return b.manager.Schedule(ctx, id, info)
}

// Open implements the `open` command: the local-process variant of
// schedule. Unlike Schedule, it never goes through the daemon-configured
// job backend — it starts a local OS process directly via the
// local-process allocator, matching the original's independent
// process-manager path, and is refused if a process is already attached.
func (b *Broker) Open(ctx context.Context, id string, req ScheduleRequest) (allocator.Result, error) {
	sess, err := b.store.Get(ctx, id)
	if err != nil {
		return allocator.Result{}, err
	}
	if sess.ProcessPID != session.NoProcess {
		return allocator.Result{}, rrberrors.NewConflictError(fmt.Sprintf("session %q already has an attached process", id), nil)
	}
	if sess.Status != session.StatusStopped {
		return allocator.Result{}, rrberrors.NewInvalidArgumentError(fmt.Sprintf("session %q is not STOPPED", id), nil)
	}

	sess.HTTPPort = httpPortRangeLow + rand.Intn(httpPortRangeHigh-httpPortRangeLow) //nolint:gosec // port selection, not a security-sensitive value
	sess.HTTPHost = ""
	if err := b.store.Update(ctx, sess); err != nil {
		return allocator.Result{}, err
	}

	info := &allocator.JobInformation{
		Params:      req.Params,
		Environment: req.Environment,
		Reservation: req.ReservationName,
		Queue:       req.QueueName,
		Exclusive:   req.ExclusiveAllocation,
	}

	a, err := b.localAllocatorFor()
	if err != nil {
		return allocator.Result{}, err
	}
	res, err := a.Start(ctx, sess, info)
	if err != nil {
		sess.Status = session.StatusFailed
		_ = b.store.Update(ctx, sess)
		return res, err
	}
	return res, nil
}

// Status implements the `status` command: verify hostname, advance
// status, then return the combined payload.
func (b *Broker) Status(ctx context.Context, id string) (StatusResponse, error) {
	if _, err := b.manager.VerifyHostname(ctx, id); err != nil && !rrberrors.IsNotFound(err) {
		logger.FromContext(ctx).Debugw("hostname verification did not complete", "session", id, "error", err)
	}

	sess, err := b.manager.QueryStatus(ctx, id)
	if err != nil {
		return StatusResponse{}, err
	}

	return StatusResponse{
		Session:     sess,
		Code:        200,
		Description: string(sess.Status),
		Hostname:    sess.HTTPHost,
		Port:        sess.HTTPPort,
	}, nil
}

// GetSession returns the session row identified by id, unchanged.
func (b *Broker) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return b.store.Get(ctx, id)
}

// ListSessions returns every session row.
func (b *Broker) ListSessions(ctx context.Context) ([]*session.Session, error) {
	return b.store.List(ctx)
}

// Log returns the allocator's captured stdout for id.
func (b *Broker) Log(ctx context.Context, id string) (ContentsResponse, error) {
	return b.delegate(ctx, id, func(a allocator.Allocator, sess *session.Session) (string, error) {
		return a.OutLog(ctx, sess)
	})
}

// Err returns the allocator's captured stderr for id.
func (b *Broker) Err(ctx context.Context, id string) (ContentsResponse, error) {
	return b.delegate(ctx, id, func(a allocator.Allocator, sess *session.Session) (string, error) {
		return a.ErrLog(ctx, sess)
	})
}

// Job returns the allocator's raw scheduler status text for id.
func (b *Broker) Job(ctx context.Context, id string) (ContentsResponse, error) {
	return b.delegate(ctx, id, func(a allocator.Allocator, sess *session.Session) (string, error) {
		return a.JobInformationText(ctx, sess)
	})
}

// delegate resolves the allocator that actually owns sess's resource —
// the local-process backend for a process-attached session, otherwise
// the daemon-configured job backend — before invoking call against it.
func (b *Broker) delegate(ctx context.Context, id string, call func(allocator.Allocator, *session.Session) (string, error)) (ContentsResponse, error) {
	sess, err := b.store.Get(ctx, id)
	if err != nil {
		return ContentsResponse{}, err
	}

	resolve := b.allocatorFor
	if sess.ProcessPID != session.NoProcess {
		resolve = b.localAllocatorFor
	}
	a, err := resolve()
	if err != nil {
		return ContentsResponse{}, err
	}
	contents, err := call(a, sess)
	if err != nil {
		return ContentsResponse{}, err
	}
	return ContentsResponse{Contents: contents}, nil
}

// KeepAlive implements the admin-surface `keepalive` command.
func (b *Broker) KeepAlive(ctx context.Context, id string) error {
	return b.manager.KeepAlive(ctx, id)
}

// Suspend implements the admin-surface `suspend` command.
func (b *Broker) Suspend(ctx context.Context) error {
	return b.manager.Suspend(ctx)
}

// Resume implements the admin-surface `resume` command.
func (b *Broker) Resume(ctx context.Context) error {
	return b.manager.Resume(ctx)
}
