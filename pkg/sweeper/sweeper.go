// Package sweeper implements the Keep-Alive Sweeper: a background task
// that periodically expires idle sessions and drives their teardown
// against whichever allocator owns each one.
package sweeper

import (
	"context"
	"time"

	"github.com/stacklok/rrbroker/pkg/allocator"
	"github.com/stacklok/rrbroker/pkg/logger"
	"github.com/stacklok/rrbroker/pkg/session"
)

// Store is the narrow persistence slice the sweeper needs.
type Store interface {
	List(ctx context.Context) ([]*session.Session, error)
	Update(ctx context.Context, s *session.Session) error
	Delete(ctx context.Context, id string) error
}

// AllocatorFor resolves an allocator backend, mirroring
// pkg/session/manager.AllocatorFor. The sweeper holds one bound to the
// daemon-configured job backend (SSH batch or UNICORE) and one bound to
// the always-present local-process backend, so expiry teardown reaches
// whichever allocator actually owns a given session's resource.
type AllocatorFor func() (allocator.Allocator, error)

// Sweeper runs one tick per interval, listing every session and tearing
// down whichever ones have expired.
type Sweeper struct {
	store          Store
	allocator      AllocatorFor
	localAllocator AllocatorFor
	interval       time.Duration
	now            func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Sweeper. allocatorFor resolves the daemon-configured
// job backend; localAllocatorFor resolves the local-process backend
// independent of cfg.Allocator. nowFn defaults to time.Now when nil.
func New(store Store, allocatorFor, localAllocatorFor AllocatorFor, interval time.Duration, nowFn func() time.Time) *Sweeper {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Sweeper{
		store:          store,
		allocator:      allocatorFor,
		localAllocator: localAllocatorFor,
		interval:       interval,
		now:            nowFn,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Run blocks, ticking every interval until ctx is cancelled or Stop is
// called, whichever comes first. It is meant to be run under an
// errgroup alongside the HTTP server so container restarts don't leave
// a tick in flight.
func (s *Sweeper) Run(ctx context.Context) error {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Stop requests the sweeper loop to exit and waits for it to do so.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// tick implements one sweep cycle of §4.6: list, expire, teardown.
func (s *Sweeper) tick(ctx context.Context) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		logger.Errorf("sweeper: listing sessions: %v", err)
		return
	}

	for _, sess := range sessions {
		if !s.now().After(sess.ValidUntil) {
			continue
		}
		s.expire(ctx, sess)
	}
}

func (s *Sweeper) expire(ctx context.Context, sess *session.Session) {
	sess.Status = session.StatusStopping
	if err := s.store.Update(ctx, sess); err != nil {
		logger.Errorf("sweeper: marking session %q stopping: %v", sess.ID, err)
		return
	}

	if sess.ProcessPID != session.NoProcess {
		if a, err := s.localAllocator(); err != nil {
			logger.Errorf("sweeper: resolving local allocator for session %q: %v", sess.ID, err)
		} else if _, stopErr := a.Stop(ctx, sess); stopErr != nil {
			logger.Errorf("sweeper: stopping local process for session %q: %v", sess.ID, stopErr)
		}
	}
	if sess.JobID != "" {
		if a, err := s.allocator(); err != nil {
			logger.Errorf("sweeper: resolving allocator for session %q: %v", sess.ID, err)
		} else if _, stopErr := a.Stop(ctx, sess); stopErr != nil {
			logger.Errorf("sweeper: stopping job for session %q: %v", sess.ID, stopErr)
		}
	}

	if err := s.store.Delete(ctx, sess.ID); err != nil {
		logger.Errorf("sweeper: deleting expired session %q: %v", sess.ID, err)
	}
}
