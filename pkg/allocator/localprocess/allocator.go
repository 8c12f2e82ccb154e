// Package localprocess implements the local-process allocator for
// development or co-located deployments: the rendering binary runs as a
// direct child of the broker instead of on a remote grid.
package localprocess

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/stacklok/rrbroker/pkg/allocator"
	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
	"github.com/stacklok/rrbroker/pkg/resourceconfig"
	"github.com/stacklok/rrbroker/pkg/session"
)

// killGrace is the fixed wait between SIGTERM and SIGKILL on stop.
const killGrace = 2 * time.Second

type sessionStore interface {
	Update(ctx context.Context, s *session.Session) error
}

type configLookup interface {
	Get(ctx context.Context, id string) (*resourceconfig.ResourceConfig, error)
}

// process tracks a spawned child and its captured output streams. done
// is closed exactly once, by reap's call to cmd.Wait — exec.Cmd.Wait
// must not be called more than once, so Stop waits on this channel
// instead of issuing its own Wait.
type process struct {
	cmd    *exec.Cmd
	stdout *syncBuffer
	stderr *syncBuffer
	done   chan struct{}
}

// syncBuffer is a bytes.Buffer safe for one concurrent writer (the child
// process's pipe-reader goroutine) and concurrent readers (OutLog/ErrLog
// calls).
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Allocator implements allocator.Allocator by spawning and reaping a
// local OS process per session.
type Allocator struct {
	store    sessionStore
	registry configLookup

	mu        sync.Mutex
	processes map[string]*process // keyed by session id

	probeClient *http.Client
}

// New constructs a local-process Allocator.
func New(store sessionStore, registry configLookup) *Allocator {
	return &Allocator{
		store:       store,
		registry:    registry,
		processes:   make(map[string]*process),
		probeClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Schedule is equivalent to Start for the local-process variant: there
// is no separate allocation phase.
func (a *Allocator) Schedule(ctx context.Context, sess *session.Session, info *allocator.JobInformation) (allocator.Result, error) {
	return a.Start(ctx, sess, info)
}

func (a *Allocator) Start(ctx context.Context, sess *session.Session, info *allocator.JobInformation) (allocator.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rc, err := a.registry.Get(ctx, sess.ConfigID)
	if err != nil {
		return allocator.Result{}, err
	}

	args := strings.Fields(rc.CommandLine)
	if len(args) == 0 {
		return allocator.Result{}, rrberrors.NewInvalidArgumentError("resource config has an empty command line", nil)
	}
	extraParams := ""
	if info != nil {
		extraParams = info.Params
	}
	if sess.HTTPHost == "" {
		sess.HTTPHost = "localhost"
	}
	restParams := resourceconfig.FormatRESTParameters(rc.ProcessRESTParametersFormat, sess.HTTPHost, fmt.Sprintf("%d", sess.HTTPPort), "http", "")
	args = append(args, strings.Fields(restParams)...)
	args = append(args, strings.Fields(extraParams)...)

	cmd := exec.CommandContext(context.Background(), args[0], args[1:]...)
	cmd.Env = append(cmd.Env, strings.Fields(rc.EnvironmentVariables)...)
	proc := &process{cmd: cmd, stdout: &syncBuffer{}, stderr: &syncBuffer{}, done: make(chan struct{})}
	cmd.Stdout = proc.stdout
	cmd.Stderr = proc.stderr

	if err := cmd.Start(); err != nil {
		return allocator.Result{}, rrberrors.NewAllocationFailedError("spawning local rendering process", err)
	}

	a.processes[sess.ID] = proc
	go a.reap(sess.ID, proc)

	sess.ProcessPID = cmd.Process.Pid
	sess.Status = session.StatusStarting
	if err := a.store.Update(ctx, sess); err != nil {
		return allocator.Result{}, err
	}
	return allocator.Result{StatusCode: http.StatusOK, Body: fmt.Sprintf("%d", cmd.Process.Pid)}, nil
}

func (a *Allocator) reap(sessionID string, proc *process) {
	_ = proc.cmd.Wait()
	close(proc.done)
	a.mu.Lock()
	delete(a.processes, sessionID)
	a.mu.Unlock()
}

func (a *Allocator) Stop(ctx context.Context, sess *session.Session) (allocator.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rc, err := a.registry.Get(ctx, sess.ConfigID)
	if err == nil && rc.GracefulExit && sess.HTTPHost != "" {
		a.bestEffortGracefulExit(ctx, sess)
	}

	proc, ok := a.processes[sess.ID]
	if !ok || proc.cmd.Process == nil {
		return allocator.Result{StatusCode: http.StatusOK}, nil
	}

	_ = proc.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-time.After(killGrace):
		_ = proc.cmd.Process.Kill()
	case <-proc.done:
	}
	return allocator.Result{StatusCode: http.StatusOK}, nil
}

func (a *Allocator) Kill(ctx context.Context, sess *session.Session) (allocator.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	proc, ok := a.processes[sess.ID]
	if !ok || proc.cmd.Process == nil {
		return allocator.Result{StatusCode: http.StatusOK}, nil
	}
	_ = proc.cmd.Process.Kill()
	return allocator.Result{StatusCode: http.StatusOK}, nil
}

func (a *Allocator) bestEffortGracefulExit(ctx context.Context, sess *session.Session) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, fmt.Sprintf("http://%s:%d/v1/exit", sess.HTTPHost, sess.HTTPPort), nil)
	if err != nil {
		return
	}
	resp, err := a.probeClient.Do(req)
	if err != nil {
		return
	}
	_ = resp.Body.Close()
}

// Hostname is a no-op for the local-process variant: the session's
// http_host is set directly by Start, not discovered asynchronously.
func (a *Allocator) Hostname(_ context.Context, sess *session.Session) (string, error) {
	return sess.HTTPHost, nil
}

func (a *Allocator) JobInformationText(_ context.Context, sess *session.Session) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.processes[sess.ID]; ok {
		return fmt.Sprintf("pid=%d running", sess.ProcessPID), nil
	}
	return fmt.Sprintf("pid=%d not running", sess.ProcessPID), nil
}

func (a *Allocator) OutLog(_ context.Context, sess *session.Session) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	proc, ok := a.processes[sess.ID]
	if !ok {
		return "", rrberrors.NewNotFoundError("no local process attached to session", nil)
	}
	return proc.stdout.String(), nil
}

func (a *Allocator) ErrLog(_ context.Context, sess *session.Session) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	proc, ok := a.processes[sess.ID]
	if !ok {
		return "", rrberrors.NewNotFoundError("no local process attached to session", nil)
	}
	return proc.stderr.String(), nil
}

var _ allocator.Allocator = (*Allocator)(nil)
