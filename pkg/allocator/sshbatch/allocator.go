// Package sshbatch implements the SLURM-style batch allocator: resource
// scheduling, start, stop, and log retrieval driven over SSH command
// invocations against a pool of cluster entry nodes.
package sshbatch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/stacklok/rrbroker/pkg/allocator"
	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
	"github.com/stacklok/rrbroker/pkg/resourceconfig"
	"github.com/stacklok/rrbroker/pkg/session"
)

// sessionStore is the narrow persistence slice Allocate needs to persist
// intermediate state as it iterates candidate entry nodes.
type sessionStore interface {
	Update(ctx context.Context, s *session.Session) error
}

// configLookup resolves a session's ResourceConfig by id.
type configLookup interface {
	Get(ctx context.Context, id string) (*resourceconfig.ResourceConfig, error)
}

// Config holds the broker-wide SSH-batch allocator settings, sourced
// from pkg/config.
type Config struct {
	User         string
	KeyPath      string
	EntryHosts   []string
	DefaultQueue string
	DefaultTime  string
	AllocTimeout time.Duration
	OutLogPrefix string
}

// Allocator implements allocator.Allocator against a SLURM batch system
// reached over SSH.
type Allocator struct {
	cfg      Config
	store    sessionStore
	registry configLookup
	runner   commandRunner

	mu sync.Mutex

	probeClient *http.Client
}

// New constructs an SSH-batch Allocator.
func New(cfg Config, store sessionStore, registry configLookup) *Allocator {
	return &Allocator{
		cfg:         cfg,
		store:       store,
		registry:    registry,
		runner:      newSSHRunner(cfg.User, cfg.KeyPath),
		probeClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (a *Allocator) Schedule(ctx context.Context, sess *session.Session, info *allocator.JobInformation) (allocator.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	res, err := a.allocateLocked(ctx, sess, info)
	if err != nil || res.StatusCode >= 400 {
		return res, err
	}
	return a.startLocked(ctx, sess, info)
}

func (a *Allocator) allocateLocked(ctx context.Context, sess *session.Session, info *allocator.JobInformation) (allocator.Result, error) {
	rc, err := a.registry.Get(ctx, sess.ConfigID)
	if err != nil {
		return allocator.Result{}, err
	}
	o := mergeOverrides(rc, info, a.cfg.DefaultQueue, a.cfg.DefaultTime)
	allocTimeoutSeconds := int64(a.cfg.AllocTimeout.Seconds())

	var lastErr error
	for _, host := range a.cfg.EntryHosts {
		sess.ClusterNode = host
		sess.Status = session.StatusScheduling
		if err := a.store.Update(ctx, sess); err != nil {
			return allocator.Result{}, err
		}

		cmd := buildSallocCommand(allocTimeoutSeconds, sess, sess.ConfigID, o)
		_, stderr, runErr := a.runner.Run(ctx, host, cmd)
		if runErr != nil {
			lastErr = runErr
			continue
		}

		jobID, granted := parseSallocOutput(stderr)
		if !granted {
			sess.Status = session.StatusFailed
			_ = a.store.Update(ctx, sess)
			continue
		}

		sess.JobID = jobID
		sess.Status = session.StatusScheduled
		if err := a.store.Update(ctx, sess); err != nil {
			return allocator.Result{}, err
		}
		return allocator.Result{StatusCode: http.StatusOK, Body: jobID}, nil
	}

	failErr := rrberrors.NewAllocationFailedError("no candidate cluster entry node granted an allocation", lastErr)
	return allocator.Result{StatusCode: rrberrors.Code(failErr), Body: failErr.Message}, failErr
}

func (a *Allocator) Start(ctx context.Context, sess *session.Session, info *allocator.JobInformation) (allocator.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startLocked(ctx, sess, info)
}

func (a *Allocator) startLocked(ctx context.Context, sess *session.Session, info *allocator.JobInformation) (allocator.Result, error) {
	rc, err := a.registry.Get(ctx, sess.ConfigID)
	if err != nil {
		return allocator.Result{}, err
	}

	host, err := a.resolveHostname(ctx, sess)
	if err != nil {
		return allocator.Result{}, err
	}
	if host == "" || host == allocator.HostnameFailed {
		return allocator.Result{StatusCode: http.StatusServiceUnavailable, Body: "job not yet scheduled on a compute host"}, nil
	}

	outFile := logFileName(a.cfg.OutLogPrefix, sess.JobID, sess.ConfigID, "out")
	errFile := logFileName(a.cfg.OutLogPrefix, sess.JobID, sess.ConfigID, "err")
	restParams := resourceconfig.FormatRESTParameters(rc.ProcessRESTParametersFormat, host, "", "", sess.JobID)
	extraParams := ""
	if info != nil {
		extraParams = info.Params
	}
	script := buildStartScript(rc, restParams, extraParams, outFile, errFile)

	if _, _, err := a.runner.Run(ctx, host, script); err != nil {
		return allocator.Result{}, rrberrors.NewTransportError("starting rendering process over ssh", err)
	}

	sess.HTTPHost = host
	if rc.WaitUntilRunning {
		sess.Status = session.StatusStarting
	} else {
		sess.Status = session.StatusRunning
	}
	if err := a.store.Update(ctx, sess); err != nil {
		return allocator.Result{}, err
	}
	return allocator.Result{StatusCode: http.StatusOK, Body: host}, nil
}

func (a *Allocator) Stop(ctx context.Context, sess *session.Session) (allocator.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rc, err := a.registry.Get(ctx, sess.ConfigID)
	if err == nil && rc.GracefulExit && sess.HTTPHost != "" {
		a.bestEffortGracefulExit(ctx, sess)
	}

	cmd := fmt.Sprintf("scancel %s", sess.JobID)
	if _, _, err := a.runner.Run(ctx, sess.ClusterNode, cmd); err != nil {
		return allocator.Result{}, rrberrors.NewTransportError("scancel over ssh", err)
	}
	return allocator.Result{StatusCode: http.StatusOK}, nil
}

func (a *Allocator) Kill(ctx context.Context, sess *session.Session) (allocator.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cmd := fmt.Sprintf("scancel %s", sess.JobID)
	if _, _, err := a.runner.Run(ctx, sess.ClusterNode, cmd); err != nil {
		return allocator.Result{}, rrberrors.NewTransportError("scancel over ssh", err)
	}
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

func (a *Allocator) Hostname(ctx context.Context, sess *session.Session) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resolveHostname(ctx, sess)
}

func (a *Allocator) resolveHostname(ctx context.Context, sess *session.Session) (string, error) {
	cmd := fmt.Sprintf("scontrol show job %s", sess.JobID)
	stdout, _, err := a.runner.Run(ctx, sess.ClusterNode, cmd)
	if err != nil {
		return "", rrberrors.NewTransportError("scontrol show job over ssh", err)
	}
	return parseScontrolShowJob(stdout, sess.ClusterNode), nil
}

func (a *Allocator) JobInformationText(ctx context.Context, sess *session.Session) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cmd := fmt.Sprintf("scontrol show job %s", sess.JobID)
	stdout, _, err := a.runner.Run(ctx, sess.ClusterNode, cmd)
	if err != nil {
		return "", rrberrors.NewTransportError("scontrol show job over ssh", err)
	}
	return stdout, nil
}

func (a *Allocator) OutLog(ctx context.Context, sess *session.Session) (string, error) {
	return a.catLog(ctx, sess, "out")
}

func (a *Allocator) ErrLog(ctx context.Context, sess *session.Session) (string, error) {
	return a.catLog(ctx, sess, "err")
}

func (a *Allocator) catLog(ctx context.Context, sess *session.Session, stream string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	file := logFileName(a.cfg.OutLogPrefix, sess.JobID, sess.ConfigID, stream)
	cmd := fmt.Sprintf("cat %s", file)
	stdout, stderr, err := a.runner.Run(ctx, sess.ClusterNode, cmd)
	if err != nil {
		if strings.Contains(stderr, "No such file") {
			return "", rrberrors.NewNotFoundError(fmt.Sprintf("log file %q not found", file), nil)
		}
		return "", rrberrors.NewTransportError("cat log over ssh", err)
	}
	return stdout, nil
}

var _ allocator.Allocator = (*Allocator)(nil)
