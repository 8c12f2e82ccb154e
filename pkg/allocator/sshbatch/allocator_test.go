package sshbatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/rrbroker/pkg/allocator"
	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
	"github.com/stacklok/rrbroker/pkg/resourceconfig"
	"github.com/stacklok/rrbroker/pkg/session"
)

type fakeRunner struct {
	responses map[string]fakeResponse // keyed by host
	calls     []string
}

type fakeResponse struct {
	stdout, stderr string
	err            error
}

func (f *fakeRunner) Run(_ context.Context, host, command string) (string, string, error) {
	f.calls = append(f.calls, command)
	r := f.responses[host]
	return r.stdout, r.stderr, r.err
}

type fakeStore struct {
	updates []session.Status
}

func (f *fakeStore) Update(_ context.Context, s *session.Session) error {
	f.updates = append(f.updates, s.Status)
	return nil
}

type fakeRegistry struct {
	configs map[string]*resourceconfig.ResourceConfig
}

func (f *fakeRegistry) Get(_ context.Context, id string) (*resourceconfig.ResourceConfig, error) {
	rc, ok := f.configs[id]
	if !ok {
		return nil, rrberrors.NewNotFoundError("no such config", nil)
	}
	return rc, nil
}

func newTestSession() *session.Session {
	return session.New("sess-1", "alice", "rtneuron", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Hour)
}

func TestAllocate_GrantedOnFirstCandidate(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"node01.cluster.example": {stderr: "salloc: Granted job allocation 4242"},
	}}
	store := &fakeStore{}
	registry := &fakeRegistry{configs: map[string]*resourceconfig.ResourceConfig{
		"rtneuron": {CommandLine: "/opt/render/rtneuron", Queue: "gpu"},
	}}

	a := New(Config{
		User:         "render",
		KeyPath:      "/etc/rrb/id_rsa",
		EntryHosts:   []string{"node01.cluster.example"},
		AllocTimeout: 60 * time.Second,
	}, store, registry)
	a.runner = runner

	sess := newTestSession()
	res, err := a.allocateLocked(context.Background(), sess, nil)
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, "4242", sess.JobID)
	assert.Equal(t, session.StatusScheduled, sess.Status)
	assert.Equal(t, "node01.cluster.example", sess.ClusterNode)
}

func TestAllocate_FallsThroughToSecondCandidate(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"node01.cluster.example": {stderr: "salloc: error: Job request exceeds limits"},
		"node02.cluster.example": {stderr: "salloc: Granted job allocation 99"},
	}}
	store := &fakeStore{}
	registry := &fakeRegistry{configs: map[string]*resourceconfig.ResourceConfig{
		"rtneuron": {CommandLine: "/opt/render/rtneuron"},
	}}

	a := New(Config{
		User:         "render",
		KeyPath:      "/etc/rrb/id_rsa",
		EntryHosts:   []string{"node01.cluster.example", "node02.cluster.example"},
		AllocTimeout: 60 * time.Second,
	}, store, registry)
	a.runner = runner

	sess := newTestSession()
	res, err := a.allocateLocked(context.Background(), sess, nil)
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, "99", sess.JobID)
	assert.Equal(t, "node02.cluster.example", sess.ClusterNode)
}

func TestAllocate_AllCandidatesFail(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"node01.cluster.example": {stderr: "salloc: error: nope"},
	}}
	store := &fakeStore{}
	registry := &fakeRegistry{configs: map[string]*resourceconfig.ResourceConfig{
		"rtneuron": {CommandLine: "/opt/render/rtneuron"},
	}}

	a := New(Config{
		User:         "render",
		KeyPath:      "/etc/rrb/id_rsa",
		EntryHosts:   []string{"node01.cluster.example"},
		AllocTimeout: 60 * time.Second,
	}, store, registry)
	a.runner = runner

	sess := newTestSession()
	_, err := a.allocateLocked(context.Background(), sess, nil)
	require.Error(t, err)
	assert.True(t, rrberrors.IsAllocationFailed(err))
}

func TestParseSallocOutput(t *testing.T) {
	jobID, granted := parseSallocOutput("salloc: Granted job allocation 777")
	assert.True(t, granted)
	assert.Equal(t, "777", jobID)

	_, granted = parseSallocOutput("salloc: error: unable to allocate resources")
	assert.False(t, granted)
}

func TestParseScontrolShowJob(t *testing.T) {
	out := "JobId=42 JobState=RUNNING BatchHost=node03"
	host := parseScontrolShowJob(out, "node01.cluster.example.org")
	assert.Equal(t, "node03.cluster.example.org", host)

	cancelled := "JobId=42 JobState=CANCELLED BatchHost=node03"
	assert.Equal(t, "", parseScontrolShowJob(cancelled, "node01.cluster.example.org"))
}

func TestBuildSallocCommand_OmitsNodesWhenZero(t *testing.T) {
	sess := newTestSession()
	o := overrides{queue: "gpu", nbCPUs: 4, nbGPUs: 1, memory: 8192}
	cmd := buildSallocCommand(60, sess, "rtneuron", o)
	assert.Contains(t, cmd, "--immediate=60")
	assert.Contains(t, cmd, "-p gpu")
	assert.NotContains(t, cmd, " -N ")
	assert.Contains(t, cmd, "-c 4 --gres=gpu:1 --mem=8192")
}

func TestMergeOverrides_NonZeroJobInformationWins(t *testing.T) {
	rc := &resourceconfig.ResourceConfig{Queue: "default", NbCPUs: 2}
	info := &allocator.JobInformation{NbCPUs: 8}
	o := mergeOverrides(rc, info, "fallback-queue", "01:00:00")
	assert.Equal(t, "default", o.queue)
	assert.Equal(t, 8, o.nbCPUs)
	assert.Equal(t, "01:00:00", o.allocationTime)
}
