package localprocess

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/rrbroker/pkg/resourceconfig"
	"github.com/stacklok/rrbroker/pkg/session"
)

type fakeStore struct{ lastStatus session.Status }

func (f *fakeStore) Update(_ context.Context, s *session.Session) error {
	f.lastStatus = s.Status
	return nil
}

type fakeRegistry struct{ rc *resourceconfig.ResourceConfig }

func (f *fakeRegistry) Get(_ context.Context, id string) (*resourceconfig.ResourceConfig, error) {
	return f.rc, nil
}

func newTestSession() *session.Session {
	return session.New("sess-1", "alice", "rtneuron", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Hour)
}

func TestStart_SpawnsProcessAndCapturesPID(t *testing.T) {
	store := &fakeStore{}
	registry := &fakeRegistry{rc: &resourceconfig.ResourceConfig{CommandLine: "/bin/echo hello"}}
	a := New(store, registry)

	sess := newTestSession()
	res, err := a.Start(context.Background(), sess, nil)
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Greater(t, sess.ProcessPID, 0)
	assert.Equal(t, session.StatusStarting, sess.Status)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		out, err := a.OutLog(context.Background(), sess)
		if err == nil && out != "" {
			assert.Contains(t, out, "hello")
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for captured stdout")
}

func TestStart_EmptyCommandLineIsInvalidArgument(t *testing.T) {
	store := &fakeStore{}
	registry := &fakeRegistry{rc: &resourceconfig.ResourceConfig{}}
	a := New(store, registry)

	_, err := a.Start(context.Background(), newTestSession(), nil)
	require.Error(t, err)
}

func TestStop_SendsSIGTERMAndProcessExits(t *testing.T) {
	store := &fakeStore{}
	registry := &fakeRegistry{rc: &resourceconfig.ResourceConfig{CommandLine: "/bin/sleep 5"}}
	a := New(store, registry)

	sess := newTestSession()
	_, err := a.Start(context.Background(), sess, nil)
	require.NoError(t, err)

	_, err = a.Stop(context.Background(), sess)
	require.NoError(t, err)
}

func TestHostname_ReturnsSessionHTTPHost(t *testing.T) {
	a := New(&fakeStore{}, &fakeRegistry{})
	sess := newTestSession()
	sess.HTTPHost = "localhost"

	host, err := a.Hostname(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)
}

func TestOutLog_NoProcessAttachedIsNotFound(t *testing.T) {
	a := New(&fakeStore{}, &fakeRegistry{})
	_, err := a.OutLog(context.Background(), newTestSession())
	require.Error(t, err)
}
