package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/rrbroker/pkg/allocator"
	"github.com/stacklok/rrbroker/pkg/broker"
	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
	"github.com/stacklok/rrbroker/pkg/session"
)

type fakeManager struct {
	sessions map[string]*session.Session
}

func newFakeManager() *fakeManager {
	return &fakeManager{sessions: make(map[string]*session.Session)}
}

func (f *fakeManager) CreateSession(_ context.Context, id, owner, configID string) (*session.Session, error) {
	s := session.New(id, owner, configID, time.Now(), time.Hour)
	f.sessions[id] = s
	return s, nil
}

func (f *fakeManager) DeleteSession(_ context.Context, id string) error {
	if _, ok := f.sessions[id]; !ok {
		return rrberrors.NewNotFoundError("not found", nil)
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeManager) Schedule(_ context.Context, id string, _ *allocator.JobInformation) (allocator.Result, error) {
	s, ok := f.sessions[id]
	if !ok {
		return allocator.Result{}, rrberrors.NewNotFoundError("not found", nil)
	}
	s.Status = session.StatusScheduled
	return allocator.Result{StatusCode: 200}, nil
}

func (f *fakeManager) QueryStatus(_ context.Context, id string) (*session.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, rrberrors.NewNotFoundError("not found", nil)
	}
	return s, nil
}

func (f *fakeManager) KeepAlive(_ context.Context, id string) error {
	s, ok := f.sessions[id]
	if !ok {
		return rrberrors.NewNotFoundError("not found", nil)
	}
	s.ValidUntil = s.ValidUntil.Add(time.Hour)
	return nil
}

func (f *fakeManager) Suspend(context.Context) error { return nil }
func (f *fakeManager) Resume(context.Context) error  { return nil }

func (f *fakeManager) VerifyHostname(_ context.Context, id string) (*session.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, rrberrors.NewNotFoundError("not found", nil)
	}
	return s, nil
}

type fakeStore struct{ sessions map[string]*session.Session }

func (f *fakeStore) Get(_ context.Context, id string) (*session.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, rrberrors.NewNotFoundError("not found", nil)
	}
	return s, nil
}
func (f *fakeStore) Create(_ context.Context, s *session.Session) error {
	f.sessions[s.ID] = s
	return nil
}
func (f *fakeStore) Update(_ context.Context, s *session.Session) error {
	f.sessions[s.ID] = s
	return nil
}
func (f *fakeStore) Delete(_ context.Context, id string) error {
	delete(f.sessions, id)
	return nil
}
func (f *fakeStore) List(context.Context) ([]*session.Session, error) {
	var out []*session.Session
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, nil
}

type fakeAllocator struct{}

func (fakeAllocator) Schedule(context.Context, *session.Session, *allocator.JobInformation) (allocator.Result, error) {
	return allocator.Result{}, nil
}
func (fakeAllocator) Start(context.Context, *session.Session, *allocator.JobInformation) (allocator.Result, error) {
	return allocator.Result{}, nil
}
func (fakeAllocator) Stop(context.Context, *session.Session) (allocator.Result, error) {
	return allocator.Result{}, nil
}
func (fakeAllocator) Kill(context.Context, *session.Session) (allocator.Result, error) {
	return allocator.Result{}, nil
}
func (fakeAllocator) Hostname(context.Context, *session.Session) (string, error) { return "", nil }
func (fakeAllocator) JobInformationText(context.Context, *session.Session) (string, error) {
	return "", nil
}
func (fakeAllocator) OutLog(context.Context, *session.Session) (string, error) { return "", nil }
func (fakeAllocator) ErrLog(context.Context, *session.Session) (string, error) { return "", nil }

func newTestBroker() (*broker.Broker, *fakeManager, *fakeStore) {
	mgr := newFakeManager()
	store := &fakeStore{sessions: mgr.sessions}
	b := broker.New(mgr, store,
		func() (allocator.Allocator, error) { return fakeAllocator{}, nil },
		func() (allocator.Allocator, error) { return fakeAllocator{}, nil })
	return b, mgr, store
}

func TestSessionCreate_SetsCookieAndReturnsSession(t *testing.T) {
	b, _, _ := newTestBroker()
	router := SessionRouter(b, time.Second)

	body := strings.NewReader(`{"owner":"alice","renderer_id":"rtneuron"}`)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, broker.CookieName, cookies[0].Name)

	var sess session.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sess))
	assert.Equal(t, "alice", sess.Owner)
	assert.Equal(t, cookies[0].Value, sess.ID)
}

func TestSessionDestroy_RequiresCookie(t *testing.T) {
	b, _, _ := newTestBroker()
	router := SessionRouter(b, time.Second)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionCommand_KeepAliveDispatchesToCookieSession(t *testing.T) {
	b, mgr, _ := newTestBroker()
	router := SessionRouter(b, time.Second)

	_, err := mgr.CreateSession(context.Background(), "s1", "alice", "rtneuron")
	require.NoError(t, err)
	before := mgr.sessions["s1"].ValidUntil

	req := httptest.NewRequest(http.MethodPut, "/keepalive", nil)
	req.AddCookie(&http.Cookie{Name: broker.CookieName, Value: "s1"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, mgr.sessions["s1"].ValidUntil.After(before))
}

func TestSessionCommand_UnknownCookie404s(t *testing.T) {
	b, _, _ := newTestBroker()
	router := SessionRouter(b, time.Second)

	req := httptest.NewRequest(http.MethodPut, "/status", nil)
	req.AddCookie(&http.Cookie{Name: broker.CookieName, Value: "missing"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionDetail_ReturnsSessionByID(t *testing.T) {
	b, mgr, _ := newTestBroker()
	router := SessionRouter(b, time.Second)

	_, err := mgr.CreateSession(context.Background(), "s1", "alice", "rtneuron")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/s1/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var sess session.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sess))
	assert.Equal(t, "s1", sess.ID)
}
