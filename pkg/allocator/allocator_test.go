package allocator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
	"github.com/stacklok/rrbroker/pkg/session"
)

type stubAllocator struct{ name string }

func (s *stubAllocator) Schedule(context.Context, *session.Session, *JobInformation) (Result, error) {
	return Result{StatusCode: 200, Body: s.name}, nil
}
func (s *stubAllocator) Start(context.Context, *session.Session, *JobInformation) (Result, error) {
	return Result{StatusCode: 200, Body: s.name}, nil
}
func (s *stubAllocator) Stop(context.Context, *session.Session) (Result, error) {
	return Result{StatusCode: 200, Body: s.name}, nil
}
func (s *stubAllocator) Kill(context.Context, *session.Session) (Result, error) {
	return Result{StatusCode: 200, Body: s.name}, nil
}
func (s *stubAllocator) Hostname(context.Context, *session.Session) (string, error) {
	return s.name, nil
}
func (s *stubAllocator) JobInformationText(context.Context, *session.Session) (string, error) {
	return s.name, nil
}
func (s *stubAllocator) OutLog(context.Context, *session.Session) (string, error) { return s.name, nil }
func (s *stubAllocator) ErrLog(context.Context, *session.Session) (string, error) { return s.name, nil }

func TestDispatch_ForReturnsRegisteredAllocator(t *testing.T) {
	d := NewDispatch(map[Kind]Allocator{
		KindSSH:     &stubAllocator{name: "ssh"},
		KindUNICORE: &stubAllocator{name: "unicore"},
	})

	a, err := d.For(KindSSH)
	require.NoError(t, err)
	host, err := a.Hostname(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ssh", host)

	a, err = d.For(KindUNICORE)
	require.NoError(t, err)
	host, err = a.Hostname(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "unicore", host)
}

func TestDispatch_ForUnknownKindReturnsInternalError(t *testing.T) {
	d := NewDispatch(map[Kind]Allocator{KindSSH: &stubAllocator{name: "ssh"}})

	_, err := d.For(KindLocalProcess)
	require.Error(t, err)
	assert.True(t, rrberrors.IsInternal(err))
}
