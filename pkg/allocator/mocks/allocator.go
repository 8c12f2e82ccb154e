// Package mocks contains a hand-maintained gomock-style mock of the
// allocator.Allocator interface, mirroring the generated-mock shape used
// throughout the teacher's container/runtime tests.
package mocks

import (
	"context"
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/stacklok/rrbroker/pkg/allocator"
	"github.com/stacklok/rrbroker/pkg/session"
)

// MockAllocator is a mock of the Allocator interface.
type MockAllocator struct {
	ctrl     *gomock.Controller
	recorder *MockAllocatorMockRecorder
}

// MockAllocatorMockRecorder is the mock recorder for MockAllocator.
type MockAllocatorMockRecorder struct {
	mock *MockAllocator
}

// NewMockAllocator creates a new mock instance.
func NewMockAllocator(ctrl *gomock.Controller) *MockAllocator {
	mock := &MockAllocator{ctrl: ctrl}
	mock.recorder = &MockAllocatorMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockAllocator) EXPECT() *MockAllocatorMockRecorder {
	return m.recorder
}

// Schedule mocks base method.
func (m *MockAllocator) Schedule(ctx context.Context, sess *session.Session, info *allocator.JobInformation) (allocator.Result, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Schedule", ctx, sess, info)
	ret0, _ := ret[0].(allocator.Result)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Schedule indicates an expected call of Schedule.
func (mr *MockAllocatorMockRecorder) Schedule(ctx, sess, info interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Schedule", reflect.TypeOf((*MockAllocator)(nil).Schedule), ctx, sess, info)
}

// Start mocks base method.
func (m *MockAllocator) Start(ctx context.Context, sess *session.Session, info *allocator.JobInformation) (allocator.Result, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Start", ctx, sess, info)
	ret0, _ := ret[0].(allocator.Result)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Start indicates an expected call of Start.
func (mr *MockAllocatorMockRecorder) Start(ctx, sess, info interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Start", reflect.TypeOf((*MockAllocator)(nil).Start), ctx, sess, info)
}

// Stop mocks base method.
func (m *MockAllocator) Stop(ctx context.Context, sess *session.Session) (allocator.Result, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Stop", ctx, sess)
	ret0, _ := ret[0].(allocator.Result)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Stop indicates an expected call of Stop.
func (mr *MockAllocatorMockRecorder) Stop(ctx, sess interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Stop", reflect.TypeOf((*MockAllocator)(nil).Stop), ctx, sess)
}

// Kill mocks base method.
func (m *MockAllocator) Kill(ctx context.Context, sess *session.Session) (allocator.Result, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Kill", ctx, sess)
	ret0, _ := ret[0].(allocator.Result)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Kill indicates an expected call of Kill.
func (mr *MockAllocatorMockRecorder) Kill(ctx, sess interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Kill", reflect.TypeOf((*MockAllocator)(nil).Kill), ctx, sess)
}

// Hostname mocks base method.
func (m *MockAllocator) Hostname(ctx context.Context, sess *session.Session) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Hostname", ctx, sess)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Hostname indicates an expected call of Hostname.
func (mr *MockAllocatorMockRecorder) Hostname(ctx, sess interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Hostname", reflect.TypeOf((*MockAllocator)(nil).Hostname), ctx, sess)
}

// JobInformationText mocks base method.
func (m *MockAllocator) JobInformationText(ctx context.Context, sess *session.Session) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "JobInformationText", ctx, sess)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// JobInformationText indicates an expected call of JobInformationText.
func (mr *MockAllocatorMockRecorder) JobInformationText(ctx, sess interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "JobInformationText", reflect.TypeOf((*MockAllocator)(nil).JobInformationText), ctx, sess)
}

// OutLog mocks base method.
func (m *MockAllocator) OutLog(ctx context.Context, sess *session.Session) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "OutLog", ctx, sess)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// OutLog indicates an expected call of OutLog.
func (mr *MockAllocatorMockRecorder) OutLog(ctx, sess interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "OutLog", reflect.TypeOf((*MockAllocator)(nil).OutLog), ctx, sess)
}

// ErrLog mocks base method.
func (m *MockAllocator) ErrLog(ctx context.Context, sess *session.Session) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ErrLog", ctx, sess)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ErrLog indicates an expected call of ErrLog.
func (mr *MockAllocatorMockRecorder) ErrLog(ctx, sess interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ErrLog", reflect.TypeOf((*MockAllocator)(nil).ErrLog), ctx, sess)
}
