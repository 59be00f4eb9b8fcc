package mocks

import (
	"os"

	"github.com/brettbedarf/scopedfs"
	"github.com/brettbedarf/scopedfs/adapters"
	"github.com/stretchr/testify/mock"
)

// MockBackend implements scopedfs.Backend for testing across packages
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) file(args mock.Arguments) (scopedfs.File, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(scopedfs.File), args.Error(1)
}

func (m *MockBackend) Open(name string) (scopedfs.File, error) {
	return m.file(m.Called(name))
}

func (m *MockBackend) OpenFile(name string, flag int, perm os.FileMode) (scopedfs.File, error) {
	return m.file(m.Called(name, flag, perm))
}

func (m *MockBackend) ReadFile(name string) ([]byte, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockBackend) WriteFile(name string, data []byte, perm os.FileMode) error {
	return m.Called(name, data, perm).Error(0)
}

func (m *MockBackend) Mkdir(name string, perm os.FileMode) error {
	return m.Called(name, perm).Error(0)
}

func (m *MockBackend) MkdirAll(name string, perm os.FileMode) error {
	return m.Called(name, perm).Error(0)
}

func (m *MockBackend) Symlink(oldname, newname string) error {
	return m.Called(oldname, newname).Error(0)
}

func (m *MockBackend) Link(oldname, newname string) error {
	return m.Called(oldname, newname).Error(0)
}

func (m *MockBackend) Access(name string, mode uint32) error {
	return m.Called(name, mode).Error(0)
}

func (m *MockBackend) info(args mock.Arguments) (os.FileInfo, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(os.FileInfo), args.Error(1)
}

func (m *MockBackend) Lstat(name string) (os.FileInfo, error) {
	return m.info(m.Called(name))
}

func (m *MockBackend) Stat(name string) (os.FileInfo, error) {
	return m.info(m.Called(name))
}

func (m *MockBackend) ReadDir(name string) ([]os.FileInfo, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]os.FileInfo), args.Error(1)
}

func (m *MockBackend) Remove(name string) error {
	return m.Called(name).Error(0)
}

func (m *MockBackend) Rmdir(name string) error {
	return m.Called(name).Error(0)
}

func (m *MockBackend) Rename(oldname, newname string) error {
	return m.Called(oldname, newname).Error(0)
}

func (m *MockBackend) Readlink(name string) (string, error) {
	args := m.Called(name)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) Realpath(name string) (string, error) {
	args := m.Called(name)
	return args.String(0), args.Error(1)
}

// Watch hands the callback to the test through a func(scopedfs.ChangeFunc)
// return value when one is configured, so tests can emit changes themselves
func (m *MockBackend) Watch(dir string, fn scopedfs.ChangeFunc) (scopedfs.Watcher, error) {
	args := m.Called(dir, fn)
	if hook, ok := args.Get(0).(func(scopedfs.ChangeFunc) scopedfs.Watcher); ok {
		return hook(fn), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(scopedfs.Watcher), args.Error(1)
}

var _ scopedfs.Backend = (*MockBackend)(nil)

// MockWatcher implements scopedfs.Watcher
type MockWatcher struct {
	mock.Mock
}

func (m *MockWatcher) Close() error {
	return m.Called().Error(0)
}

// MockProvider implements adapters.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) NewBackend(spec adapters.Spec) (scopedfs.Backend, error) {
	args := m.Called(spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(scopedfs.Backend), args.Error(1)
}

var _ adapters.Provider = (*MockProvider)(nil)
