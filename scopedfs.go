// Package scopedfs contains core domain types and interfaces for a filesystem view
// confined to a single root directory
package scopedfs

import (
	"errors"
	"io"
	"os"
)

// ErrNotSupported is returned (wrapped in an *os.PathError) by backends that cannot
// perform a capability such as symlinks or change notification
var ErrNotSupported = errors.New("operation not supported by backend")

// File is an open file handle returned by a [Backend].
// It matches the subset of afero.File/os.File the confined filesystem hands out.
type File interface {
	io.Reader
	io.ReaderAt
	io.Writer
	io.WriterAt
	io.Seeker
	io.Closer
	Name() string
	Stat() (os.FileInfo, error)
	Sync() error
	Truncate(size int64) error
}

// Backend is the underlying filesystem every confined operation is delegated to.
// All paths passed to a Backend are absolute and already confined.
type Backend interface {
	Open(name string) (File, error)
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	Mkdir(name string, perm os.FileMode) error
	MkdirAll(name string, perm os.FileMode) error
	// Symlink creates newname as a symbolic link to oldname
	Symlink(oldname, newname string) error
	// Link creates newname as a hard link to oldname
	Link(oldname, newname string) error
	// Access checks the caller's permission bits (see access(2) modes)
	Access(name string, mode uint32) error
	Lstat(name string) (os.FileInfo, error)
	Stat(name string) (os.FileInfo, error)
	ReadDir(name string) ([]os.FileInfo, error)
	// Remove deletes a file; Rmdir deletes an empty directory
	Remove(name string) error
	Rmdir(name string) error
	Rename(oldname, newname string) error
	Readlink(name string) (string, error)
	// Realpath returns the absolute path with every symlink resolved
	Realpath(name string) (string, error)
	// Watch reports changed absolute paths anywhere below dir until the
	// returned Watcher is closed
	Watch(dir string, fn ChangeFunc) (Watcher, error)
}

// ChangeFunc receives the path of a changed file or directory
type ChangeFunc func(path string)

// Watcher is a live change subscription
type Watcher interface {
	// Close releases the subscription. No callback starts after Close returns.
	Close() error
}

// Filter decides whether a client-relative path (always with a leading separator,
// "/" for the root itself) is visible. A nil Filter means everything is visible.
type Filter func(clientPath string) bool

// Access modes accepted by [Backend.Access], matching access(2)
const (
	AccessExists  uint32 = 0
	AccessExecute uint32 = 1
	AccessWrite   uint32 = 2
	AccessRead    uint32 = 4
)
