// Package adapters provides the underlying filesystems a confined view delegates to
package adapters

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/brettbedarf/scopedfs"
	"github.com/spf13/afero"
)

// AferoBackend implements [scopedfs.Backend] on top of an afero.Fs.
// Hard links, real paths and change notification need the host filesystem and
// are only available for backends created with [NewOS].
type AferoBackend struct {
	fs       afero.Fs
	host     bool // fs is the host filesystem
	readOnly bool
}

// NewOS returns a backend over the host filesystem
func NewOS() *AferoBackend {
	return &AferoBackend{fs: afero.NewOsFs(), host: true}
}

// NewMem returns a backend over a fresh in-memory filesystem
func NewMem() *AferoBackend {
	return &AferoBackend{fs: afero.NewMemMapFs()}
}

// NewReadOnly wraps base so that every mutation fails with EPERM
func NewReadOnly(base *AferoBackend) *AferoBackend {
	return &AferoBackend{fs: afero.NewReadOnlyFs(base.fs), host: base.host, readOnly: true}
}

func notSupported(op, name string) error {
	return &os.PathError{Op: op, Path: name, Err: scopedfs.ErrNotSupported}
}

func (b *AferoBackend) Open(name string) (scopedfs.File, error) {
	f, err := b.fs.Open(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (b *AferoBackend) OpenFile(name string, flag int, perm os.FileMode) (scopedfs.File, error) {
	f, err := b.fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (b *AferoBackend) ReadFile(name string) ([]byte, error) {
	return afero.ReadFile(b.fs, name)
}

func (b *AferoBackend) WriteFile(name string, data []byte, perm os.FileMode) error {
	return afero.WriteFile(b.fs, name, data, perm)
}

func (b *AferoBackend) Mkdir(name string, perm os.FileMode) error {
	return b.fs.Mkdir(name, perm)
}

func (b *AferoBackend) MkdirAll(name string, perm os.FileMode) error {
	return b.fs.MkdirAll(name, perm)
}

func (b *AferoBackend) Symlink(oldname, newname string) error {
	if l, ok := b.fs.(afero.Linker); ok {
		return l.SymlinkIfPossible(oldname, newname)
	}
	return &os.LinkError{Op: "symlink", Old: oldname, New: newname, Err: scopedfs.ErrNotSupported}
}

func (b *AferoBackend) Link(oldname, newname string) error {
	switch {
	case b.readOnly:
		return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: syscall.EPERM}
	case b.host:
		return os.Link(oldname, newname)
	default:
		return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: scopedfs.ErrNotSupported}
	}
}

func (b *AferoBackend) Access(name string, mode uint32) error {
	if b.readOnly && mode&scopedfs.AccessWrite != 0 {
		return &os.PathError{Op: "access", Path: name, Err: syscall.EROFS}
	}
	if b.host {
		return hostAccess(name, mode)
	}
	fi, err := b.fs.Stat(name)
	if err != nil {
		return err
	}
	// owner bits; in-memory files all belong to the caller
	if uint32(fi.Mode().Perm()>>6)&mode != mode {
		return &os.PathError{Op: "access", Path: name, Err: fs.ErrPermission}
	}
	return nil
}

func (b *AferoBackend) Lstat(name string) (os.FileInfo, error) {
	if l, ok := b.fs.(afero.Lstater); ok {
		fi, _, err := l.LstatIfPossible(name)
		return fi, err
	}
	return b.fs.Stat(name)
}

func (b *AferoBackend) Stat(name string) (os.FileInfo, error) {
	return b.fs.Stat(name)
}

func (b *AferoBackend) ReadDir(name string) ([]os.FileInfo, error) {
	return afero.ReadDir(b.fs, name)
}

// Remove deletes a file. Directories are refused; use Rmdir.
func (b *AferoBackend) Remove(name string) error {
	fi, err := b.Lstat(name)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return &os.PathError{Op: "unlink", Path: name, Err: syscall.EISDIR}
	}
	return b.fs.Remove(name)
}

// Rmdir deletes an empty directory
func (b *AferoBackend) Rmdir(name string) error {
	fi, err := b.Lstat(name)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return &os.PathError{Op: "rmdir", Path: name, Err: syscall.ENOTDIR}
	}
	entries, err := afero.ReadDir(b.fs, name)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return &os.PathError{Op: "rmdir", Path: name, Err: syscall.ENOTEMPTY}
	}
	return b.fs.Remove(name)
}

func (b *AferoBackend) Rename(oldname, newname string) error {
	return b.fs.Rename(oldname, newname)
}

func (b *AferoBackend) Readlink(name string) (string, error) {
	if l, ok := b.fs.(afero.LinkReader); ok {
		return l.ReadlinkIfPossible(name)
	}
	return "", notSupported("readlink", name)
}

func (b *AferoBackend) Realpath(name string) (string, error) {
	if b.host {
		resolved, err := filepath.EvalSymlinks(name)
		if err != nil {
			return "", err
		}
		return filepath.Abs(resolved)
	}
	// no symlinks outside the host filesystem
	if _, err := b.fs.Stat(name); err != nil {
		return "", err
	}
	return filepath.Clean(name), nil
}

func (b *AferoBackend) Watch(dir string, fn scopedfs.ChangeFunc) (scopedfs.Watcher, error) {
	if !b.host {
		return nil, notSupported("watch", dir)
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, &os.PathError{Op: "watch", Path: dir, Err: syscall.ENOTDIR}
	}
	return watchTree(dir, fn)
}

// IsNotSupported reports whether err stems from a capability the backend lacks
func IsNotSupported(err error) bool {
	return errors.Is(err, scopedfs.ErrNotSupported)
}

var _ scopedfs.Backend = (*AferoBackend)(nil)
