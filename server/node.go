package server

import (
	"context"
	"errors"
	"io"
	"path"
	"sync"
	"syscall"

	"github.com/brettbedarf/scopedfs"
	"github.com/brettbedarf/scopedfs/internal/util"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// node is one client path in the mounted tree. All I/O goes through the
// confined filesystem, so the kernel never sees a path outside the root or
// one the filter hides.
type node struct {
	fs.Inode
	srv  *ScopedFs
	path string // client path
}

var (
	_ fs.NodeLookuper   = (*node)(nil)
	_ fs.NodeGetattrer  = (*node)(nil)
	_ fs.NodeReaddirer  = (*node)(nil)
	_ fs.NodeOpener     = (*node)(nil)
	_ fs.NodeReadlinker = (*node)(nil)
)

func (s *ScopedFs) newNode(p string) *node {
	return &node{srv: s, path: p}
}

// stat is Lookup without the kernel side effects
func (n *node) stat(p string, out *fuse.Attr) (fs.StableAttr, syscall.Errno) {
	fi, err := n.srv.fs.Lstat(p)
	if err != nil {
		return fs.StableAttr{}, toErrno(err)
	}
	ino := n.srv.inodes.ino(p)
	fillAttr(fi, ino, out)
	return fs.StableAttr{Mode: modeType(fi.Mode()), Ino: ino}, 0
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := path.Join(n.path, name)
	stable, errno := n.stat(p, &out.Attr)
	if errno != 0 {
		return nil, errno
	}
	return n.NewInode(ctx, n.srv.newNode(p), stable), 0
}

func (n *node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	_, errno := n.stat(n.path, &out.Attr)
	return errno
}

func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := n.srv.fs.ReadDir(n.path)
	if err != nil {
		return nil, toErrno(err)
	}
	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		list = append(list, fuse.DirEntry{
			Name: e.Name(),
			Mode: modeType(e.Mode()),
			Ino:  n.srv.inodes.ino(path.Join(n.path, e.Name())),
		})
	}
	return fs.NewListDirStream(list), 0
}

func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_TRUNC|syscall.O_APPEND) != 0 {
		return nil, 0, syscall.EROFS
	}
	f, err := n.srv.fs.Open(n.path)
	if err != nil {
		return nil, 0, toErrno(err)
	}
	logger := util.GetLogger("Fuse.Open")
	logger.Trace().Str("path", n.path).Msg("Opened")
	return &handle{f: f}, 0, 0
}

func (n *node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	target, err := n.srv.fs.Readlink(n.path)
	if err != nil {
		return nil, toErrno(err)
	}
	return []byte(target), 0
}

// handle is an open read-only file
type handle struct {
	mu sync.Mutex
	f  scopedfs.File
}

var (
	_ fs.FileReader   = (*handle)(nil)
	_ fs.FileReleaser = (*handle)(nil)
)

func (h *handle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n, err := h.f.ReadAt(dest, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *handle) Release(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()
	return toErrno(h.f.Close())
}
