package server

import (
	"errors"
	"io/fs"
	"os"
	"sync/atomic"
	"syscall"

	"github.com/brettbedarf/scopedfs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/puzpuzpuz/xsync/v4"
)

// SysAttrType is the S_IFMT part of a FUSE mode
type SysAttrType = uint32

const (
	DirAttr     SysAttrType = syscall.S_IFDIR
	FileAttr    SysAttrType = syscall.S_IFREG
	SymlinkAttr SysAttrType = syscall.S_IFLNK
	SockAttr    SysAttrType = syscall.S_IFSOCK
	FifoAttr    SysAttrType = syscall.S_IFIFO
	CharAttr    SysAttrType = syscall.S_IFCHR
	BlockAttr   SysAttrType = syscall.S_IFBLK
)

// modeType maps the type bits of an os.FileMode to their FUSE form
func modeType(m os.FileMode) SysAttrType {
	switch {
	case m.IsDir():
		return DirAttr
	case m&os.ModeSymlink != 0:
		return SymlinkAttr
	case m&os.ModeSocket != 0:
		return SockAttr
	case m&os.ModeNamedPipe != 0:
		return FifoAttr
	case m&os.ModeCharDevice != 0:
		return CharAttr
	case m&os.ModeDevice != 0:
		return BlockAttr
	default:
		return FileAttr
	}
}

// fillAttr copies fi into out. Host stats are used whole when available;
// the inode number is always replaced by ino.
func fillAttr(fi os.FileInfo, ino uint64, out *fuse.Attr) {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		out.FromStat(st)
	} else {
		mtime := fi.ModTime()
		out.Mode = modeType(fi.Mode()) | uint32(fi.Mode().Perm())
		out.Size = uint64(fi.Size())
		out.Blocks = (out.Size + 511) / 512
		out.Nlink = 1
		out.SetTimes(&mtime, &mtime, &mtime)
	}
	out.Ino = ino
}

// toErrno maps confinement and backend errors to the errno the kernel sees
func toErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	switch scopedfs.KindOf(err) {
	case scopedfs.KindNotFound:
		return syscall.ENOENT
	case scopedfs.KindNotPermitted:
		return syscall.EPERM
	case scopedfs.KindInvalidPath, scopedfs.KindInvalidTargetPath:
		return syscall.EINVAL
	}

	var errno syscall.Errno
	switch {
	case errors.As(err, &errno):
		return errno
	case errors.Is(err, fs.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, fs.ErrPermission):
		return syscall.EPERM
	case errors.Is(err, fs.ErrExist):
		return syscall.EEXIST
	case errors.Is(err, fs.ErrInvalid):
		return syscall.EINVAL
	case errors.Is(err, scopedfs.ErrNotSupported):
		return syscall.ENOTSUP
	}
	return syscall.EIO
}

// inodeTable hands out one inode number per client path for the lifetime of
// the mount. The root is always FUSE_ROOT_ID.
type inodeTable struct {
	lastIno atomic.Uint64
	byPath  *xsync.Map[string, uint64]
}

func newInodeTable() *inodeTable {
	t := &inodeTable{byPath: xsync.NewMap[string, uint64]()}
	t.lastIno.Store(fuse.FUSE_ROOT_ID)
	t.byPath.Store("/", fuse.FUSE_ROOT_ID)
	return t
}

func (t *inodeTable) ino(p string) uint64 {
	if ino, ok := t.byPath.Load(p); ok {
		return ino
	}
	ino, _ := t.byPath.LoadOrStore(p, t.lastIno.Add(1))
	return ino
}
