// Package filesystem exposes a filesystem API confined to a root directory.
//
// Every operation resolves its client-relative path under the root, rejects
// paths that would escape it, applies the optional visibility filter and only
// then delegates to the underlying [scopedfs.Backend]. Path-valued results
// (directory entries, link targets, change notifications) are translated back
// to client-relative form before they are returned.
package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/brettbedarf/scopedfs"
	"github.com/brettbedarf/scopedfs/internal/util"
	"github.com/brettbedarf/scopedfs/paths"
	"github.com/puzpuzpuz/xsync/v4"
)

// FileSystem is the confined view of a backend below root.
// It is safe for concurrent use.
type FileSystem struct {
	root    string // absolute, cleaned, immutable
	backend scopedfs.Backend
	filter  atomic.Pointer[scopedfs.Filter] // nil = everything visible

	absSymlinks    bool // absolute symlink targets are kept verbatim
	confineTargets bool // relative readlink results are checked against root

	watches *xsync.Map[string, *Watch] // live watches by ID
}

// Option configures a [FileSystem] at construction
type Option func(*FileSystem)

// WithFilter sets the initial visibility filter
func WithFilter(f scopedfs.Filter) Option {
	return func(fs *FileSystem) { fs.SetFilter(f) }
}

// WithAbsoluteSymlinks lets Symlink keep absolute targets verbatim so links may
// point outside the root. Only the link's own path stays confined.
func WithAbsoluteSymlinks() Option {
	return func(fs *FileSystem) { fs.absSymlinks = true }
}

// WithConfinedLinkTargets makes Readlink reject relative targets that climb
// out of the root from the link's directory
func WithConfinedLinkTargets() Option {
	return func(fs *FileSystem) { fs.confineTargets = true }
}

// New returns a FileSystem confined to root. root must be absolute; it is
// not accessed until the first operation.
func New(root string, backend scopedfs.Backend, opts ...Option) (*FileSystem, error) {
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("root must be an absolute path: %q", root)
	}
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	fs := &FileSystem{
		root:    filepath.Clean(root),
		backend: backend,
		watches: xsync.NewMap[string, *Watch](),
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs, nil
}

// Root returns the absolute confinement root
func (fs *FileSystem) Root() string {
	return fs.root
}

// SetFilter replaces the visibility filter; nil makes everything visible.
// Each operation reads the filter once, so an in-flight call keeps using the
// filter it started with.
func (fs *FileSystem) SetFilter(f scopedfs.Filter) {
	if f == nil {
		fs.filter.Store(nil)
		return
	}
	fs.filter.Store(&f)
}

func (fs *FileSystem) loadFilter() scopedfs.Filter {
	if p := fs.filter.Load(); p != nil {
		return *p
	}
	return nil
}

// visible is the single place the filter is evaluated. abs must be under root.
func (fs *FileSystem) visible(f scopedfs.Filter, abs string) bool {
	if f == nil {
		return true
	}
	return f(paths.Unresolve(fs.root, abs))
}

// prepare resolves name under root and applies the filter snapshot f.
// The returned path is safe to hand to the backend.
func (fs *FileSystem) prepare(op Op, f scopedfs.Filter, name string) (string, error) {
	abs, err := paths.Resolve(fs.root, name)
	if err != nil {
		logger := util.GetLogger("FS." + op.String())
		logger.Debug().Str("path", name).Msg("Rejected path outside root")
		return "", scopedfs.InvalidPathError(op.String(), name)
	}
	if !fs.visible(f, abs) {
		logger := util.GetLogger("FS." + op.String())
		logger.Debug().Str("path", name).Msg("Filtered")
		if ops[op].class == writeClass {
			return "", scopedfs.NotPermittedError(op.String(), name)
		}
		return "", scopedfs.NotFoundError(op.String(), name)
	}
	return abs, nil
}

// rewrite translates one path-valued backend result for op back into client
// form. keep is false when the result must be silently dropped.
//   - listing: result is an entry name under base
//   - target: result is a link target or real path of base
//   - change: result is the absolute path of a changed file
func (fs *FileSystem) rewrite(op Op, f scopedfs.Filter, name, base, result string) (out string, keep bool, err error) {
	switch ops[op].rewrite {
	case rewriteListing:
		return result, fs.visible(f, filepath.Join(base, result)), nil

	case rewriteTarget:
		if !filepath.IsAbs(result) {
			if fs.confineTargets && !paths.Within(fs.root, filepath.Join(filepath.Dir(base), result)) {
				return "", false, fs.targetError(op, name, result)
			}
			return result, true, nil
		}
		abs, ok := fs.underRoot(result)
		if !ok {
			return "", false, fs.targetError(op, name, result)
		}
		return paths.Unresolve(fs.root, abs), true, nil

	case rewriteChange:
		abs := filepath.Clean(result)
		if !paths.Within(fs.root, abs) || !fs.visible(f, abs) {
			return "", false, nil
		}
		return paths.Unresolve(fs.root, abs), true, nil
	}
	return result, true, nil
}

// underRoot maps an absolute backend path to its lexical location under root.
// A root that itself sits behind a symlink is matched through its real path.
func (fs *FileSystem) underRoot(abs string) (string, bool) {
	abs = filepath.Clean(abs)
	if paths.Within(fs.root, abs) {
		return abs, true
	}
	realRoot, err := fs.backend.Realpath(fs.root)
	if err != nil || realRoot == fs.root || !paths.Within(realRoot, abs) {
		return "", false
	}
	return filepath.Join(fs.root, paths.Unresolve(realRoot, abs)), true
}

func (fs *FileSystem) targetError(op Op, name, target string) error {
	logger := util.GetLogger("FS." + op.String())
	logger.Warn().Str("path", name).Str("target", target).Msg("Link target outside root")
	return scopedfs.InvalidTargetPathError(op.String(), name)
}

// Open opens name for reading
func (fs *FileSystem) Open(name string) (scopedfs.File, error) {
	abs, err := fs.prepare(OpOpen, fs.loadFilter(), name)
	if err != nil {
		return nil, err
	}
	return fs.backend.Open(abs)
}

// OpenFile is the generalized open call. Opens that can neither write nor
// create are treated as reads, so a filtered path fails as not found.
func (fs *FileSystem) OpenFile(name string, flag int, perm os.FileMode) (scopedfs.File, error) {
	op := OpOpenFile
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) == 0 {
		op = OpOpen
	}
	abs, err := fs.prepare(op, fs.loadFilter(), name)
	if err != nil {
		return nil, err
	}
	return fs.backend.OpenFile(abs, flag, perm)
}

// Create creates or truncates name for writing
func (fs *FileSystem) Create(name string) (scopedfs.File, error) {
	return fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

func (fs *FileSystem) ReadFile(name string) ([]byte, error) {
	abs, err := fs.prepare(OpReadFile, fs.loadFilter(), name)
	if err != nil {
		return nil, err
	}
	return fs.backend.ReadFile(abs)
}

func (fs *FileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	abs, err := fs.prepare(OpWriteFile, fs.loadFilter(), name)
	if err != nil {
		return err
	}
	return fs.backend.WriteFile(abs, data, perm)
}

func (fs *FileSystem) Mkdir(name string, perm os.FileMode) error {
	abs, err := fs.prepare(OpMkdir, fs.loadFilter(), name)
	if err != nil {
		return err
	}
	return fs.backend.Mkdir(abs, perm)
}

func (fs *FileSystem) MkdirAll(name string, perm os.FileMode) error {
	abs, err := fs.prepare(OpMkdirAll, fs.loadFilter(), name)
	if err != nil {
		return err
	}
	return fs.backend.MkdirAll(abs, perm)
}

// Symlink creates newname as a symbolic link to oldname. Both are confined
// under root unless absolute targets are enabled (see [WithAbsoluteSymlinks])
// and oldname is absolute, in which case it is stored verbatim.
func (fs *FileSystem) Symlink(oldname, newname string) error {
	f := fs.loadFilter()
	newAbs, err := fs.prepare(OpSymlink, f, newname)
	if err != nil {
		return err
	}
	target := oldname
	if !fs.absSymlinks || !filepath.IsAbs(oldname) {
		if target, err = fs.prepare(OpSymlink, f, oldname); err != nil {
			return err
		}
	}
	return fs.backend.Symlink(target, newAbs)
}

// Link creates newname as a hard link to oldname; both are confined
func (fs *FileSystem) Link(oldname, newname string) error {
	f := fs.loadFilter()
	oldAbs, err := fs.prepare(OpLink, f, oldname)
	if err != nil {
		return err
	}
	newAbs, err := fs.prepare(OpLink, f, newname)
	if err != nil {
		return err
	}
	return fs.backend.Link(oldAbs, newAbs)
}

// Exists reports whether name exists. A filtered path reports false without
// an error, exactly like a missing one; an escaping path is still an error.
func (fs *FileSystem) Exists(name string) (bool, error) {
	abs, err := fs.prepare(OpExists, fs.loadFilter(), name)
	if err != nil {
		if scopedfs.IsFilterCaused(err) {
			return false, nil
		}
		return false, err
	}
	if _, err := fs.backend.Stat(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Access checks mode (a combination of the scopedfs.Access* bits) for name
func (fs *FileSystem) Access(name string, mode uint32) error {
	abs, err := fs.prepare(OpAccess, fs.loadFilter(), name)
	if err != nil {
		return err
	}
	return fs.backend.Access(abs, mode)
}

// Lstat stats name without following a final symlink
func (fs *FileSystem) Lstat(name string) (os.FileInfo, error) {
	abs, err := fs.prepare(OpLstat, fs.loadFilter(), name)
	if err != nil {
		return nil, err
	}
	return fs.backend.Lstat(abs)
}

func (fs *FileSystem) Stat(name string) (os.FileInfo, error) {
	abs, err := fs.prepare(OpStat, fs.loadFilter(), name)
	if err != nil {
		return nil, err
	}
	return fs.backend.Stat(abs)
}

// ReadDir lists name, silently omitting entries the filter hides
func (fs *FileSystem) ReadDir(name string) ([]os.FileInfo, error) {
	f := fs.loadFilter()
	abs, err := fs.prepare(OpReadDir, f, name)
	if err != nil {
		return nil, err
	}
	entries, err := fs.backend.ReadDir(abs)
	if err != nil {
		return nil, err
	}
	visible := make([]os.FileInfo, 0, len(entries))
	for _, e := range entries {
		if _, keep, _ := fs.rewrite(OpReadDir, f, name, abs, e.Name()); keep {
			visible = append(visible, e)
		}
	}
	return visible, nil
}

// ReadDirNames is ReadDir reduced to entry names
func (fs *FileSystem) ReadDirNames(name string) ([]string, error) {
	entries, err := fs.ReadDir(name)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// Remove deletes the file name
func (fs *FileSystem) Remove(name string) error {
	abs, err := fs.prepare(OpRemove, fs.loadFilter(), name)
	if err != nil {
		return err
	}
	return fs.backend.Remove(abs)
}

// Rmdir deletes the empty directory name
func (fs *FileSystem) Rmdir(name string) error {
	abs, err := fs.prepare(OpRmdir, fs.loadFilter(), name)
	if err != nil {
		return err
	}
	return fs.backend.Rmdir(abs)
}

// Rename moves oldname to newname; both are confined and must be visible
func (fs *FileSystem) Rename(oldname, newname string) error {
	f := fs.loadFilter()
	oldAbs, err := fs.prepare(OpRename, f, oldname)
	if err != nil {
		return err
	}
	newAbs, err := fs.prepare(OpRename, f, newname)
	if err != nil {
		return err
	}
	return fs.backend.Rename(oldAbs, newAbs)
}

// Readlink returns the target of the symlink name. Absolute targets must lie
// under root and are returned in client-relative form; relative targets are
// returned unchanged.
func (fs *FileSystem) Readlink(name string) (string, error) {
	f := fs.loadFilter()
	abs, err := fs.prepare(OpReadlink, f, name)
	if err != nil {
		return "", err
	}
	target, err := fs.backend.Readlink(abs)
	if err != nil {
		return "", err
	}
	out, _, err := fs.rewrite(OpReadlink, f, name, abs, target)
	return out, err
}

// Realpath returns the canonical client-relative path of name with every
// symlink resolved. A result outside root fails with an invalid target path;
// a result the filter hides fails as not found.
func (fs *FileSystem) Realpath(name string) (string, error) {
	f := fs.loadFilter()
	abs, err := fs.prepare(OpRealpath, f, name)
	if err != nil {
		return "", err
	}
	resolved, err := fs.backend.Realpath(abs)
	if err != nil {
		return "", err
	}
	out, _, err := fs.rewrite(OpRealpath, f, name, abs, resolved)
	if err != nil {
		return "", err
	}
	if !fs.visible(f, filepath.Join(fs.root, out)) {
		return "", scopedfs.NotFoundError(OpRealpath.String(), name)
	}
	return out, nil
}

// Close stops every live watch
func (fs *FileSystem) Close() error {
	var errs []error
	fs.watches.Range(func(_ string, w *Watch) bool {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	return errors.Join(errs...)
}
