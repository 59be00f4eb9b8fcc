package server

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/brettbedarf/scopedfs"
	"github.com/brettbedarf/scopedfs/adapters"
	"github.com/brettbedarf/scopedfs/config"
	"github.com/brettbedarf/scopedfs/filesystem"
	"github.com/brettbedarf/scopedfs/internal/util"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// ScopedFs serves a confined filesystem as a read-only FUSE mount
type ScopedFs struct {
	fs     *filesystem.FileSystem
	cfg    *config.Config
	inodes *inodeTable
	server *fuse.Server
	gone   atomic.Bool // kernel side already unmounted
}

// New builds the backend, filter and confined filesystem described by cfg.
func New(cfg *config.Config) (*ScopedFs, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	adapters.RegisterBuiltins()

	backend, err := adapters.NewBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	opts := []filesystem.Option{filesystem.WithFilter(cfg.Filter.Filter())}
	if cfg.AllowAbsoluteSymlinks {
		opts = append(opts, filesystem.WithAbsoluteSymlinks())
	}
	if cfg.ConfineLinkTargets {
		opts = append(opts, filesystem.WithConfinedLinkTargets())
	}
	sfs, err := filesystem.New(root, backend, opts...)
	if err != nil {
		return nil, err
	}
	return NewWithFS(sfs, cfg), nil
}

// NewWithFS serves an already constructed confined filesystem
func NewWithFS(sfs *filesystem.FileSystem, cfg *config.Config) *ScopedFs {
	return &ScopedFs{
		fs:     sfs,
		cfg:    cfg,
		inodes: newInodeTable(),
	}
}

// FileSystem is the confined view the mount serves
func (s *ScopedFs) FileSystem() *filesystem.FileSystem {
	return s.fs
}

// Serve mounts the filesystem at mountPoint and returns once the kernel has
// acknowledged the mount. Use [ScopedFs.Wait] to block until it is unmounted.
// Call Wait and Unmount only after Serve has returned.
func (s *ScopedFs) Serve(mountPoint string) error {
	logger := util.GetLogger("Server")
	opts := s.cfg.MountOptions
	attrTimeout := seconds(s.cfg.AttrTimeout)
	entryTimeout := seconds(s.cfg.EntryTimeout)

	srv, err := fs.Mount(mountPoint, s.newNode("/"), &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:       opts.Name,
			FsName:     opts.FsName,
			AllowOther: opts.AllowOther,
			Debug:      opts.Debug || s.cfg.LogLvl == util.TraceLevel,
			Logger:     util.NewLogLogger("FuseServer", util.DebugLevel),
			Options:    []string{"ro"},
		},
		AttrTimeout:  &attrTimeout,
		EntryTimeout: &entryTimeout,
		Logger:       util.NewLogLogger("FuseBridge", util.WarnLevel),
	})
	if err != nil {
		return err
	}
	s.server = srv

	logger.Info().Str("root", s.fs.Root()).Str("mountpoint", mountPoint).Msg("Mounted")
	return nil
}

// Wait blocks until the mount is gone
func (s *ScopedFs) Wait() {
	if s.server != nil {
		s.server.Wait()
		s.gone.Store(true)
	}
}

// Unmount cleanly unmounts the filesystem and stops its watches.
func (s *ScopedFs) Unmount() error {
	if err := s.fs.Close(); err != nil {
		logger := util.GetLogger("Server")
		logger.Warn().Err(err).Msg("Closing watches")
	}
	if s.server == nil || s.gone.Load() {
		return nil
	}
	return s.server.Unmount()
}

// Watch reports changes below the client directory dir until ctx is done
func (s *ScopedFs) Watch(ctx context.Context, dir string, fn scopedfs.ChangeFunc) (*filesystem.Watch, error) {
	return s.fs.Watch(ctx, dir, fn)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
