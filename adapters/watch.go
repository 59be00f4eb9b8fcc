package adapters

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/brettbedarf/scopedfs"
	"github.com/brettbedarf/scopedfs/internal/util"
	"github.com/fsnotify/fsnotify"
)

// treeWatcher reports changes anywhere below a directory. fsnotify only watches
// single directories so every subdirectory gets its own watch, including ones
// created after the watch started.
type treeWatcher struct {
	w      *fsnotify.Watcher
	fn     scopedfs.ChangeFunc
	closed atomic.Bool
	done   chan struct{}
}

func watchTree(dir string, fn scopedfs.ChangeFunc) (*treeWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	tw := &treeWatcher{w: w, fn: fn, done: make(chan struct{})}
	if err := tw.addTree(dir); err != nil {
		w.Close() // nolint:errcheck
		return nil, err
	}
	go tw.run()
	return tw, nil
}

func (tw *treeWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return tw.w.Add(p)
		}
		return nil
	})
}

func (tw *treeWatcher) run() {
	logger := util.GetLogger("Watch")
	defer close(tw.done)

	for {
		select {
		case ev, ok := <-tw.w.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Lstat(ev.Name); err == nil && fi.IsDir() {
					// the directory may vanish again before we get to it
					if err := tw.addTree(ev.Name); err != nil {
						logger.Debug().Err(err).Str("path", ev.Name).Msg("Failed to watch new directory")
					}
				}
			}
			if tw.closed.Load() {
				continue
			}
			logger.Trace().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("Change")
			tw.fn(ev.Name)
		case err, ok := <-tw.w.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("Watch error")
		}
	}
}

// Close stops dispatching events: no callback starts once Close has marked the
// watcher closed, though one already running may still finish. The event loop
// exits once fsnotify has shut down. Safe to call from inside the callback.
func (tw *treeWatcher) Close() error {
	if !tw.closed.CompareAndSwap(false, true) {
		return nil
	}
	return tw.w.Close()
}
