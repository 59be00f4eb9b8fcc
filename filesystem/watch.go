package filesystem

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/brettbedarf/scopedfs"
	"github.com/brettbedarf/scopedfs/internal/util"
	"github.com/google/uuid"
)

// Watch is a live change subscription on a confined directory
type Watch struct {
	id    string
	dir   string // client path the watch was requested for
	fs    *FileSystem
	inner scopedfs.Watcher
	stop  chan struct{}

	// dispatch holds a read lock while a callback runs; Close takes the
	// write lock so it returns only after in-flight callbacks finish
	dispatch sync.RWMutex
	closed   atomic.Bool
}

// ID uniquely identifies the watch for the lifetime of the process
func (w *Watch) ID() string {
	return w.id
}

// Dir is the client path being watched
func (w *Watch) Dir() string {
	return w.dir
}

// Close releases the underlying subscription. It waits for a running callback
// to return, and no callback runs after Close returns. Closing twice is a
// no-op. Close must not be called from inside the callback; cancel the
// watch's context there instead.
func (w *Watch) Close() error {
	w.dispatch.Lock()
	if !w.closed.CompareAndSwap(false, true) {
		w.dispatch.Unlock()
		return nil
	}
	w.dispatch.Unlock()

	w.fs.watches.Delete(w.id)
	close(w.stop)

	logger := util.GetLogger("FS.watch")
	logger.Debug().Str("id", w.id).Str("path", w.dir).Msg("Watch closed")
	return w.inner.Close()
}

func (w *Watch) deliver(fn scopedfs.ChangeFunc, client string) {
	w.dispatch.RLock()
	defer w.dispatch.RUnlock()
	if w.closed.Load() {
		return
	}
	fn(client)
}

// Watch subscribes fn to changes anywhere below the directory name.
// fn receives client-relative paths; changes outside root or hidden by the
// filter are dropped. The watch ends when it is closed, when ctx is done or
// when the FileSystem is closed.
func (fs *FileSystem) Watch(ctx context.Context, name string, fn scopedfs.ChangeFunc) (*Watch, error) {
	abs, err := fs.prepare(OpWatch, fs.loadFilter(), name)
	if err != nil {
		return nil, err
	}

	w := &Watch{
		id:   uuid.NewString(),
		dir:  name,
		fs:   fs,
		stop: make(chan struct{}),
	}
	inner, err := fs.backend.Watch(abs, func(changed string) {
		if w.closed.Load() {
			return
		}
		// filter is read per event so SetFilter applies to live watches
		client, keep, _ := fs.rewrite(OpWatch, fs.loadFilter(), name, abs, changed)
		if !keep {
			return
		}
		w.deliver(fn, client)
	})
	if err != nil {
		return nil, err
	}
	w.inner = inner
	fs.watches.Store(w.id, w)

	logger := util.GetLogger("FS.watch")
	logger.Debug().Str("id", w.id).Str("path", name).Msg("Watch started")

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				w.Close() // nolint:errcheck
			case <-w.stop:
			}
		}()
	}
	return w, nil
}
