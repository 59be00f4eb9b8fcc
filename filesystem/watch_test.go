package filesystem

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brettbedarf/scopedfs"
	"github.com/brettbedarf/scopedfs/adapters"
	"github.com/brettbedarf/scopedfs/filter"
	"github.com/brettbedarf/scopedfs/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder collects client paths delivered to a watch callback
type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) record(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, p)
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

// mockWatch wires a mock backend whose Watch hands its callback back to the
// test through emit
func mockWatch(t *testing.T, b *mocks.MockBackend, dir string) (emit *scopedfs.ChangeFunc, mw *mocks.MockWatcher) {
	t.Helper()

	emit = new(scopedfs.ChangeFunc)
	mw = &mocks.MockWatcher{}
	mw.On("Close").Return(nil)
	b.On("Watch", dir, mock.Anything).Return(func(fn scopedfs.ChangeFunc) scopedfs.Watcher {
		*emit = fn
		return mw
	}, nil)
	return emit, mw
}

func TestWatch_RewritesAndFiltersChanges(t *testing.T) {
	t.Parallel()

	sfs, b := newMockFS(t, WithFilter(filter.Rules{HideDotfiles: true}.Filter()))
	emit, mw := mockWatch(t, b, "/tmp/x/d")

	rec := &recorder{}
	w, err := sfs.Watch(t.Context(), "d", rec.record)
	require.NoError(t, err)
	assert.NotEmpty(t, w.ID())
	assert.Equal(t, "d", w.Dir())

	(*emit)("/tmp/x/d/a.txt")
	(*emit)("/tmp/x/d/sub/b.txt")
	(*emit)("/tmp/x/d/.secret")
	(*emit)("/etc/passwd")
	(*emit)("/tmp/xy/d/a.txt")

	assert.Equal(t, []string{"/d/a.txt", "/d/sub/b.txt"}, rec.seen())

	require.NoError(t, w.Close())
	(*emit)("/tmp/x/d/late.txt")
	assert.Len(t, rec.seen(), 2, "no callback after Close")

	require.NoError(t, w.Close(), "second Close is a no-op")
	mw.AssertNumberOfCalls(t, "Close", 1)
}

func TestWatch_CloseWaitsForRunningCallback(t *testing.T) {
	t.Parallel()

	sfs, b := newMockFS(t)
	emit, _ := mockWatch(t, b, "/tmp/x")

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	w, err := sfs.Watch(t.Context(), "/", func(string) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
	})
	require.NoError(t, err)

	go (*emit)("/tmp/x/a")
	<-entered

	closed := make(chan struct{})
	go func() {
		assert.NoError(t, w.Close())
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a callback was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the callback finished")
	}

	(*emit)("/tmp/x/b")
	assert.Equal(t, int32(1), calls.Load(), "no callback after Close returns")
}

func TestWatch_FilterChangesApplyToLiveWatch(t *testing.T) {
	t.Parallel()

	sfs, b := newMockFS(t)
	emit, _ := mockWatch(t, b, "/tmp/x")

	rec := &recorder{}
	w, err := sfs.Watch(t.Context(), "/", rec.record)
	require.NoError(t, err)
	defer w.Close()

	(*emit)("/tmp/x/a")
	sfs.SetFilter(filter.AllowSet("/", "/b"))
	(*emit)("/tmp/x/a")
	(*emit)("/tmp/x/b")

	assert.Equal(t, []string{"/a", "/b"}, rec.seen())
}

func TestWatch_ContextCancelCloses(t *testing.T) {
	t.Parallel()

	sfs, b := newMockFS(t)
	innerClosed := make(chan struct{})
	mw := &mocks.MockWatcher{}
	mw.On("Close").Return(nil).Run(func(mock.Arguments) { close(innerClosed) }).Once()
	var emit scopedfs.ChangeFunc
	b.On("Watch", "/tmp/x/d", mock.Anything).Return(func(fn scopedfs.ChangeFunc) scopedfs.Watcher {
		emit = fn
		return mw
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	_, err := sfs.Watch(ctx, "/d", rec.record)
	require.NoError(t, err)
	assert.Equal(t, 1, sfs.watches.Size())

	cancel()
	select {
	case <-innerClosed:
	case <-time.After(time.Second):
		t.Fatal("watch not closed after cancel")
	}
	assert.Equal(t, 0, sfs.watches.Size())

	emit("/tmp/x/d/a")
	assert.Empty(t, rec.seen())
}

func TestWatch_BackendErrorNotRegistered(t *testing.T) {
	t.Parallel()

	sfs, b := newMockFS(t)
	b.On("Watch", "/tmp/x/missing", mock.Anything).Return(nil, os.ErrNotExist)

	w, err := sfs.Watch(t.Context(), "missing", func(string) {})
	assert.Nil(t, w)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 0, sfs.watches.Size())
}

func TestClose_StopsAllWatches(t *testing.T) {
	t.Parallel()

	sfs, b := newMockFS(t)
	_, mwA := mockWatch(t, b, "/tmp/x/a")
	_, mwB := mockWatch(t, b, "/tmp/x/b")

	wa, err := sfs.Watch(t.Context(), "a", func(string) {})
	require.NoError(t, err)
	wb, err := sfs.Watch(t.Context(), "b", func(string) {})
	require.NoError(t, err)
	assert.NotEqual(t, wa.ID(), wb.ID())

	require.NoError(t, sfs.Close())
	assert.Equal(t, 0, sfs.watches.Size())
	mwA.AssertNumberOfCalls(t, "Close", 1)
	mwB.AssertNumberOfCalls(t, "Close", 1)
}

func TestClose_JoinsErrors(t *testing.T) {
	t.Parallel()

	sfs, b := newMockFS(t)
	mw := &mocks.MockWatcher{}
	mw.On("Close").Return(errors.New("boom"))
	b.On("Watch", "/tmp/x", mock.Anything).Return(mw, nil)

	_, err := sfs.Watch(t.Context(), "", func(string) {})
	require.NoError(t, err)
	assert.ErrorContains(t, sfs.Close(), "boom")
}

// newOSFS confines an OS backend to a fresh temp directory
func newOSFS(t *testing.T, opts ...Option) (*FileSystem, string) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))

	sfs, err := New(root, adapters.NewOS(), opts...)
	require.NoError(t, err)
	return sfs, root
}

func TestOS_SymlinkEscapeIsRejected(t *testing.T) {
	t.Parallel()

	sfs, root := newOSFS(t)
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "out")))

	_, err := sfs.Readlink("out")
	assert.ErrorIs(t, err, scopedfs.ErrInvalidTargetPath)

	_, err = sfs.Realpath("out")
	assert.ErrorIs(t, err, scopedfs.ErrInvalidTargetPath)
}

func TestOS_SymlinkRoundTrip(t *testing.T) {
	t.Parallel()

	sfs, root := newOSFS(t)

	require.NoError(t, sfs.Symlink("/a.txt", "/sub/link"))
	onDisk, err := os.Readlink(filepath.Join(root, "sub", "link"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a.txt"), onDisk)

	target, err := sfs.Readlink("/sub/link")
	require.NoError(t, err)
	assert.Equal(t, "/a.txt", target)

	resolved, err := sfs.Realpath("sub/link")
	require.NoError(t, err)
	assert.Equal(t, "/a.txt", resolved)

	data, err := sfs.ReadFile("sub/link")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}

func TestOS_AbsoluteSymlinkKeptVerbatim(t *testing.T) {
	t.Parallel()

	sfs, root := newOSFS(t, WithAbsoluteSymlinks())
	outside := t.TempDir()

	require.NoError(t, sfs.Symlink(outside, "ext"))
	onDisk, err := os.Readlink(filepath.Join(root, "ext"))
	require.NoError(t, err)
	assert.Equal(t, outside, onDisk)

	_, err = sfs.Readlink("ext")
	assert.ErrorIs(t, err, scopedfs.ErrInvalidTargetPath, "reading it back is still confined")
}

func TestOS_WatchReportsClientPaths(t *testing.T) {
	t.Parallel()

	sfs, root := newOSFS(t, WithFilter(filter.Rules{Deny: []string{"*.tmp"}}.Filter()))

	changes := make(chan string, 16)
	w, err := sfs.Watch(t.Context(), "/sub", func(p string) {
		select {
		case changes <- p:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "skip.tmp"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "new.txt"), nil, 0o644))

	select {
	case p := <-changes:
		assert.Equal(t, "/sub/new.txt", p)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}
