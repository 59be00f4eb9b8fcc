package paths

import (
	"path/filepath"
	"testing"

	"github.com/brettbedarf/scopedfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoot = "/tmp/x"

func TestResolve_Accepted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rel  string
		want string
	}{
		{"plain", "index.js", "/tmp/x/index.js"},
		{"leading separator", "/index.js", "/tmp/x/index.js"},
		{"empty is root", "", "/tmp/x"},
		{"separator is root", "/", "/tmp/x"},
		{"dot is root", ".", "/tmp/x"},
		{"nested", "a/b/c.txt", "/tmp/x/a/b/c.txt"},
		{"inner dotdot", "a/../b", "/tmp/x/b"},
		{"dotdot back to start", "a/..", "/tmp/x"},
		{"duplicate separators", "//a///b", "/tmp/x/a/b"},
		{"dotdot prefix in name", "..foo", "/tmp/x/..foo"},
		{"dotdot suffix in name", "foo..", "/tmp/x/foo.."},
		{"trailing separator", "dir/", "/tmp/x/dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Resolve(testRoot, tt.rel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, Within(testRoot, got), "resolved path must stay under root")
		})
	}
}

func TestResolve_Rejected(t *testing.T) {
	t.Parallel()

	for _, rel := range []string{
		"..",
		"../x",
		"/..",
		"/../x",
		"a/../..",
		"a/../../b",
		"../../etc/passwd",
		"./../x",
		"a/./../../x",
		"nul\x00byte",
	} {
		t.Run(rel, func(t *testing.T) {
			t.Parallel()
			_, err := Resolve(testRoot, rel)
			require.Error(t, err)
			assert.ErrorIs(t, err, scopedfs.ErrInvalidPath)
		})
	}
}

// An escape attempt is rejected even when joining with root first would land
// back inside root.
func TestResolve_CheckedBeforeJoin(t *testing.T) {
	t.Parallel()

	_, err := Resolve(testRoot, "../x/foo")
	assert.ErrorIs(t, err, scopedfs.ErrInvalidPath)
}

func TestResolve_LeadingSeparatorEquivalent(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"name", "a/b", "a/../b", "dir/"} {
		plain, err := Resolve(testRoot, name)
		require.NoError(t, err)
		rooted, err := Resolve(testRoot, "/"+name)
		require.NoError(t, err)
		assert.Equal(t, plain, rooted, name)
	}
}

func TestUnresolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		abs  string
		want string
	}{
		{"/tmp/x/foo.txt", "/foo.txt"},
		{"/tmp/x/a/b", "/a/b"},
		{"/tmp/x", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Unresolve(testRoot, tt.abs), tt.abs)
	}

	assert.Equal(t, "/etc", Unresolve("/", "/etc"), "filesystem root keeps a single separator")
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, q := range []string{
		"/tmp/x",
		"/tmp/x/a",
		"/tmp/x/a/b/c.txt",
		"/tmp/x/.hidden",
	} {
		got, err := Resolve(testRoot, Unresolve(testRoot, q))
		require.NoError(t, err)
		assert.Equal(t, q, got)
	}
}

func TestWithin(t *testing.T) {
	t.Parallel()

	assert.True(t, Within("/a/b", "/a/b"))
	assert.True(t, Within("/a/b", "/a/b/c"))
	assert.True(t, Within("/a/b/", "/a/b/c"))
	assert.True(t, Within("/", "/etc"))
	assert.False(t, Within("/a/b", "/a/bc"))
	assert.False(t, Within("/a/b", "/a"))
	assert.False(t, Within("/a/b", "/etc/passwd"))
	assert.False(t, Within("/a/b", "/a/b/../c"))
}

func TestClean(t *testing.T) {
	t.Parallel()

	got, err := Clean("a/./b/../c")
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/a/c"), got)

	got, err = Clean("")
	require.NoError(t, err)
	assert.Equal(t, "/", got)

	_, err = Clean("../a")
	assert.ErrorIs(t, err, scopedfs.ErrInvalidPath)
}
