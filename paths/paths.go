// Package paths translates between client-relative paths and absolute paths
// anchored under a root directory.
//
// Nothing here touches the filesystem; symlinks are never consulted.
package paths

import (
	"path/filepath"
	"strings"

	"github.com/brettbedarf/scopedfs"
)

const sep = string(filepath.Separator)

// Resolve anchors the client-relative path rel under root.
//
// rel is always relative to root whether or not it starts with a separator, so
// "name" and "/name" resolve identically. rel is normalized on its own, before it
// is joined to root, and rejected with [scopedfs.ErrInvalidPath] if it would need
// to ascend past its own starting point ("..", "../x", "a/../..").
// The empty path resolves to root itself.
func Resolve(root, rel string) (string, error) {
	if strings.ContainsRune(rel, 0) {
		return "", scopedfs.ErrInvalidPath
	}
	clean := filepath.Clean("." + sep + rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+sep) {
		return "", scopedfs.ErrInvalidPath
	}
	return filepath.Join(root, clean), nil
}

// Unresolve strips root from abs and returns the client-relative form with a
// single leading separator. The root itself becomes sep.
//
// abs must lie under root; check with [Within] first when that is not already known.
func Unresolve(root, abs string) string {
	rel := strings.TrimPrefix(abs, root)
	if !strings.HasPrefix(rel, sep) {
		rel = sep + rel
	}
	return rel
}

// Within reports whether abs is root or lies below it. Both are compared in
// cleaned form so "/a/bc" is not considered under "/a/b".
func Within(root, abs string) bool {
	root = filepath.Clean(root)
	abs = filepath.Clean(abs)
	if abs == root {
		return true
	}
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(abs, root)
}

// Clean normalizes a client-relative path to its canonical form with a leading
// separator. Ascending segments that cannot be resolved are rejected.
func Clean(rel string) (string, error) {
	abs, err := Resolve(sep, rel)
	if err != nil {
		return "", err
	}
	return abs, nil
}
