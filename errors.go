package scopedfs

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrorKind is the machine-readable category of an [Error]
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not found"
	KindNotPermitted      ErrorKind = "not permitted"
	KindInvalidPath       ErrorKind = "invalid path"
	KindInvalidTargetPath ErrorKind = "invalid target path"
)

// Sentinels matched by errors.Is against an *Error of the same kind
var (
	ErrInvalidPath       = errors.New("invalid path")
	ErrInvalidTargetPath = errors.New("invalid target path")
)

// Error is raised by the confinement layer itself, never by a backend.
//
// Filtered failures deliberately look like genuine ones: an Error of kind
// KindNotFound matches fs.ErrNotExist and KindNotPermitted matches fs.ErrPermission.
// Use FilterCaused (or [IsFilterCaused]) to tell them apart when debugging.
type Error struct {
	Op           string
	Path         string // client-supplied path
	Kind         ErrorKind
	FilterCaused bool
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Kind)
}

// Is reports kind equivalence with the io/fs and package sentinels
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindNotFound:
		return target == fs.ErrNotExist
	case KindNotPermitted:
		return target == fs.ErrPermission
	case KindInvalidPath:
		return target == ErrInvalidPath || target == fs.ErrInvalid
	case KindInvalidTargetPath:
		return target == ErrInvalidTargetPath
	}
	return false
}

// KindOf returns the kind of a confinement error in err's chain, or "" if err
// did not originate in the confinement layer
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsFilterCaused reports whether err was produced by the visibility filter
func IsFilterCaused(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.FilterCaused
}

// NotFoundError is the filter-caused failure of read and existence operations
func NotFoundError(op, path string) *Error {
	return &Error{Op: op, Path: path, Kind: KindNotFound, FilterCaused: true}
}

// NotPermittedError is the filter-caused failure of write and structural operations
func NotPermittedError(op, path string) *Error {
	return &Error{Op: op, Path: path, Kind: KindNotPermitted, FilterCaused: true}
}

// InvalidPathError reports a path that would escape the root
func InvalidPathError(op, path string) *Error {
	return &Error{Op: op, Path: path, Kind: KindInvalidPath}
}

// InvalidTargetPathError reports a link target or real path outside the root
func InvalidTargetPathError(op, path string) *Error {
	return &Error{Op: op, Path: path, Kind: KindInvalidTargetPath}
}
