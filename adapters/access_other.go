//go:build !unix

package adapters

import (
	"io/fs"
	"os"

	"github.com/brettbedarf/scopedfs"
)

// hostAccess approximates access(2) from the permission bits
func hostAccess(name string, mode uint32) error {
	fi, err := os.Stat(name)
	if err != nil {
		return err
	}
	if mode&scopedfs.AccessWrite != 0 && fi.Mode().Perm()&0o200 == 0 {
		return &os.PathError{Op: "access", Path: name, Err: fs.ErrPermission}
	}
	return nil
}
