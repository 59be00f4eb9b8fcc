//go:build unix

package adapters

import (
	"os"

	"golang.org/x/sys/unix"
)

func hostAccess(name string, mode uint32) error {
	if err := unix.Access(name, mode); err != nil {
		return &os.PathError{Op: "access", Path: name, Err: err}
	}
	return nil
}
