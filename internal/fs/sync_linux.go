//go:build linux

package fs

import (
	"golang.org/x/sys/unix"
)

func syncData(_ File, fd uintptr) error {
	for {
		err := unix.Fdatasync(int(fd))
		if err != unix.EINTR {
			return err
		}
	}
}
