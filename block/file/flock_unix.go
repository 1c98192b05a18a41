//go:build linux || darwin || freebsd || netbsd || openbsd

package file

import (
	"os"

	"golang.org/x/sys/unix"
)

// tryLock takes a non-blocking advisory exclusive lock on f. It backstops
// the "only one mounted image at a time" lifecycle rule with an OS-level
// guarantee, in addition to the in-process Unmounted/Mounted state
// machine.
func tryLock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func unlock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
