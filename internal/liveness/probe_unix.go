//go:build unix

package liveness

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isRunning sends signal 0, which performs the existence and permission
// checks without delivering anything. EPERM means the process exists but
// belongs to someone else.
func isRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
