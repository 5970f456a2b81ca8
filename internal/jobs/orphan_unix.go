//go:build !windows

package jobs

import "golang.org/x/sys/unix"

// processAlive reports whether pid still exists, via kill(pid, 0) — sending
// signal 0 performs only the existence/permission check, per spec §4.8's
// orphan-pid detection in wait.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
