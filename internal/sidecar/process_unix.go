//go:build unix

package sidecar

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// sysProcAttr puts the child in its own process group so it outlives the
// caller's terminal session.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func kill(pid int, sig syscall.Signal) error {
	return unix.Kill(pid, sig)
}

func alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func isNoProcess(err error) bool {
	return errors.Is(err, unix.ESRCH)
}
