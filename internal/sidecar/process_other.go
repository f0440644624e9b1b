//go:build !unix

package sidecar

import (
	"errors"
	"os"
	"syscall"
)

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

// kill can only terminate on these platforms; every signal is a kill.
func kill(pid int, _ syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}

func alive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}

func isNoProcess(err error) bool {
	return errors.Is(err, os.ErrProcessDone)
}
