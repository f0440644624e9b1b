//go:build unix

package sidecar

import "golang.org/x/sys/unix"

func noProcessErr() error { return unix.ESRCH }
