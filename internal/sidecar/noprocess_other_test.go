//go:build !unix

package sidecar

import "os"

func noProcessErr() error { return os.ErrProcessDone }
