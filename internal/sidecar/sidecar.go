package sidecar

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"ccm/internal/logx"
)

// Package-level seams for tests.
var (
	killProcess  = kill
	startProcess = func(cmd *exec.Cmd) error { return cmd.Start() }
)

// StartOptions adjust how a detached process is launched.
type StartOptions struct {
	Dir string
	// Env replaces the inherited environment when non-empty.
	Env []string
	// LogFile receives stdout and stderr. Empty discards them.
	LogFile string
	// PIDFile is written with the child's pid when set. Sidecars that manage
	// their own pidfile leave it empty.
	PIDFile string
}

// Supervisor starts detached processes and stops them through pidfiles.
type Supervisor struct {
	log logrus.FieldLogger
}

// New creates a supervisor logging to log.
func New(log logrus.FieldLogger) *Supervisor {
	return &Supervisor{log: logx.OrDiscard(log)}
}

// Start launches binary in its own process group with its standard streams
// redirected away from the caller. It does not wait for readiness.
func (s *Supervisor) Start(binary string, args []string, opts StartOptions) (int, error) {
	cmd := exec.Command(binary, args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = opts.Env
	}
	cmd.SysProcAttr = sysProcAttr()

	out, err := openOutput(opts.LogFile)
	if err != nil {
		return 0, err
	}
	defer out.Close()
	cmd.Stdin = nil
	cmd.Stdout = out
	cmd.Stderr = out

	if err := startProcess(cmd); err != nil {
		return 0, fmt.Errorf("start %s: %w", binary, err)
	}
	pid := cmd.Process.Pid
	// Reap the child if it exits while we are still running.
	go func() { _ = cmd.Wait() }()

	s.log.WithFields(logrus.Fields{"binary": binary, "pid": pid}).Debug("started detached process")
	if opts.PIDFile != "" {
		if err := WritePID(opts.PIDFile, pid); err != nil {
			return pid, err
		}
	}
	return pid, nil
}

// Stop kills the process named by pidfile. A missing pidfile means there is
// nothing to stop. The pidfile is removed whether or not the signal landed.
func (s *Supervisor) Stop(pidfile string) error {
	return s.Signal(pidfile, syscall.SIGKILL)
}

// Signal delivers sig to the process named by pidfile and removes the
// pidfile. A process that is already gone counts as success.
func (s *Supervisor) Signal(pidfile string, sig syscall.Signal) error {
	pid, err := ReadPID(pidfile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	log := s.log.WithFields(logrus.Fields{"pidfile": pidfile, "signal": sig.String()})
	var sigErr error
	if err != nil {
		log.WithError(err).Warn("discarding unreadable pidfile")
	} else {
		log = log.WithField("pid", pid)
		if kerr := killProcess(pid, sig); kerr != nil {
			if isNoProcess(kerr) {
				log.Debug("process already gone")
			} else {
				sigErr = fmt.Errorf("signal pid %d: %w", pid, kerr)
			}
		} else {
			log.Debug("signalled process")
		}
	}
	if rmErr := os.Remove(pidfile); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return errors.Join(sigErr, fmt.Errorf("remove pidfile: %w", rmErr))
	}
	return sigErr
}

// Running reports whether the pidfile names a live process.
func Running(pidfile string) bool {
	pid, err := ReadPID(pidfile)
	if err != nil {
		return false
	}
	return alive(pid)
}

// ReadPID parses the decimal pid on the first line of pidfile.
func ReadPID(pidfile string) (int, error) {
	data, err := os.ReadFile(pidfile)
	if err != nil {
		return 0, err
	}
	line, _, _ := strings.Cut(string(data), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s: %q", pidfile, line)
	}
	return pid, nil
}

// WritePID records pid in pidfile.
func WritePID(pidfile string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(pidfile), 0o755); err != nil {
		return fmt.Errorf("prepare pidfile dir: %w", err)
	}
	if err := os.WriteFile(pidfile, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pidfile: %w", err)
	}
	return nil
}

func openOutput(path string) (*os.File, error) {
	if path == "" {
		return os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prepare log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// WaitExit polls until pid has exited, ctx is done or timeout elapses.
func WaitExit(ctx context.Context, pid int, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for alive(pid) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("process %d still running after %s", pid, timeout)
		case <-ticker.C:
		}
	}
	return nil
}
