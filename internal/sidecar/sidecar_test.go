package sidecar

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"
	"time"
)

func TestStopWithoutPidfile(t *testing.T) {
	called := false
	orig := killProcess
	killProcess = func(int, syscall.Signal) error { called = true; return nil }
	defer func() { killProcess = orig }()

	dir := t.TempDir()
	if err := New(nil).Stop(filepath.Join(dir, "twistd.pid")); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if called {
		t.Fatal("no signal expected without a pidfile")
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("Stop created files: %d", len(entries))
	}
}

func TestStopStaleProcess(t *testing.T) {
	var gotPID int
	var gotSig syscall.Signal
	orig := killProcess
	killProcess = func(pid int, sig syscall.Signal) error {
		gotPID, gotSig = pid, sig
		return noProcessErr()
	}
	defer func() { killProcess = orig }()

	pidfile := filepath.Join(t.TempDir(), "twistd.pid")
	if err := os.WriteFile(pidfile, []byte("4242\nextra\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := New(nil).Stop(pidfile); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if gotPID != 4242 || gotSig != syscall.SIGKILL {
		t.Fatalf("unexpected signal %v to %d", gotSig, gotPID)
	}
	if _, err := os.Stat(pidfile); !os.IsNotExist(err) {
		t.Fatal("pidfile should be removed")
	}
}

func TestStopRemovesPidfileOnSignalFailure(t *testing.T) {
	orig := killProcess
	killProcess = func(int, syscall.Signal) error { return errors.New("operation not permitted") }
	defer func() { killProcess = orig }()

	pidfile := filepath.Join(t.TempDir(), "node.pid")
	if err := WritePID(pidfile, 99); err != nil {
		t.Fatalf("WritePID: %v", err)
	}
	if err := New(nil).Stop(pidfile); err == nil {
		t.Fatal("expected signal error")
	}
	if _, err := os.Stat(pidfile); !os.IsNotExist(err) {
		t.Fatal("pidfile should be removed even when the signal fails")
	}
}

func TestStopGarbagePidfile(t *testing.T) {
	pidfile := filepath.Join(t.TempDir(), "twistd.pid")
	if err := os.WriteFile(pidfile, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := New(nil).Stop(pidfile); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := os.Stat(pidfile); !os.IsNotExist(err) {
		t.Fatal("pidfile should be removed")
	}
}

func TestStartStopIsIdempotent(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	dir := t.TempDir()
	pidfile := filepath.Join(dir, "sidecar.pid")
	sup := New(nil)

	pid, err := sup.Start(sleep, []string{"30"}, StartOptions{LogFile: filepath.Join(dir, "out.log"), PIDFile: pidfile})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got, err := ReadPID(pidfile); err != nil || got != pid {
		t.Fatalf("ReadPID = %d, %v; want %d", got, err, pid)
	}
	if !Running(pidfile) {
		t.Fatal("expected process to be running")
	}

	for i := 0; i < 2; i++ {
		if err := sup.Stop(pidfile); err != nil {
			t.Fatalf("Stop %d: %v", i, err)
		}
		if _, err := os.Stat(pidfile); !os.IsNotExist(err) {
			t.Fatalf("pidfile present after stop %d", i)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for alive(pid) && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if alive(pid) {
		t.Fatalf("process %d survived SIGKILL", pid)
	}
}

func TestStartMissingBinary(t *testing.T) {
	_, err := New(nil).Start(filepath.Join(t.TempDir(), "missing"), nil, StartOptions{})
	if err == nil {
		t.Fatal("expected start error")
	}
}
