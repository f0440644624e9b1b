package logwatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func appendText(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString(text); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestWaitForAnyIgnoresTextBeforeMark(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(dir, "system.log")
	appendText(t, log, "AlwaysOn SQL started\n")

	marks := MarkAll(log)
	_, err := waitForAny(context.Background(), marks, "AlwaysOn SQL started", 150*time.Millisecond, 10*time.Millisecond)
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
}

func TestWaitForAnyFindsMarkerInAnyFile(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "node1", "system.log")
	second := filepath.Join(dir, "node2", "system.log")
	marks := MarkAll(first, second)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.MkdirAll(filepath.Dir(second), 0o755)
		appendText(t, second, "INFO  Starting listening for CQL ")
		time.Sleep(30 * time.Millisecond)
		appendText(t, second, "clients on localhost/127.0.0.2:9042\n")
	}()

	got, err := waitForAny(context.Background(), marks, "Starting listening for CQL clients", 5*time.Second, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("waitForAny: %v", err)
	}
	if got != second {
		t.Fatalf("matched %s, want %s", got, second)
	}
}

func TestWaitForAnyHonorsCancel(t *testing.T) {
	log := filepath.Join(t.TempDir(), "system.log")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := waitForAny(ctx, MarkAll(log), "ready", time.Minute, 10*time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMarkMissingFile(t *testing.T) {
	if got := Mark(filepath.Join(t.TempDir(), "missing.log")); got != 0 {
		t.Fatalf("Mark = %d, want 0", got)
	}
}
