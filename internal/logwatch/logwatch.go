// Package logwatch waits for readiness markers in log files that other
// processes are appending to.
package logwatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval rescans logs when no filesystem event arrives.
const DefaultPollInterval = 250 * time.Millisecond

// Marks records per-file offsets; only text written after a mark is searched.
type Marks map[string]int64

// Mark returns the current size of path, or zero when it does not exist yet.
func Mark(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// MarkAll marks every path.
func MarkAll(paths ...string) Marks {
	marks := make(Marks, len(paths))
	for _, p := range paths {
		marks[p] = Mark(p)
	}
	return marks
}

// TimeoutError reports that no log showed the marker in time.
type TimeoutError struct {
	Marker  string
	Timeout time.Duration
	Files   []string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %q in %v", e.Timeout, e.Marker, e.Files)
}

// WaitForAny blocks until any file in marks contains marker past its mark.
// It returns the file that matched.
func WaitForAny(ctx context.Context, marks Marks, marker string, timeout time.Duration) (string, error) {
	return waitForAny(ctx, marks, marker, timeout, DefaultPollInterval)
}

func waitForAny(ctx context.Context, marks Marks, marker string, timeout, poll time.Duration) (string, error) {
	if marker == "" {
		return "", errors.New("empty marker")
	}
	if len(marks) == 0 {
		return "", errors.New("no log files to watch")
	}

	files := make([]string, 0, len(marks))
	for path := range marks {
		files = append(files, path)
	}
	sort.Strings(files)

	scanners := make([]*scanner, 0, len(files))
	for _, path := range files {
		scanners = append(scanners, &scanner{path: path, offset: marks[path], marker: []byte(marker)})
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var events <-chan fsnotify.Event
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		defer watcher.Close()
		dirs := map[string]bool{}
		for _, path := range files {
			dir := filepath.Dir(path)
			if !dirs[dir] {
				dirs[dir] = true
				// Directories that do not exist yet are covered by polling.
				_ = watcher.Add(dir)
			}
		}
		events = watcher.Events
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		for _, s := range scanners {
			found, err := s.scan()
			if err != nil {
				return "", err
			}
			if found {
				return s.path, nil
			}
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", &TimeoutError{Marker: marker, Timeout: timeout, Files: files}
			}
			return "", ctx.Err()
		case <-events:
		case <-ticker.C:
		}
	}
}

// scanner incrementally searches a growing file. It keeps the tail of the
// previous read so a marker split across writes is still found.
type scanner struct {
	path   string
	offset int64
	marker []byte
	carry  []byte
}

func (s *scanner) scan() (bool, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() < s.offset {
		// Rotated or truncated.
		s.offset = 0
		s.carry = nil
	}
	if info.Size() == s.offset {
		return false, nil
	}
	if _, err := f.Seek(s.offset, io.SeekStart); err != nil {
		return false, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", s.path, err)
	}
	s.offset += int64(len(data))

	buf := append(s.carry, data...)
	if bytes.Contains(buf, s.marker) {
		return true, nil
	}
	keep := len(s.marker) - 1
	if keep > len(buf) {
		keep = len(buf)
	}
	s.carry = append([]byte(nil), buf[len(buf)-keep:]...)
	return false, nil
}
