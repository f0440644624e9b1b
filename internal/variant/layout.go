package variant

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Heap holds the default JVM sizing handed to node processes.
type Heap struct {
	MaxHeapSize     string
	HeapNewSize     string
	MaxDirectMemory string
}

// DefaultHeap is used when configuration leaves heap sizing unset.
var DefaultHeap = Heap{MaxHeapSize: "500M", HeapNewSize: "50M", MaxDirectMemory: "2048M"}

// Env maps the heap settings onto node variables. CCM_MAX_HEAP_SIZE,
// CCM_HEAP_NEWSIZE and CCM_MAX_DIRECT_SIZE take precedence.
func (h Heap) Env(lookup func(string) (string, bool)) map[string]string {
	pick := func(key, configured, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		if configured != "" {
			return configured
		}
		return fallback
	}
	return map[string]string{
		"MAX_HEAP_SIZE":     pick("CCM_MAX_HEAP_SIZE", h.MaxHeapSize, DefaultHeap.MaxHeapSize),
		"HEAP_NEWSIZE":      pick("CCM_HEAP_NEWSIZE", h.HeapNewSize, DefaultHeap.HeapNewSize),
		"MAX_DIRECT_MEMORY": pick("CCM_MAX_DIRECT_SIZE", h.MaxDirectMemory, DefaultHeap.MaxDirectMemory),
	}
}

// MergeEnv overlays vars on an inherited KEY=VALUE list. Overlaid keys keep
// their inherited position; new keys are appended in sorted order.
func MergeEnv(inherited []string, vars map[string]string) []string {
	out := make([]string, 0, len(inherited)+len(vars))
	seen := make(map[string]bool, len(vars))
	for _, kv := range inherited {
		key, _, _ := strings.Cut(kv, "=")
		if v, ok := vars[key]; ok {
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, key+"="+v)
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+vars[k])
	}
	return out
}

// MergeMaps returns a new map with later maps taking precedence.
func MergeMaps(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// ReplaceDir copies src over dst after removing any existing dst. A missing
// src is skipped and reported as false.
func ReplaceDir(src, dst string) (bool, error) {
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if !info.IsDir() {
		return false, nil
	}
	if err := os.RemoveAll(dst); err != nil {
		return false, fmt.Errorf("remove %s: %w", dst, err)
	}
	if err := CopyTree(src, dst); err != nil {
		return false, fmt.Errorf("copy %s: %w", src, err)
	}
	return true, nil
}

// CopyTree copies a directory tree into dst, merging with whatever is there.
// Modes and symlinks are preserved.
func CopyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		switch {
		case info.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			_ = os.Remove(target)
			return os.Symlink(link, target)
		default:
			return CopyFile(path, target)
		}
	})
}

// CopyFile copies a single regular file, keeping its mode.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// PatchLauncherScript appends "NAME=value" and "export NAME" after every line
// equal to anchor. The file is rewritten only when the anchor is present;
// other bytes are kept as they were. Running it twice appends a second block.
func PatchLauncherScript(script, anchor, name, value string) (bool, error) {
	data, err := os.ReadFile(script)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", script, err)
	}

	var out bytes.Buffer
	patched := false
	reader := bufio.NewReader(bytes.NewReader(data))
	for {
		line, readErr := reader.ReadString('\n')
		out.WriteString(line)
		if strings.TrimRight(line, "\r\n") == anchor && strings.HasSuffix(line, "\n") {
			fmt.Fprintf(&out, "%s=%s\nexport %s\n", name, value, name)
			patched = true
		}
		if readErr != nil {
			break
		}
	}
	if !patched {
		return false, nil
	}

	info, err := os.Stat(script)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(script, out.Bytes(), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("write %s: %w", script, err)
	}
	return true, nil
}
