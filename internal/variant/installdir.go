package variant

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// BinDir is the launcher directory every product ships at its install root.
const BinDir = "bin"

// currentDir is exempt from presence checks so detection works from inside a
// source checkout before it has been built.
const currentDir = "./"

// InstallDir is an installation directory with lazily computed facts about
// its layout.
type InstallDir struct {
	path    string
	relaxed bool

	binOnce sync.Once
	hasBin  bool
}

// NewInstallDir validates path and makes it absolute.
func NewInstallDir(path string) (*InstallDir, error) {
	if path == "" {
		return nil, &ConfigurationError{Reason: "undefined installation directory"}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve install dir: %w", err)
	}
	return &InstallDir{path: abs, relaxed: path == currentDir}, nil
}

// Path returns the absolute directory.
func (d *InstallDir) Path() string {
	return d.path
}

// Join resolves elem relative to the install directory.
func (d *InstallDir) Join(elem ...string) string {
	return filepath.Join(append([]string{d.path}, elem...)...)
}

// HasBin reports whether the directory contains a bin/ directory. The answer
// is computed once.
func (d *InstallDir) HasBin() bool {
	d.binOnce.Do(func() {
		info, err := os.Stat(d.Join(BinDir))
		d.hasBin = err == nil && info.IsDir()
	})
	return d.hasBin
}

// Has reports whether the relative path exists.
func (d *InstallDir) Has(elem ...string) bool {
	_, err := os.Stat(d.Join(elem...))
	return err == nil
}

// Relaxed reports whether presence checks should be skipped, which is the
// case for the literal "./" directory.
func (d *InstallDir) Relaxed() bool {
	return d.relaxed
}

func (d *InstallDir) String() string {
	return d.path
}
