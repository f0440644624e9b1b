package version

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"ccm/internal/logx"
	"ccm/internal/runner"
)

// MarkerFile is the plain-text version file shipped inside binary installs.
const MarkerFile = "0.version.txt"

// NotFoundError reports that no detection strategy produced a version.
type NotFoundError struct {
	InstallDir string
	Stdout     string
	Stderr     string
	Err        error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("unable to determine version of %s", e.InstallDir)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stdout != "" || e.Stderr != "" {
		msg += fmt.Sprintf("\n\tstdout: '%s'\n\tstderr: '%s'", e.Stdout, e.Stderr)
	}
	return msg
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// ArchivePattern matches product archive names such as "hcd-core-1.0.2-beta.jar"
// and captures the numeric version.
func ArchivePattern(product, ext string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(product) + `(?:-core)?-([0-9]+(?:\.[0-9]+)*)(?:-.*)?\.` + regexp.QuoteMeta(ext) + `$`)
}

var probeRegex = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)*)(?:-\S*)?`)

// Resolver determines the version of an installation directory. The marker
// file wins, then an archive-name scan, then a launcher probe.
type Resolver struct {
	// Marker is relative to the install directory. Empty disables the check.
	Marker string
	// Archive is matched against file base names. Nil disables the scan.
	Archive *regexp.Regexp
	// Launcher is the probe binary relative to the install directory.
	Launcher  string
	ProbeArgs []string
	// WrapsEngine marks products that embed a separately versioned storage
	// engine; engine lookups then always go through the probe.
	WrapsEngine bool
	Env         []string
	Runner      runner.Runner
	Logger      logrus.FieldLogger
}

// Resolve returns the product version, or the wrapped engine version when
// wantEngine is set and the product wraps one.
func (r Resolver) Resolve(ctx context.Context, installDir string, wantEngine bool) (Version, error) {
	if installDir == "" {
		return Version{}, &NotFoundError{Err: errors.New("undefined installation directory")}
	}
	log := r.logger().WithField("install_dir", installDir)

	if wantEngine && r.WrapsEngine {
		return r.probe(ctx, installDir)
	}

	if v, ok := r.fromMarker(installDir); ok {
		log.WithField("version", v.String()).Debug("version from marker file")
		return v, nil
	}
	if v, ok, err := r.fromArchiveName(installDir); err != nil {
		return Version{}, &NotFoundError{InstallDir: installDir, Err: err}
	} else if ok {
		log.WithField("version", v.String()).Debug("version from archive name")
		return v, nil
	}
	return r.probe(ctx, installDir)
}

func (r Resolver) fromMarker(installDir string) (Version, bool) {
	if r.Marker == "" {
		return Version{}, false
	}
	data, err := os.ReadFile(filepath.Join(installDir, r.Marker))
	if err != nil {
		return Version{}, false
	}
	v, err := Parse(string(data))
	if err != nil {
		r.logger().WithError(err).Warn("ignoring unreadable version marker")
		return Version{}, false
	}
	return v, true
}

// fromArchiveName walks installDir in lexical order and returns the first
// matching archive's version.
func (r Resolver) fromArchiveName(installDir string) (Version, bool, error) {
	if r.Archive == nil {
		return Version{}, false, nil
	}
	var found Version
	err := filepath.WalkDir(installDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == installDir {
				return err
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		match := r.Archive.FindStringSubmatch(d.Name())
		if match == nil {
			return nil
		}
		v, perr := Parse(match[1])
		if perr != nil {
			return nil
		}
		found = v
		return fs.SkipAll
	})
	if err != nil {
		return Version{}, false, fmt.Errorf("scan %s: %w", installDir, err)
	}
	return found, !found.IsZero(), nil
}

// probe runs the launcher and parses the last non-blank stdout line. The
// exit status is not authoritative; only a parseable line counts.
func (r Resolver) probe(ctx context.Context, installDir string) (Version, error) {
	if r.Launcher == "" {
		return Version{}, &NotFoundError{InstallDir: installDir, Err: errors.New("no detection strategy matched")}
	}
	launcher := filepath.Join(installDir, r.Launcher)
	run := r.Runner
	if run == nil {
		run = runner.Exec{}
	}
	res, runErr := run.Run(ctx, launcher, r.ProbeArgs, runner.Options{Env: r.Env})
	stdout := lastLine(string(res.Stdout))
	stderr := strings.TrimSpace(string(res.Stderr))

	if match := probeRegex.FindStringSubmatch(stdout); match != nil {
		if v, err := Parse(match[1]); err == nil {
			return v, nil
		}
	}
	err := runErr
	if err == nil {
		err = fmt.Errorf("`%s %s` printed no version", r.Launcher, strings.Join(r.ProbeArgs, " "))
	}
	return Version{}, &NotFoundError{InstallDir: installDir, Stdout: stdout, Stderr: stderr, Err: err}
}

func lastLine(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\r\n\t "), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

func (r Resolver) logger() logrus.FieldLogger {
	return logx.OrDiscard(r.Logger)
}
