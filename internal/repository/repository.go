package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"ccm/internal/credentials"
	"ccm/internal/logx"
)

// Request describes one cache entry to materialize.
type Request struct {
	// VersionID keys the cache directory.
	VersionID string
	// URLVersion replaces every %s in URLTemplate. Defaults to VersionID.
	URLVersion  string
	URLTemplate string
	Credentials *credentials.Credentials
	// CredentialsHint is appended to missing-credential warnings.
	CredentialsHint string
	ShowProgress    bool
	// Force replaces an existing entry instead of returning it.
	Force bool
}

// Repository maps version identifiers to extracted installs under a cache
// root. It is the only writer to that root.
type Repository struct {
	root     string
	staging  string
	client   *http.Client
	log      logrus.FieldLogger
	progress func(out io.Writer) Progress
	out      io.Writer
	group    singleflight.Group
}

// Option customizes a Repository.
type Option func(*Repository)

// WithHTTPClient overrides the client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Repository) { r.client = c }
}

// WithLogger sets the sink for progress and warning messages.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Repository) { r.log = l }
}

// WithProgress installs a progress renderer used for requests that ask for it.
func WithProgress(out io.Writer, factory func(out io.Writer) Progress) Option {
	return func(r *Repository) {
		r.out = out
		r.progress = factory
	}
}

// WithStagingDir extracts into dir instead of the cache root. A dir on a
// different filesystem makes the final move a copy.
func WithStagingDir(dir string) Option {
	return func(r *Repository) { r.staging = dir }
}

// New creates a repository rooted at root.
func New(root string, opts ...Option) *Repository {
	r := &Repository{
		root:   root,
		client: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logx.OrDiscard(r.log)
	if r.staging == "" {
		r.staging = root
	}
	return r
}

// Root returns the cache root directory.
func (r *Repository) Root() string {
	return r.root
}

// Path returns the cache directory for versionID whether or not it exists.
func (r *Repository) Path(versionID string) string {
	return filepath.Join(r.root, versionID)
}

// Lookup reports whether versionID is present and non-empty in the cache.
// Contents are not validated further.
func (r *Repository) Lookup(versionID string) (string, bool, error) {
	if err := validateID(versionID); err != nil {
		return "", false, err
	}
	dir := r.Path(versionID)
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("stat cache entry: %w", err)
	}
	if !info.IsDir() {
		return "", false, &CacheConsistencyError{Path: dir, Reason: "not a directory"}
	}
	empty, err := isEmptyDir(dir)
	if err != nil {
		return "", false, fmt.Errorf("read cache entry: %w", err)
	}
	return dir, !empty, nil
}

// List returns the version identifiers currently cached, sorted.
func (r *Repository) List() ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache root: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if _, ok, err := r.Lookup(entry.Name()); err == nil && ok {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Ensure returns the cache directory for req.VersionID, downloading and
// extracting the archive on a miss. Concurrent calls for the same id in this
// process share one install; across processes the first rename wins and the
// others return the winner's directory.
func (r *Repository) Ensure(ctx context.Context, req Request) (string, error) {
	if !req.Force {
		dir, ok, err := r.Lookup(req.VersionID)
		if err != nil {
			return "", err
		}
		if ok {
			r.log.WithFields(logrus.Fields{"version": req.VersionID, "path": dir}).Debug("using cached install")
			return dir, nil
		}
	} else if err := validateID(req.VersionID); err != nil {
		return "", err
	}

	// The flight outlives any single caller; each caller still stops
	// waiting when its own context ends.
	flightCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(req.VersionID, func() (any, error) {
		if !req.Force {
			if dir, ok, err := r.Lookup(req.VersionID); err != nil || ok {
				return dir, err
			}
		}
		return r.install(flightCtx, req)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (r *Repository) install(ctx context.Context, req Request) (string, error) {
	url, err := expandTemplate(req.URLTemplate, req)
	if err != nil {
		return "", err
	}
	log := r.log.WithFields(logrus.Fields{"version": req.VersionID, "url": url})

	if err := os.MkdirAll(r.root, 0o755); err != nil {
		return "", fmt.Errorf("prepare cache root: %w", err)
	}
	if err := os.MkdirAll(r.staging, 0o755); err != nil {
		return "", fmt.Errorf("prepare staging dir: %w", err)
	}

	r.warnMissingCredentials(req)

	tmp, err := os.CreateTemp(r.staging, ".download-*.tar.gz")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	log.Info("downloading")
	var progress Progress
	if req.ShowProgress && r.progress != nil {
		progress = r.progress(r.out)
	}
	dlErr := r.download(ctx, url, req.Credentials, tmp, progress, req.VersionID)
	closeErr := tmp.Close()
	if dlErr != nil {
		return "", dlErr
	}
	if closeErr != nil {
		return "", fmt.Errorf("close temp file: %w", closeErr)
	}

	staging, err := os.MkdirTemp(r.staging, ".staging-"+req.VersionID+"-")
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	log.WithField("archive", tmpPath).Debug("extracting")
	rootName, err := extractTarGz(tmpPath, staging)
	if err != nil {
		return "", &ArchiveError{Path: tmpPath, Err: err}
	}
	extracted := filepath.Join(staging, rootName)
	if info, err := os.Stat(extracted); err != nil || !info.IsDir() {
		return "", &ArchiveError{Path: tmpPath, Err: fmt.Errorf("top-level entry %q is not a directory", rootName)}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	final := r.Path(req.VersionID)
	won, err := commit(extracted, final, req.Force)
	if err != nil {
		return "", err
	}
	if !won {
		log.Debug("another install won the race, discarding staged copy")
	}
	if _, ok, err := r.Lookup(req.VersionID); err != nil {
		return "", err
	} else if !ok {
		return "", &CacheConsistencyError{Path: final, Reason: "entry empty after install"}
	}
	log.WithField("path", final).Info("installed")
	return final, nil
}

// removeStale is swapped in tests to interleave a competing writer.
var removeStale = os.Remove

// commit moves src into place at dst. With replace set any existing dst is
// removed first; otherwise a non-empty dst means another writer already
// finished and src is discarded.
func commit(src, dst string, replace bool) (bool, error) {
	if replace {
		if err := os.RemoveAll(dst); err != nil {
			return false, fmt.Errorf("replace cache dir: %w", err)
		}
	} else if populated(dst) {
		return false, nil
	} else if err := removeStale(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		if populated(dst) {
			return false, nil
		}
		return false, fmt.Errorf("remove stale cache dir: %w", err)
	}

	if err := renameDir(src, dst); err != nil {
		if populated(dst) {
			return false, nil
		}
		return false, fmt.Errorf("commit cache dir: %w", err)
	}
	return true, nil
}

func (r *Repository) warnMissingCredentials(req Request) {
	if req.Credentials != nil && req.Credentials.Username != "" && req.Credentials.Password != "" {
		return
	}
	if req.Credentials == nil || req.Credentials.Username == "" {
		r.log.Warn("No username detected" + req.CredentialsHint)
	}
	if req.Credentials == nil || req.Credentials.Password == "" {
		r.log.Warn("No password detected" + req.CredentialsHint)
	}
}

func expandTemplate(template string, req Request) (string, error) {
	if !strings.Contains(template, "%s") {
		return "", fmt.Errorf("archive url template %q has no %%s placeholder", template)
	}
	v := req.URLVersion
	if v == "" {
		v = req.VersionID
	}
	return strings.ReplaceAll(template, "%s", v), nil
}

func validateID(versionID string) error {
	if versionID == "" || versionID == "." || versionID == ".." ||
		strings.HasPrefix(versionID, ".") || strings.ContainsAny(versionID, `/\`) {
		return fmt.Errorf("invalid version identifier %q", versionID)
	}
	return nil
}

func populated(dir string) bool {
	empty, err := isEmptyDir(dir)
	return err == nil && !empty
}

func isEmptyDir(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()
	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}
