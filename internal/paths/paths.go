package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ccm/internal/config"
	"ccm/internal/credentials"
)

// Environment overrides for the canonical locations.
const (
	EnvConfigDir     = "CCM_CONFIG_DIR"
	EnvRepositoryDir = "CCM_REPOSITORY_DIR"
)

// Paths captures canonical locations for a ccm installation.
type Paths struct {
	Root            string
	ConfigFile      string
	CredentialsFile string
	RepositoryDir   string
	LogsDir         string
}

// Resolve determines the config root from the optional --config-dir flag,
// then CCM_CONFIG_DIR, then ~/.ccm.
func Resolve(configFlag string) (Paths, error) {
	return resolve(configFlag, os.LookupEnv, os.UserHomeDir)
}

func resolve(configFlag string, lookup func(string) (string, bool), home func() (string, error)) (Paths, error) {
	root := strings.TrimSpace(configFlag)
	if root == "" {
		if v, ok := lookup(EnvConfigDir); ok && strings.TrimSpace(v) != "" {
			root = strings.TrimSpace(v)
		}
	}
	if root == "" {
		dir, err := home()
		if err != nil {
			return Paths{}, fmt.Errorf("detect user home: %w", err)
		}
		root = filepath.Join(dir, ".ccm")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve config root: %w", err)
	}

	pp := newPaths(abs)
	if v, ok := lookup(EnvRepositoryDir); ok && strings.TrimSpace(v) != "" {
		pp.RepositoryDir = resolvePath(abs, strings.TrimSpace(v))
	}
	return pp, nil
}

func newPaths(root string) Paths {
	return Paths{
		Root:            root,
		ConfigFile:      filepath.Join(root, config.FileName),
		CredentialsFile: credentials.DefaultPath(root),
		RepositoryDir:   filepath.Join(root, "repository"),
		LogsDir:         filepath.Join(root, "logs"),
	}
}

// ApplyConfig applies the repository_dir override unless CCM_REPOSITORY_DIR
// already moved the cache root.
func ApplyConfig(pp Paths, cfg config.Config) Paths {
	return applyConfig(pp, cfg, os.LookupEnv)
}

func applyConfig(pp Paths, cfg config.Config, lookup func(string) (string, bool)) Paths {
	if v, ok := lookup(EnvRepositoryDir); ok && strings.TrimSpace(v) != "" {
		return pp
	}
	if dir := strings.TrimSpace(cfg.RepositoryDir); dir != "" {
		pp.RepositoryDir = resolvePath(pp.Root, dir)
	}
	return pp
}

// ClusterDir returns the directory holding the named cluster.
func (p Paths) ClusterDir(name string) string {
	return filepath.Join(p.Root, name)
}

// EnsureRoot makes sure the config root exists on disk.
func (p Paths) EnsureRoot() error {
	if err := os.MkdirAll(p.Root, 0o755); err != nil {
		return fmt.Errorf("create config root: %w", err)
	}
	return nil
}

func resolvePath(root, value string) string {
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(root, value)
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
