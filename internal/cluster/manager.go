// Package cluster orchestrates local clusters of engine nodes on top of the
// variant that owns their install directory.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"ccm/internal/logx"
	"ccm/internal/sidecar"
	"ccm/internal/variant"
)

// currentFile names the cluster commands act on by default.
const currentFile = "CURRENT"

// reserved entries of the config root that cannot be cluster names.
var reserved = map[string]bool{"repository": true, "logs": true}

// Params describe a cluster to create. Exactly one of InstallDir and
// VersionID must be set.
type Params struct {
	Name       string
	InstallDir string
	VersionID  string
	Options    variant.Options
	// Nodes are added right after creation.
	Nodes int
}

// Manager creates and loads clusters under a config root.
type Manager struct {
	root     string
	registry *variant.Registry
	repo     variant.Provisioner
	sidecar  *sidecar.Supervisor
	log      logrus.FieldLogger
}

// NewManager creates a manager. repo may be nil when clusters are only ever
// created from install directories.
func NewManager(root string, registry *variant.Registry, repo variant.Provisioner, log logrus.FieldLogger) *Manager {
	log = logx.OrDiscard(log)
	return &Manager{
		root:     root,
		registry: registry,
		repo:     repo,
		sidecar:  sidecar.New(log),
		log:      log,
	}
}

// Path returns the directory of the named cluster.
func (m *Manager) Path(name string) string {
	return filepath.Join(m.root, name)
}

// Create resolves the install directory and its variant, persists the
// cluster and adds the requested nodes. A failed create leaves nothing behind.
func (m *Manager) Create(ctx context.Context, p Params) (_ *Cluster, err error) {
	if err := validateName(p.Name); err != nil {
		return nil, err
	}
	if (p.InstallDir == "") == (p.VersionID == "") {
		return nil, &variant.ConfigurationError{Reason: "exactly one of an install directory or a version is required"}
	}
	path := m.Path(p.Name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("cluster %s already exists at %s", p.Name, path)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create cluster dir: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(path)
		}
	}()

	installPath := p.InstallDir
	if p.VersionID != "" {
		installPath, err = m.install(ctx, p, path)
		if err != nil {
			return nil, err
		}
	}
	dir, err := variant.NewInstallDir(installPath)
	if err != nil {
		return nil, err
	}
	v, ok, err := m.registry.Resolve(dir, p.Options)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &variant.ConfigurationError{Path: dir.Path(), Reason: "no cluster variant recognizes installation directory"}
	}

	c := m.newCluster(State{
		Name:       p.Name,
		Variant:    v.Name(),
		InstallDir: dir.Path(),
		VersionID:  p.VersionID,
		Options:    p.Options,
	}, dir, v)
	if err := v.OnCreate(ctx, c); err != nil {
		return nil, err
	}
	if err := c.save(); err != nil {
		return nil, err
	}
	for i := 1; i <= p.Nodes; i++ {
		if err := c.AddNode(ctx, fmt.Sprintf("node%d", i)); err != nil {
			return nil, err
		}
	}
	m.log.WithFields(logrus.Fields{"cluster": p.Name, "variant": v.Name(), "install_dir": dir.Path()}).Info("created cluster")
	return c, nil
}

// install materializes p.VersionID with the variant the asserted flavor names.
func (m *Manager) install(ctx context.Context, p Params, clusterPath string) (string, error) {
	if m.repo == nil {
		return "", errors.New("no repository configured")
	}
	name := string(p.Options.Flavor)
	if name == "" {
		name = "cassandra"
	}
	v, ok := m.registry.Named(name)
	if !ok {
		return "", &variant.ConfigurationError{Reason: fmt.Sprintf("no variant installs %q versions", name)}
	}
	return v.Install(ctx, variant.InstallEnv{Repository: m.repo, Options: p.Options, ClusterPath: clusterPath}, p.VersionID)
}

// Load reads a persisted cluster.
func (m *Manager) Load(name string) (*Cluster, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	st, err := loadState(filepath.Join(m.Path(name), StateFile))
	if err != nil {
		return nil, err
	}
	v, ok := m.registry.Named(st.Variant)
	if !ok {
		return nil, fmt.Errorf("cluster %s uses unknown variant %q", name, st.Variant)
	}
	dir, err := variant.NewInstallDir(st.InstallDir)
	if err != nil {
		return nil, err
	}
	return m.newCluster(st, dir, v), nil
}

// List returns the names of persisted clusters.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || reserved[e.Name()] {
			continue
		}
		if _, err := os.Stat(filepath.Join(m.root, e.Name(), StateFile)); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Current returns the default cluster name, or "" when none is set.
func (m *Manager) Current() (string, error) {
	data, err := os.ReadFile(filepath.Join(m.root, currentFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// SetCurrent records name as the default cluster. An empty name clears it.
func (m *Manager) SetCurrent(name string) error {
	path := filepath.Join(m.root, currentFile)
	if name == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(name+"\n"), 0o644)
}

func validateName(name string) error {
	switch {
	case name == "":
		return &variant.ConfigurationError{Reason: "cluster name is required"}
	case strings.HasPrefix(name, "."), strings.ContainsAny(name, `/\`), reserved[name]:
		return &variant.ConfigurationError{Reason: fmt.Sprintf("invalid cluster name %q", name)}
	}
	return nil
}
