// Package cassandra implements the plain storage engine variant.
package cassandra

import (
	"context"
	"path/filepath"
	"strconv"
	"time"

	"ccm/internal/repository"
	"ccm/internal/variant"
	"ccm/internal/version"
)

const (
	Name = "cassandra"
	// ArchiveTemplate is used unless configuration overrides "cassandra".
	ArchiveTemplate = "https://archive.apache.org/dist/cassandra/%s/apache-cassandra-%s-bin.tar.gz"

	launcher = "cassandra"
	confDir  = "conf"
)

// Variant is the plain engine cluster variant.
type Variant struct {
	variant.NoHooks
	deps     variant.Deps
	resolver version.Resolver
}

// New creates the variant.
func New(deps variant.Deps) *Variant {
	return &Variant{
		deps: deps,
		resolver: version.Resolver{
			Marker:    version.MarkerFile,
			Archive:   version.ArchivePattern("apache-cassandra", "jar"),
			Launcher:  filepath.Join(variant.BinDir, launcher),
			ProbeArgs: []string{"-v"},
			Runner:    deps.Runner,
			Logger:    deps.Logger,
		},
	}
}

// Detector matches bin/cassandra when no product flavor was asserted. It
// never conflicts, so it is registered after the product detectors.
func (v *Variant) Detector() variant.Detector {
	return func(dir *variant.InstallDir, opts variant.Options) variant.Detection {
		if opts.Flavor != variant.FlavorNone {
			return variant.NoMatch()
		}
		if dir.Has(variant.BinDir, launcher) {
			return variant.Match(v)
		}
		return variant.NoMatch()
	}
}

func (v *Variant) Name() string { return Name }

func (v *Variant) ConfDir(dir *variant.InstallDir) (string, error) {
	if !dir.Has(variant.BinDir, launcher) {
		return "", &variant.ConfigurationError{Path: dir.Path(), Reason: "not a cassandra installation"}
	}
	return dir.Join(confDir), nil
}

func (v *Variant) ResolveVersion(ctx context.Context, dir *variant.InstallDir, engine bool) (version.Version, error) {
	return v.resolver.Resolve(ctx, dir.Path(), engine)
}

func (v *Variant) Install(ctx context.Context, env variant.InstallEnv, versionID string) (string, error) {
	return env.Repository.Ensure(ctx, repository.Request{
		VersionID:    versionID,
		URLTemplate:  v.deps.Template(Name, ArchiveTemplate),
		ShowProgress: env.Options.ShowProgress,
	})
}

func (v *Variant) NewNode(spec variant.NodeSpec) variant.Node {
	return &Node{spec: spec, heap: v.deps.HeapEnv()}
}

func (v *Variant) CanGenerateTokens() bool { return true }

func (v *Variant) StartTimeout() time.Duration { return variant.DefaultStartTimeout }

// Node is a plain engine node with a flat conf/ directory.
type Node struct {
	spec variant.NodeSpec
	heap map[string]string
}

func (n *Node) path(elem ...string) string {
	return filepath.Join(append([]string{n.spec.Path}, elem...)...)
}

func (n *Node) RequiredDirectories() []string {
	dirs := make([]string, 0, len(variant.NodeDirectories)+1+n.spec.Options.DataDirCount())
	for _, d := range variant.NodeDirectories {
		dirs = append(dirs, n.path(d))
	}
	dirs = append(dirs, n.path(confDir))
	for i := 0; i < n.spec.Options.DataDirCount(); i++ {
		dirs = append(dirs, n.path("data"+strconv.Itoa(i)))
	}
	return dirs
}

func (n *Node) Environment() map[string]string {
	return variant.MergeMaps(n.heap, map[string]string{
		"CASSANDRA_HOME":    n.spec.InstallDir.Path(),
		"CASSANDRA_CONF":    n.path(confDir),
		"CASSANDRA_LOG_DIR": n.path("logs"),
	})
}

func (n *Node) CopyConfigFiles() error {
	_, err := variant.ReplaceDir(n.spec.InstallDir.Join(confDir), n.path(confDir))
	return err
}

func (n *Node) ImportBinFiles() error {
	return variant.CopyTree(n.spec.InstallDir.Join(variant.BinDir), n.path(variant.BinDir))
}

// PostImportFixups is a no-op; the engine's scripts honor CASSANDRA_HOME.
func (n *Node) PostImportFixups() error { return nil }

func (n *Node) LaunchBinary() (string, error) {
	return n.path(variant.BinDir, launcher), nil
}

func (n *Node) LaunchArgs() []string { return nil }

func (n *Node) ConfDir() string { return n.path(confDir) }

func (n *Node) LogFile() string { return n.path("logs", "system.log") }
