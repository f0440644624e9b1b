// Package hcd implements the Hyper-Converged Database variant.
package hcd

import (
	"context"
	"path/filepath"
	"time"

	"ccm/internal/repository"
	"ccm/internal/variant"
	"ccm/internal/version"
)

const (
	Name = "hcd"
	// ArchiveTemplate is used unless configuration overrides "hcd".
	ArchiveTemplate = "https://downloads.datastax.com/hcd/hcd-%s-bin.tar.gz"

	launcher  = "hcd"
	confDir   = "resources/cassandra/conf"
	envScript = "hcd-env.sh"
	envAnchor = "# This is here so the installer can force set HCD_HOME"
)

// ProductRoot is where the product lives inside an install directory.
var ProductRoot = filepath.Join("distribution", "hcd", "target", "hcd")

// Variant is the HCD cluster variant.
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
			Marker:      version.MarkerFile,
			Archive:     version.ArchivePattern("hcd", "jar"),
			Launcher:    filepath.Join(variant.BinDir, launcher),
			ProbeArgs:   []string{"cassandra", "-v"},
			WrapsEngine: true,
			Runner:      deps.Runner,
			Logger:      deps.Logger,
		},
	}
}

// Detector matches installs with bin/hcd when --hcd is asserted.
func (v *Variant) Detector() variant.Detector {
	return variant.DetectLauncher(v, variant.FlavorHCD, launcher)
}

func (v *Variant) Name() string { return Name }

func (v *Variant) ConfDir(dir *variant.InstallDir) (string, error) {
	if !dir.Has(variant.BinDir, launcher) {
		return "", &variant.ConfigurationError{Path: dir.Path(), Reason: "not an HCD installation"}
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
	return &Node{
		Packaged: variant.Packaged{
			Spec:      spec,
			Root:      spec.InstallDir.Join(ProductRoot),
			Products:  []string{"hcd", "cassandra"},
			Launcher:  launcher,
			EnvScript: envScript,
			EnvAnchor: envAnchor,
			HomeVar:   "HCD_HOME",
		},
		heap: v.deps.HeapEnv(),
	}
}

func (v *Variant) CanGenerateTokens() bool { return false }

func (v *Variant) StartTimeout() time.Duration { return variant.DefaultStartTimeout }

// Node is an HCD node.
type Node struct {
	variant.Packaged
	heap map[string]string
}

func (n *Node) Environment() map[string]string {
	return variant.MergeMaps(n.heap, n.EngineEnv(), map[string]string{
		"HCD_HOME":     n.Root,
		"HCD_CONF":     filepath.Join(n.Spec.Path, "resources", "hcd", "conf"),
		"HCD_LOG_ROOT": filepath.Join(n.Spec.Path, "logs", "hcd"),
	})
}
