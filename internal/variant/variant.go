package variant

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"ccm/internal/repository"
	"ccm/internal/runner"
	"ccm/internal/version"
)

// DefaultStartTimeout bounds how long a node may take to report readiness.
const DefaultStartTimeout = 90 * time.Second

// ClusterVariant is the per-flavor behavior of a cluster.
type ClusterVariant interface {
	Name() string
	// ConfDir returns the shipped configuration directory. It fails when dir
	// does not belong to this variant.
	ConfDir(dir *InstallDir) (string, error)
	// ResolveVersion returns the product version, or the wrapped engine
	// version when engine is set.
	ResolveVersion(ctx context.Context, dir *InstallDir, engine bool) (version.Version, error)
	// Install materializes versionID through the repository and returns the
	// install directory.
	Install(ctx context.Context, env InstallEnv, versionID string) (string, error)
	NewNode(spec NodeSpec) Node
	CanGenerateTokens() bool
	StartTimeout() time.Duration
	Hooks
}

// Hooks are extra steps composed into the generic cluster lifecycle.
type Hooks interface {
	OnCreate(ctx context.Context, c Cluster) error
	OnStart(ctx context.Context, c Cluster) error
	OnStop(ctx context.Context, c Cluster) error
	OnRemove(ctx context.Context, c Cluster) error
	// RemoveGently reports whether removal must stop nodes with a graceful
	// signal instead of killing them.
	RemoveGently(c Cluster) bool
}

// NoHooks implements Hooks with no-ops.
type NoHooks struct{}

func (NoHooks) OnCreate(context.Context, Cluster) error { return nil }
func (NoHooks) OnStart(context.Context, Cluster) error { return nil }
func (NoHooks) OnStop(context.Context, Cluster) error { return nil }
func (NoHooks) OnRemove(context.Context, Cluster) error { return nil }
func (NoHooks) RemoveGently(Cluster) bool { return false }

// Node is the per-node layout of a variant.
type Node interface {
	// RequiredDirectories lists directories to create before first launch.
	RequiredDirectories() []string
	// Environment returns the product variables to overlay on the inherited
	// environment.
	Environment() map[string]string
	// CopyConfigFiles replaces the node's private config copies wholesale.
	CopyConfigFiles() error
	ImportBinFiles() error
	// PostImportFixups patches launcher scripts in the node's bin directory.
	PostImportFixups() error
	LaunchBinary() (string, error)
	LaunchArgs() []string
	ConfDir() string
	LogFile() string
}

// NodeSpec binds a node to its cluster's layout.
type NodeSpec struct {
	Name       string
	Index      int
	Path       string
	InstallDir *InstallDir
	Options    Options
}

// NodeInfo describes a node's network endpoints.
type NodeInfo struct {
	Name       string
	Path       string
	Address    string
	JMXPort    int
	ThriftPort int
	NativePort int
}

// Cluster is the view of a cluster that hooks operate on.
type Cluster interface {
	Name() string
	Path() string
	InstallDir() *InstallDir
	Options() Options
	Nodes() []NodeInfo
	// Version returns the memoized product version.
	Version(ctx context.Context) (version.Version, error)
	// WaitForAnyLog blocks until any node log written since the last start
	// contains marker, or timeout elapses.
	WaitForAnyLog(ctx context.Context, marker string, timeout time.Duration) error
	Logger() logrus.FieldLogger
}

// Provisioner materializes cache entries.
type Provisioner interface {
	Ensure(ctx context.Context, req repository.Request) (string, error)
}

// InstallEnv carries what Install needs beyond the version identifier.
type InstallEnv struct {
	Repository Provisioner
	Options    Options
	// ClusterPath receives companion installs copied out of the cache.
	ClusterPath string
}

// Deps are the collaborators shared by all variants.
type Deps struct {
	Logger logrus.FieldLogger
	Runner runner.Runner
	Heap   Heap
	// Templates overrides archive URL templates by product key.
	Templates map[string]string
	// ConfigRoot is probed for the default credentials file.
	ConfigRoot string
	// LookupEnv reads CCM_* overrides; nil means os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Template returns the configured archive template for product, or fallback.
func (d Deps) Template(product, fallback string) string {
	if t, ok := d.Templates[product]; ok && t != "" {
		return t
	}
	return fallback
}

// HeapEnv returns the heap variables for node processes.
func (d Deps) HeapEnv() map[string]string {
	lookup := d.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return d.Heap.Env(lookup)
}
