// Package dse implements the DataStax Enterprise variant, including the
// OpsCenter sidecar and AlwaysOn SQL readiness.
package dse

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ccm/internal/credentials"
	"ccm/internal/logx"
	"ccm/internal/repository"
	"ccm/internal/sidecar"
	"ccm/internal/variant"
	"ccm/internal/version"
)

const (
	Name = "dse"
	// ArchiveTemplate is used unless configuration overrides "dse".
	ArchiveTemplate = "https://downloads.datastax.com/enterprise/dse-%s-bin.tar.gz"
	// OpsCenterTemplate is used unless configuration overrides "opscenter".
	OpsCenterTemplate = "https://downloads.datastax.com/enterprise/opscenter-%s.tar.gz"
	// OpsCenterPrefix keeps OpsCenter cache keys apart from engine versions.
	OpsCenterPrefix = "opsc"

	launcher          = "dse"
	opscenterLauncher = "opscenter"
	confDir           = "resources/cassandra/conf"
	opscenterConfDir  = "conf/cassandra"

	startTimeout = 180 * time.Second
	aossTimeout  = 600 * time.Second
	aossMarker   = "AlwaysOn SQL started"
	aossMinimum  = ">= 6.0"

	credentialsHint = ", specify one using --dse-username/--dse-password or pass a credentials file using --dse-credentials."
)

// Variant is the DSE cluster variant.
type Variant struct {
	deps     variant.Deps
	log      logrus.FieldLogger
	resolver version.Resolver
	sidecar  *sidecar.Supervisor
}

// New creates the variant.
func New(deps variant.Deps) *Variant {
	log := logx.OrDiscard(deps.Logger)
	return &Variant{
		deps: deps,
		log:  log,
		resolver: version.Resolver{
			Marker:      version.MarkerFile,
			Archive:     version.ArchivePattern("dse", "jar"),
			Launcher:    filepath.Join(variant.BinDir, launcher),
			ProbeArgs:   []string{"cassandra", "-v"},
			WrapsEngine: true,
			Runner:      deps.Runner,
			Logger:      log,
		},
		sidecar: sidecar.New(log),
	}
}

// Detector matches DSE installs asserted with --dse, and OpsCenter-only
// installs.
func (v *Variant) Detector() variant.Detector {
	detectDSE := variant.DetectLauncher(v, variant.FlavorDSE, launcher)
	return func(dir *variant.InstallDir, opts variant.Options) variant.Detection {
		if d := detectDSE(dir, opts); d.Outcome != variant.NotMatched {
			return d
		}
		if dir.Has(variant.BinDir, opscenterLauncher) {
			return variant.Match(v)
		}
		return variant.NoMatch()
	}
}

func (v *Variant) Name() string { return Name }

func (v *Variant) ConfDir(dir *variant.InstallDir) (string, error) {
	switch {
	case dir.Has(variant.BinDir, launcher):
		return dir.Join(confDir), nil
	case dir.Has(variant.BinDir, opscenterLauncher):
		return dir.Join(filepath.FromSlash(opscenterConfDir)), nil
	default:
		return "", &variant.ConfigurationError{Path: dir.Path(), Reason: "not a DSE or OpsCenter installation"}
	}
}

func (v *Variant) ResolveVersion(ctx context.Context, dir *variant.InstallDir, engine bool) (version.Version, error) {
	return v.resolver.Resolve(ctx, dir.Path(), engine)
}

// Install ensures the DSE archive and, when requested, the OpsCenter archive,
// which is copied into the cluster directory.
func (v *Variant) Install(ctx context.Context, env variant.InstallEnv, versionID string) (string, error) {
	creds, err := v.loadCredentials(env.Options)
	if err != nil {
		return "", err
	}

	g, gctx := errgroup.WithContext(ctx)
	var installDir string
	g.Go(func() error {
		dir, err := env.Repository.Ensure(gctx, repository.Request{
			VersionID:       versionID,
			URLTemplate:     v.deps.Template(Name, ArchiveTemplate),
			Credentials:     creds,
			CredentialsHint: credentialsHint,
			ShowProgress:    env.Options.ShowProgress,
		})
		installDir = dir
		return err
	})
	if env.Options.OpsCenter != "" {
		g.Go(func() error {
			dir, err := v.ensureOpsCenter(gctx, env.Repository, env.Options, creds)
			if err != nil {
				return err
			}
			if _, err := variant.ReplaceDir(dir, opscenterDir(env.ClusterPath)); err != nil {
				return fmt.Errorf("copy opscenter: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return installDir, nil
}

// EnsureOpsCenter caches the OpsCenter archive named by opts.OpsCenter and
// returns its repository directory.
func (v *Variant) EnsureOpsCenter(ctx context.Context, repo variant.Provisioner, opts variant.Options) (string, error) {
	if opts.OpsCenter == "" {
		return "", &variant.ConfigurationError{Reason: "no OpsCenter version given"}
	}
	creds, err := v.loadCredentials(opts)
	if err != nil {
		return "", err
	}
	return v.ensureOpsCenter(ctx, repo, opts, creds)
}

func (v *Variant) ensureOpsCenter(ctx context.Context, repo variant.Provisioner, opts variant.Options, creds *credentials.Credentials) (string, error) {
	return repo.Ensure(ctx, repository.Request{
		VersionID:       OpsCenterPrefix + opts.OpsCenter,
		URLVersion:      opts.OpsCenter,
		URLTemplate:     v.deps.Template("opscenter", OpsCenterTemplate),
		Credentials:     creds,
		CredentialsHint: credentialsHint,
		ShowProgress:    opts.ShowProgress,
	})
}

func (v *Variant) loadCredentials(opts variant.Options) (*credentials.Credentials, error) {
	return credentials.Load(credentials.Source{
		Username: opts.Username,
		Password: opts.Password,
		File:     opts.CredentialsFile,
	}, v.deps.ConfigRoot, v.log)
}

func (v *Variant) NewNode(spec variant.NodeSpec) variant.Node {
	return &Node{
		Packaged: variant.Packaged{
			Spec:      spec,
			Root:      spec.InstallDir.Path(),
			Products:  configProducts,
			Launcher:  launcher,
			EnvScript: "dse-env.sh",
			EnvAnchor: "# This is here so the installer can force set DSE_HOME",
			HomeVar:   "DSE_HOME",
		},
		heap: v.deps.HeapEnv(),
	}
}

func (v *Variant) CanGenerateTokens() bool { return false }

func (v *Variant) StartTimeout() time.Duration { return startTimeout }

// OnCreate rejects AlwaysOn SQL on releases that do not ship it.
func (v *Variant) OnCreate(ctx context.Context, c variant.Cluster) error {
	if !c.Options().EnableAOSS {
		return nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return err
	}
	ok, err := ver.Satisfies(aossMinimum)
	if err != nil {
		return err
	}
	if !ok {
		return &variant.ConfigurationError{Path: c.InstallDir().Path(), Reason: fmt.Sprintf("cannot enable AOSS in DSE clusters before 6.0 (found %s)", ver)}
	}
	return nil
}

// OnStart launches OpsCenter when the cluster carries one and waits for
// AlwaysOn SQL when it is enabled.
func (v *Variant) OnStart(ctx context.Context, c variant.Cluster) error {
	if err := v.startOpsCenter(c); err != nil {
		return err
	}
	if c.Options().EnableAOSS {
		return c.WaitForAnyLog(ctx, aossMarker, aossTimeout)
	}
	return nil
}

func (v *Variant) OnStop(_ context.Context, c variant.Cluster) error {
	return v.stopOpsCenter(c)
}

func (v *Variant) OnRemove(context.Context, variant.Cluster) error { return nil }

// RemoveGently is set with AlwaysOn SQL; killing nodes would leak the
// spark workers it spawns.
func (v *Variant) RemoveGently(c variant.Cluster) bool {
	return c.Options().EnableAOSS
}
