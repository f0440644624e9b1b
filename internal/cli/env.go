package cli

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ccm/internal/cluster"
	"ccm/internal/config"
	"ccm/internal/logx"
	"ccm/internal/paths"
	"ccm/internal/repository"
	"ccm/internal/runner"
	"ccm/internal/tui"
	"ccm/internal/variant"
	"ccm/internal/variants"
)

// environment bundles everything a command needs after flag parsing.
type environment struct {
	paths     paths.Paths
	cfg       config.Config
	log       *logrus.Logger
	mode      tui.OutputMode
	repo      *repository.Repository
	registry  *variant.Registry
	manager   *cluster.Manager
	downloads *tui.Downloads
	logFile   io.Closer
}

func setup(cmd *cobra.Command) (*environment, error) {
	pp, err := paths.Resolve(configDir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(pp.ConfigFile)
	if err != nil {
		return nil, err
	}
	results := cfg.Validate()
	if err := config.Err(results); err != nil {
		return nil, err
	}
	pp = paths.ApplyConfig(pp, cfg)
	if err := pp.EnsureRoot(); err != nil {
		return nil, err
	}

	log, logFile, err := logx.NewFile(cmd.ErrOrStderr(), pp.LogsDir, verbose)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		log.Warn(r.Message)
	}

	env := &environment{
		paths:   pp,
		cfg:     cfg,
		log:     log,
		mode:    tui.DetectMode(cmd.OutOrStdout(), noProgress),
		logFile: logFile,
	}

	out := cmd.OutOrStdout()
	opts := []repository.Option{repository.WithLogger(log)}
	if env.mode == tui.ModeTUI {
		env.downloads = tui.NewDownloads(out)
		opts = append(opts, repository.WithProgress(out, env.downloads.Factory))
	} else {
		opts = append(opts, repository.WithProgress(out, tui.PlainFactory))
	}
	env.repo = repository.New(pp.RepositoryDir, opts...)

	env.registry = variants.NewRegistry(variant.Deps{
		Logger: log,
		Runner: runner.Exec{},
		Heap: variant.Heap{
			MaxHeapSize:     cfg.Heap.MaxHeapSize,
			HeapNewSize:     cfg.Heap.HeapNewSize,
			MaxDirectMemory: cfg.Heap.MaxDirectMemory,
		},
		Templates:  cfg.Repositories,
		ConfigRoot: pp.Root,
	})
	env.manager = cluster.NewManager(pp.Root, env.registry, env.repo, log)
	return env, nil
}

// finishProgress stops the download renderer so later output is not
// overdrawn. It is safe to call more than once.
func (e *environment) finishProgress() {
	if e.downloads == nil {
		return
	}
	if err := e.downloads.Close(); err != nil {
		e.log.WithError(err).Debug("close progress renderer")
	}
}

// Close flushes the download renderer and the log file.
func (e *environment) Close() {
	e.finishProgress()
	if e.logFile != nil {
		_ = e.logFile.Close()
		e.logFile = nil
	}
}

// targetCluster loads the cluster named by flag, falling back to the
// current cluster.
func (e *environment) targetCluster(name string) (*cluster.Cluster, error) {
	if name == "" {
		current, err := e.manager.Current()
		if err != nil {
			return nil, fmt.Errorf("read current cluster: %w", err)
		}
		if current == "" {
			return nil, fmt.Errorf("no cluster given and no current cluster set; use --cluster or ccm switch")
		}
		name = current
	}
	return e.manager.Load(name)
}
