package cluster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ccm/internal/logwatch"
	"ccm/internal/sidecar"
	"ccm/internal/variant"
	"ccm/internal/version"
)

const (
	// ReadyMarker is logged by a node once it accepts client connections.
	ReadyMarker = "Starting listening for CQL clients"
	// PIDFileName is written by the node launcher inside the node directory.
	PIDFileName = "cassandra.pid"

	stopTimeout = 60 * time.Second
)

// environ is the inherited environment handed to node processes.
var environ = os.Environ

// Cluster is a loaded cluster. It implements variant.Cluster.
type Cluster struct {
	m       *Manager
	state   State
	install *variant.InstallDir
	variant variant.ClusterVariant
	log     logrus.FieldLogger

	mu       sync.Mutex
	versions map[bool]version.Version
	marks    logwatch.Marks
}

var _ variant.Cluster = (*Cluster)(nil)

func (m *Manager) newCluster(st State, dir *variant.InstallDir, v variant.ClusterVariant) *Cluster {
	return &Cluster{
		m:        m,
		state:    st,
		install:  dir,
		variant:  v,
		log:      m.log.WithField("cluster", st.Name),
		versions: make(map[bool]version.Version),
	}
}

func (c *Cluster) Name() string { return c.state.Name }
func (c *Cluster) Path() string { return c.m.Path(c.state.Name) }
func (c *Cluster) InstallDir() *variant.InstallDir { return c.install }
func (c *Cluster) Options() variant.Options { return c.state.Options }
func (c *Cluster) Variant() variant.ClusterVariant { return c.variant }
func (c *Cluster) Logger() logrus.FieldLogger { return c.log }
func (c *Cluster) State() State { return c.state }

// Nodes returns the network endpoints of every node in creation order.
func (c *Cluster) Nodes() []variant.NodeInfo {
	out := make([]variant.NodeInfo, 0, len(c.state.Nodes))
	for _, n := range c.state.Nodes {
		out = append(out, variant.NodeInfo{
			Name:       n.Name,
			Path:       c.nodePath(n.Name),
			Address:    n.Address,
			JMXPort:    n.JMXPort,
			ThriftPort: n.ThriftPort,
			NativePort: n.NativePort,
		})
	}
	return out
}

// Version returns the product version, resolved once per cluster.
func (c *Cluster) Version(ctx context.Context) (version.Version, error) {
	return c.resolveVersion(ctx, false)
}

// EngineVersion returns the storage engine version, resolved once per
// cluster.
func (c *Cluster) EngineVersion(ctx context.Context) (version.Version, error) {
	return c.resolveVersion(ctx, true)
}

func (c *Cluster) resolveVersion(ctx context.Context, engine bool) (version.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.versions[engine]; ok {
		return v, nil
	}
	v, err := c.variant.ResolveVersion(ctx, c.install, engine)
	if err != nil {
		return version.Version{}, err
	}
	c.versions[engine] = v
	return v, nil
}

func (c *Cluster) save() error {
	return saveState(filepath.Join(c.Path(), StateFile), c.state)
}

func (c *Cluster) nodePath(name string) string {
	return filepath.Join(c.Path(), name)
}

func (c *Cluster) nodeVariant(n NodeState) variant.Node {
	return c.variant.NewNode(variant.NodeSpec{
		Name:       n.Name,
		Index:      n.Index,
		Path:       c.nodePath(n.Name),
		InstallDir: c.install,
		Options:    c.state.Options,
	})
}

// AddNode lays out a new node: directories, private config, binaries and
// launcher fixups.
func (c *Cluster) AddNode(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	index := 1
	for _, n := range c.state.Nodes {
		if n.Name == name {
			return fmt.Errorf("node %s already exists in cluster %s", name, c.Name())
		}
		if n.Index >= index {
			index = n.Index + 1
		}
	}
	st := NodeState{
		Name:       name,
		Index:      index,
		Address:    "127.0.0." + strconv.Itoa(index),
		JMXPort:    7000 + index*100,
		ThriftPort: 9160,
		NativePort: 9042,
	}
	node := c.nodeVariant(st)

	g, _ := errgroup.WithContext(ctx)
	for _, dir := range node.RequiredDirectories() {
		g.Go(func() error { return os.MkdirAll(dir, 0o755) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("create node directories: %w", err)
	}

	g, _ = errgroup.WithContext(ctx)
	g.Go(node.CopyConfigFiles)
	g.Go(node.ImportBinFiles)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("prepare node %s: %w", name, err)
	}
	if err := node.PostImportFixups(); err != nil {
		return fmt.Errorf("patch node %s: %w", name, err)
	}
	if err := writeNodeConfig(node.ConfDir(), c.Name(), c.nodePath(name), st, c.state.Options.DataDirCount()); err != nil {
		return err
	}

	c.state.Nodes = append(c.state.Nodes, st)
	if err := c.save(); err != nil {
		return err
	}
	c.log.WithField("node", name).Info("added node")
	return nil
}

// StartOptions adjust Start.
type StartOptions struct {
	// NoWait skips waiting for node readiness.
	NoWait bool
	// Report receives per-node phase changes. It may be called from
	// several goroutines at once.
	Report func(node string, phase Phase)
}

// Phase names a step of a node start.
type Phase string

const (
	PhaseLaunching Phase = "launching"
	PhaseWaiting   Phase = "waiting"
	PhaseReady     Phase = "ready"
	PhaseRunning   Phase = "running"
	PhaseFailed    Phase = "error"
)

func (o StartOptions) report(node string, phase Phase) {
	if o.Report != nil {
		o.Report(node, phase)
	}
}

// Start launches every node that is not already running, waits for them to
// accept clients unless told otherwise, and runs the variant's start hook.
func (c *Cluster) Start(ctx context.Context, opts StartOptions) error {
	if len(c.state.Nodes) == 0 {
		return fmt.Errorf("cluster %s has no nodes", c.Name())
	}
	marks := logwatch.Marks{}
	nodes := make(map[string]variant.Node, len(c.state.Nodes))
	for _, n := range c.state.Nodes {
		node := c.nodeVariant(n)
		nodes[n.Name] = node
		marks[node.LogFile()] = logwatch.Mark(node.LogFile())
	}
	c.mu.Lock()
	c.marks = marks
	c.mu.Unlock()

	var started []NodeState
	for _, n := range c.state.Nodes {
		pidfile := filepath.Join(c.nodePath(n.Name), PIDFileName)
		if sidecar.Running(pidfile) {
			c.log.WithField("node", n.Name).Debug("node already running")
			opts.report(n.Name, PhaseRunning)
			continue
		}
		opts.report(n.Name, PhaseLaunching)
		if err := c.launch(n, nodes[n.Name], pidfile); err != nil {
			opts.report(n.Name, PhaseFailed)
			return err
		}
		started = append(started, n)
	}

	if !opts.NoWait && len(started) > 0 {
		timeout := c.variant.StartTimeout()
		g, gctx := errgroup.WithContext(ctx)
		for _, n := range started {
			logFile := nodes[n.Name].LogFile()
			opts.report(n.Name, PhaseWaiting)
			g.Go(func() error {
				if _, err := logwatch.WaitForAny(gctx, logwatch.Marks{logFile: marks[logFile]}, ReadyMarker, timeout); err != nil {
					opts.report(n.Name, PhaseFailed)
					return fmt.Errorf("node %s: %w", n.Name, err)
				}
				opts.report(n.Name, PhaseReady)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	} else {
		for _, n := range started {
			opts.report(n.Name, PhaseRunning)
		}
	}
	return c.variant.OnStart(ctx, c)
}

func (c *Cluster) launch(n NodeState, node variant.Node, pidfile string) error {
	bin, err := node.LaunchBinary()
	if err != nil {
		return fmt.Errorf("node %s: %w", n.Name, err)
	}
	args := append(append([]string(nil), node.LaunchArgs()...), "-p", pidfile)
	env := variant.MergeEnv(environ(), node.Environment())
	_, err = c.m.sidecar.Start(bin, args, sidecar.StartOptions{
		Dir:     c.nodePath(n.Name),
		Env:     env,
		LogFile: filepath.Join(c.nodePath(n.Name), "logs", "startup.log"),
	})
	if err != nil {
		return fmt.Errorf("node %s: %w", n.Name, err)
	}
	c.log.WithField("node", n.Name).Info("launched node")
	return nil
}

// WaitForAnyLog waits for marker in any node log written since the last
// Start. Without a prior Start the logs are marked now.
func (c *Cluster) WaitForAnyLog(ctx context.Context, marker string, timeout time.Duration) error {
	c.mu.Lock()
	marks := c.marks
	c.mu.Unlock()
	if len(marks) == 0 {
		files := make([]string, 0, len(c.state.Nodes))
		for _, n := range c.state.Nodes {
			files = append(files, c.nodeVariant(n).LogFile())
		}
		marks = logwatch.MarkAll(files...)
	}
	_, err := logwatch.WaitForAny(ctx, marks, marker, timeout)
	return err
}

// Stop signals every node and runs the variant's stop hook. Gentle stops
// use SIGTERM and wait for the processes to exit.
func (c *Cluster) Stop(ctx context.Context, gently bool) error {
	sig := syscall.SIGKILL
	if gently {
		sig = syscall.SIGTERM
	}
	var errs []error
	for _, n := range c.state.Nodes {
		pidfile := filepath.Join(c.nodePath(n.Name), PIDFileName)
		pid, _ := sidecar.ReadPID(pidfile)
		if err := c.m.sidecar.Signal(pidfile, sig); err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", n.Name, err))
			continue
		}
		if gently && pid > 0 {
			if err := sidecar.WaitExit(ctx, pid, stopTimeout); err != nil {
				errs = append(errs, fmt.Errorf("node %s: %w", n.Name, err))
			}
		}
	}
	if err := c.variant.OnStop(ctx, c); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Remove stops the cluster, runs the variant's remove hook and deletes the
// cluster directory. Cached installs are left alone.
func (c *Cluster) Remove(ctx context.Context) error {
	if err := c.Stop(ctx, c.variant.RemoveGently(c)); err != nil {
		return err
	}
	if err := c.variant.OnRemove(ctx, c); err != nil {
		return err
	}
	if err := os.RemoveAll(c.Path()); err != nil {
		return fmt.Errorf("remove cluster dir: %w", err)
	}
	if current, err := c.m.Current(); err == nil && current == c.Name() {
		return c.m.SetCurrent("")
	}
	return nil
}

// NodeStatus reports whether a node process is alive.
type NodeStatus struct {
	Name    string
	Address string
	Running bool
}

// Status reports every node's liveness.
func (c *Cluster) Status() []NodeStatus {
	out := make([]NodeStatus, 0, len(c.state.Nodes))
	for _, n := range c.state.Nodes {
		out = append(out, NodeStatus{
			Name:    n.Name,
			Address: n.Address,
			Running: sidecar.Running(filepath.Join(c.nodePath(n.Name), PIDFileName)),
		})
	}
	return out
}
