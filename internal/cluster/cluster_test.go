package cluster

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"ccm/internal/repository"
	"ccm/internal/variant"
	"ccm/internal/variant/cassandra"
	"ccm/internal/variants"
	"ccm/internal/version"
)

// fakeLauncher records its pid where -p points, logs readiness and lingers.
const fakeLauncher = `#!/bin/sh
while [ $# -gt 0 ]; do
  if [ "$1" = "-p" ]; then echo $$ > "$2"; shift; fi
  shift
done
mkdir -p "$CASSANDRA_LOG_DIR"
echo "INFO  Starting listening for CQL clients on /127.0.0.1:9042" >> "$CASSANDRA_LOG_DIR/system.log"
exec sleep 30
`

func writeFile(t *testing.T, path, body string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), mode); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func plainInstall(t *testing.T, root string) string {
	t.Helper()
	writeFile(t, filepath.Join(root, "bin", "cassandra"), fakeLauncher, 0o755)
	writeFile(t, filepath.Join(root, "conf", "cassandra.yaml"), "cluster_name: Test Cluster\nnum_tokens: 16\n", 0o644)
	writeFile(t, filepath.Join(root, version.MarkerFile), "4.1.5\n", 0o644)
	return root
}

func newManager(t *testing.T, repo variant.Provisioner) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), variants.NewRegistry(variant.Deps{}), repo, nil)
}

func TestCreateFromInstallDir(t *testing.T) {
	install := plainInstall(t, t.TempDir())
	m := newManager(t, nil)

	c, err := m.Create(context.Background(), Params{Name: "test", InstallDir: install, Nodes: 2, Options: variant.Options{DataDirs: 2}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Variant().Name() != cassandra.Name {
		t.Fatalf("variant = %s", c.Variant().Name())
	}
	nodes := c.Nodes()
	if len(nodes) != 2 || nodes[1].Address != "127.0.0.2" || nodes[1].JMXPort != 7200 {
		t.Fatalf("unexpected nodes %+v", nodes)
	}
	for _, dir := range []string{"commitlogs", "saved_caches", "logs", "bin", "conf", "data0", "data1"} {
		if _, err := os.Stat(filepath.Join(c.Path(), "node2", dir)); err != nil {
			t.Fatalf("missing node dir %s: %v", dir, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(c.Path(), "node2", "conf", "cassandra.yaml"))
	if err != nil {
		t.Fatalf("read node config: %v", err)
	}
	var conf struct {
		ClusterName string   `yaml:"cluster_name"`
		Listen      string   `yaml:"listen_address"`
		NumTokens   int      `yaml:"num_tokens"`
		DataDirs    []string `yaml:"data_file_directories"`
	}
	if err := yaml.Unmarshal(data, &conf); err != nil {
		t.Fatalf("parse node config: %v", err)
	}
	if conf.ClusterName != "test" || conf.Listen != "127.0.0.2" || conf.NumTokens != 16 || len(conf.DataDirs) != 2 {
		t.Fatalf("unexpected node config %+v", conf)
	}

	loaded, err := m.Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.InstallDir().Path() != c.InstallDir().Path() || len(loaded.Nodes()) != 2 || loaded.Options().DataDirs != 2 {
		t.Fatalf("loaded cluster differs: %+v", loaded.State())
	}
	names, err := m.List()
	if err != nil || strings.Join(names, ",") != "test" {
		t.Fatalf("List = %v, %v", names, err)
	}
}

func TestCreateConflictLeavesNothing(t *testing.T) {
	install := t.TempDir()
	writeFile(t, filepath.Join(install, "bin", "hcd"), "#!/bin/sh\n", 0o755)
	m := newManager(t, nil)

	_, err := m.Create(context.Background(), Params{Name: "bad", InstallDir: install, Options: variant.Options{Flavor: variant.FlavorDSE}})
	var cfgErr *variant.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if _, err := os.Stat(m.Path("bad")); !os.IsNotExist(err) {
		t.Fatal("failed create must remove the cluster dir")
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	m := newManager(t, nil)
	install := plainInstall(t, t.TempDir())
	cases := []Params{
		{Name: "", InstallDir: install},
		{Name: "repository", InstallDir: install},
		{Name: "a/b", InstallDir: install},
		{Name: "x"},
		{Name: "x", InstallDir: install, VersionID: "4.1.5"},
	}
	for _, p := range cases {
		if _, err := m.Create(context.Background(), p); err == nil {
			t.Fatalf("expected error for %+v", p)
		}
	}
	if _, err := m.Create(context.Background(), Params{Name: "dup", InstallDir: install}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Create(context.Background(), Params{Name: "dup", InstallDir: install}); err == nil {
		t.Fatal("expected duplicate cluster error")
	}
	if _, err := os.Stat(filepath.Join(m.Path("dup"), StateFile)); err != nil {
		t.Fatal("duplicate create must not remove the existing cluster")
	}
}

type installingRepo struct {
	t    *testing.T
	root string
	reqs []repository.Request
}

func (r *installingRepo) Ensure(_ context.Context, req repository.Request) (string, error) {
	r.reqs = append(r.reqs, req)
	return plainInstall(r.t, filepath.Join(r.root, req.VersionID)), nil
}

func TestCreateFromVersion(t *testing.T) {
	repo := &installingRepo{t: t, root: t.TempDir()}
	m := newManager(t, repo)
	c, err := m.Create(context.Background(), Params{Name: "v", VersionID: "4.1.5", Nodes: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(repo.reqs) != 1 || repo.reqs[0].URLTemplate != cassandra.ArchiveTemplate {
		t.Fatalf("unexpected requests %+v", repo.reqs)
	}
	if c.State().VersionID != "4.1.5" || c.InstallDir().Path() != filepath.Join(repo.root, "4.1.5") {
		t.Fatalf("unexpected state %+v", c.State())
	}
}

func TestAddNodeDuplicate(t *testing.T) {
	m := newManager(t, nil)
	c, err := m.Create(context.Background(), Params{Name: "c", InstallDir: plainInstall(t, t.TempDir()), Nodes: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := c.AddNode(context.Background(), "node1"); err == nil {
		t.Fatal("expected duplicate node error")
	}
	if err := c.AddNode(context.Background(), "extra"); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if got := c.Nodes()[1]; got.Name != "extra" || got.Address != "127.0.0.2" {
		t.Fatalf("unexpected node %+v", got)
	}
}

type countingVariant struct {
	*cassandra.Variant
	calls int
}

func (v *countingVariant) ResolveVersion(ctx context.Context, dir *variant.InstallDir, engine bool) (version.Version, error) {
	v.calls++
	return v.Variant.ResolveVersion(ctx, dir, engine)
}

func TestVersionIsMemoized(t *testing.T) {
	counting := &countingVariant{Variant: cassandra.New(variant.Deps{})}
	reg := variant.NewRegistry()
	reg.Register(counting, func(*variant.InstallDir, variant.Options) variant.Detection { return variant.Match(counting) })
	m := NewManager(t.TempDir(), reg, nil, nil)

	c, err := m.Create(context.Background(), Params{Name: "memo", InstallDir: plainInstall(t, t.TempDir())})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 3; i++ {
		v, err := c.Version(context.Background())
		if err != nil || v.String() != "4.1.5" {
			t.Fatalf("Version = %v, %v", v, err)
		}
	}
	if _, err := c.EngineVersion(context.Background()); err != nil {
		t.Fatalf("EngineVersion: %v", err)
	}
	if counting.calls != 2 {
		t.Fatalf("expected one resolution per kind, got %d", counting.calls)
	}
}

func TestCurrent(t *testing.T) {
	m := newManager(t, nil)
	if cur, err := m.Current(); err != nil || cur != "" {
		t.Fatalf("Current = %q, %v", cur, err)
	}
	if err := m.SetCurrent("test"); err != nil {
		t.Fatalf("SetCurrent: %v", err)
	}
	if cur, _ := m.Current(); cur != "test" {
		t.Fatalf("Current = %q", cur)
	}
	if err := m.SetCurrent(""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cur, _ := m.Current(); cur != "" {
		t.Fatalf("Current after clear = %q", cur)
	}
}

func TestLifecycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	install := plainInstall(t, t.TempDir())
	m := newManager(t, nil)
	ctx := context.Background()

	c, err := m.Create(ctx, Params{Name: "life", InstallDir: install, Nodes: 2})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.SetCurrent("life"); err != nil {
		t.Fatalf("SetCurrent: %v", err)
	}
	var mu sync.Mutex
	phases := map[string][]Phase{}
	report := func(node string, p Phase) {
		mu.Lock()
		defer mu.Unlock()
		phases[node] = append(phases[node], p)
	}
	if err := c.Start(ctx, StartOptions{Report: report}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, node := range []string{"node1", "node2"} {
		got := phases[node]
		if len(got) != 3 || got[0] != PhaseLaunching || got[1] != PhaseWaiting || got[2] != PhaseReady {
			t.Fatalf("unexpected phases for %s: %v", node, got)
		}
	}
	phases = map[string][]Phase{}
	if err := c.Start(ctx, StartOptions{Report: report}); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if got := phases["node1"]; len(got) != 1 || got[0] != PhaseRunning {
		t.Fatalf("expected running node to be reported as running, got %v", got)
	}
	for _, st := range c.Status() {
		if !st.Running {
			t.Fatalf("node %s not running after start", st.Name)
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.WaitForAnyLog(waitCtx, ReadyMarker, time.Second); err != nil {
		t.Fatalf("WaitForAnyLog after start: %v", err)
	}

	if err := c.Stop(ctx, true); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	for _, st := range c.Status() {
		if st.Running {
			t.Fatalf("node %s still running after stop", st.Name)
		}
	}
	if err := c.Stop(ctx, false); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	if err := c.Remove(ctx); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(c.Path()); !os.IsNotExist(err) {
		t.Fatal("cluster dir should be gone")
	}
	if _, err := os.Stat(filepath.Join(install, "bin", "cassandra")); err != nil {
		t.Fatal("install dir must survive cluster removal")
	}
	if cur, _ := m.Current(); cur != "" {
		t.Fatalf("current cluster not cleared: %q", cur)
	}
}

func TestStartWithoutNodes(t *testing.T) {
	m := newManager(t, nil)
	c, err := m.Create(context.Background(), Params{Name: "empty", InstallDir: plainInstall(t, t.TempDir())})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := c.Start(context.Background(), StartOptions{}); err == nil {
		t.Fatal("expected error starting an empty cluster")
	}
}
