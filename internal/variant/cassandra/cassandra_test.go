package cassandra

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ccm/internal/repository"
	"ccm/internal/variant"
)

func plainInstall(t *testing.T) *variant.InstallDir {
	t.Helper()
	root := t.TempDir()
	for path, body := range map[string]string{
		"bin/cassandra":                         "#!/bin/sh\n",
		"conf/cassandra.yaml":                   "cluster_name: test\n",
		"lib/apache-cassandra-4.1.5.jar":        "",
		"lib/apache-cassandra-thrift-4.1.5.jar": "",
	} {
		full := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(body), 0o755); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	dir, err := variant.NewInstallDir(root)
	if err != nil {
		t.Fatalf("NewInstallDir: %v", err)
	}
	return dir
}

func TestDetector(t *testing.T) {
	v := New(variant.Deps{})
	dir := plainInstall(t)
	if d := v.Detector()(dir, variant.Options{}); d.Outcome != variant.Matched {
		t.Fatalf("expected match, got %v", d.Outcome)
	}
	if d := v.Detector()(dir, variant.Options{Flavor: variant.FlavorDSE}); d.Outcome != variant.NotMatched {
		t.Fatalf("asserted flavor must not match, got %v", d.Outcome)
	}
}

func TestResolveVersionFromJar(t *testing.T) {
	got, err := New(variant.Deps{}).ResolveVersion(context.Background(), plainInstall(t), true)
	if err != nil {
		t.Fatalf("ResolveVersion: %v", err)
	}
	if got.String() != "4.1.5" {
		t.Fatalf("version = %s", got)
	}
}

type recordingProvisioner struct{ req repository.Request }

func (r *recordingProvisioner) Ensure(_ context.Context, req repository.Request) (string, error) {
	r.req = req
	return "/cache/" + req.VersionID, nil
}

func TestInstallUsesTemplateOverride(t *testing.T) {
	prov := &recordingProvisioner{}
	v := New(variant.Deps{Templates: map[string]string{"cassandra": "https://mirror.example/%s/c-%s.tgz"}})
	if _, err := v.Install(context.Background(), variant.InstallEnv{Repository: prov}, "4.1.5"); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if prov.req.URLTemplate != "https://mirror.example/%s/c-%s.tgz" || prov.req.VersionID != "4.1.5" {
		t.Fatalf("unexpected request %+v", prov.req)
	}
}

func TestNodeLayout(t *testing.T) {
	dir := plainInstall(t)
	nodePath := filepath.Join(t.TempDir(), "node1")
	node := New(variant.Deps{}).NewNode(variant.NodeSpec{Path: nodePath, InstallDir: dir})

	if got := len(node.RequiredDirectories()); got != 6 {
		t.Fatalf("expected 6 directories, got %d", got)
	}
	if err := node.CopyConfigFiles(); err != nil {
		t.Fatalf("CopyConfigFiles: %v", err)
	}
	if err := node.ImportBinFiles(); err != nil {
		t.Fatalf("ImportBinFiles: %v", err)
	}
	if err := node.PostImportFixups(); err != nil {
		t.Fatalf("PostImportFixups: %v", err)
	}
	bin, _ := node.LaunchBinary()
	if _, err := os.Stat(bin); err != nil {
		t.Fatalf("launcher not imported: %v", err)
	}
	if _, err := os.Stat(filepath.Join(node.ConfDir(), "cassandra.yaml")); err != nil {
		t.Fatalf("config not copied: %v", err)
	}
	env := node.Environment()
	if env["CASSANDRA_HOME"] != dir.Path() || env["CASSANDRA_CONF"] != filepath.Join(nodePath, "conf") {
		t.Fatalf("unexpected env %v", env)
	}
}
