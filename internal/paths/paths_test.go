package paths

import (
	"errors"
	"path/filepath"
	"testing"

	"ccm/internal/config"
)

func envOf(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func homeAt(dir string) func() (string, error) {
	return func() (string, error) { return dir, nil }
}

func TestResolveDefaultsToHome(t *testing.T) {
	home := t.TempDir()
	pp, err := resolve("", envOf(nil), homeAt(home))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	root := filepath.Join(home, ".ccm")
	if pp.Root != root {
		t.Fatalf("expected root %s, got %s", root, pp.Root)
	}
	if pp.RepositoryDir != filepath.Join(root, "repository") {
		t.Fatalf("unexpected repository dir %s", pp.RepositoryDir)
	}
	if pp.ConfigFile != filepath.Join(root, "config.yaml") {
		t.Fatalf("unexpected config file %s", pp.ConfigFile)
	}
	if pp.CredentialsFile != filepath.Join(root, ".dse.ini") {
		t.Fatalf("unexpected credentials file %s", pp.CredentialsFile)
	}
	if pp.ClusterDir("test") != filepath.Join(root, "test") {
		t.Fatalf("unexpected cluster dir %s", pp.ClusterDir("test"))
	}
}

func TestResolveFlagBeatsEnv(t *testing.T) {
	flagDir := t.TempDir()
	envDir := t.TempDir()
	pp, err := resolve(flagDir, envOf(map[string]string{EnvConfigDir: envDir}), homeAt("/nowhere"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if pp.Root != flagDir {
		t.Fatalf("expected flag root %s, got %s", flagDir, pp.Root)
	}
}

func TestResolveEnvOverrides(t *testing.T) {
	envDir := t.TempDir()
	repoDir := t.TempDir()
	pp, err := resolve("", envOf(map[string]string{
		EnvConfigDir:     envDir,
		EnvRepositoryDir: repoDir,
	}), func() (string, error) { return "", errors.New("no home") })
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if pp.Root != envDir {
		t.Fatalf("expected env root %s, got %s", envDir, pp.Root)
	}
	if pp.RepositoryDir != repoDir {
		t.Fatalf("expected repository %s, got %s", repoDir, pp.RepositoryDir)
	}
}

func TestResolveHomeError(t *testing.T) {
	_, err := resolve("", envOf(nil), func() (string, error) { return "", errors.New("no home") })
	if err == nil {
		t.Fatal("expected error without home or overrides")
	}
}

func TestApplyConfigEnvWins(t *testing.T) {
	root := t.TempDir()
	pp := newPaths(root)
	pp.RepositoryDir = "/from/env"

	applied := applyConfig(pp, config.Config{RepositoryDir: "cache"}, envOf(map[string]string{EnvRepositoryDir: "/from/env"}))
	if applied.RepositoryDir != "/from/env" {
		t.Fatalf("expected env to win, got %s", applied.RepositoryDir)
	}
}

func TestApplyConfigRelativeAndAbsolute(t *testing.T) {
	root := t.TempDir()

	applied := applyConfig(newPaths(root), config.Config{RepositoryDir: "cache"}, envOf(nil))
	if applied.RepositoryDir != filepath.Join(root, "cache") {
		t.Fatalf("expected relative dir under root, got %s", applied.RepositoryDir)
	}

	abs := t.TempDir()
	applied = applyConfig(newPaths(root), config.Config{RepositoryDir: abs}, envOf(nil))
	if applied.RepositoryDir != abs {
		t.Fatalf("expected %s, got %s", abs, applied.RepositoryDir)
	}

	applied = applyConfig(newPaths(root), config.Config{}, envOf(nil))
	if applied.RepositoryDir != filepath.Join(root, "repository") {
		t.Fatalf("expected default repository dir, got %s", applied.RepositoryDir)
	}
}
