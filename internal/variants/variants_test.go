package variants

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ccm/internal/variant"
)

func install(t *testing.T, launchers ...string) *variant.InstallDir {
	t.Helper()
	root := t.TempDir()
	for _, l := range launchers {
		path := filepath.Join(root, "bin", l)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	dir, err := variant.NewInstallDir(root)
	if err != nil {
		t.Fatalf("NewInstallDir: %v", err)
	}
	return dir
}

func TestNewRegistryResolves(t *testing.T) {
	reg := NewRegistry(variant.Deps{})
	cases := []struct {
		launchers []string
		flavor    variant.Flavor
		want      string
	}{
		{[]string{"dse", "cassandra"}, variant.FlavorDSE, "dse"},
		{[]string{"hcd"}, variant.FlavorHCD, "hcd"},
		{[]string{"cassandra"}, variant.FlavorNone, "cassandra"},
		{[]string{"opscenter"}, variant.FlavorNone, "dse"},
	}
	for _, tc := range cases {
		v, ok, err := reg.Resolve(install(t, tc.launchers...), variant.Options{Flavor: tc.flavor})
		if err != nil || !ok {
			t.Fatalf("%v: Resolve failed: %v %v", tc.launchers, ok, err)
		}
		if v.Name() != tc.want {
			t.Fatalf("%v: got %s, want %s", tc.launchers, v.Name(), tc.want)
		}
	}
}

func TestNewRegistryConflicts(t *testing.T) {
	reg := NewRegistry(variant.Deps{})
	cases := []struct {
		launchers []string
		flavor    variant.Flavor
	}{
		{[]string{"hcd"}, variant.FlavorDSE},
		{[]string{"dse"}, variant.FlavorHCD},
		{[]string{"dse"}, variant.FlavorNone},
		{[]string{"hcd"}, variant.FlavorNone},
	}
	for _, tc := range cases {
		_, ok, err := reg.Resolve(install(t, tc.launchers...), variant.Options{Flavor: tc.flavor})
		var cfgErr *variant.ConfigurationError
		if !errors.As(err, &cfgErr) || ok {
			t.Fatalf("%v asserted %q: expected ConfigurationError, got %v %v", tc.launchers, tc.flavor, ok, err)
		}
	}
}

func TestNewRegistryNoMatch(t *testing.T) {
	_, ok, err := NewRegistry(variant.Deps{}).Resolve(install(t, "nodetool"), variant.Options{})
	if err != nil || ok {
		t.Fatalf("expected no match, got %v %v", ok, err)
	}
}
