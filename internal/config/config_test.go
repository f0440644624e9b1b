package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Version != 1 {
		t.Fatalf("expected version 1, got %d", cfg.Version)
	}
	if cfg.Heap.MaxHeapSize != "500M" || cfg.Heap.HeapNewSize != "50M" || cfg.Heap.MaxDirectMemory != "2048M" {
		t.Fatalf("unexpected heap defaults: %+v", cfg.Heap)
	}
	if len(cfg.Repositories) != 0 {
		t.Fatalf("expected no repository overrides, got %v", cfg.Repositories)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	body := "repositories:\n  dse: http://mirror.local/dse-%s.tar.gz\nheap:\n  max_heap_size: 1G\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Heap.MaxHeapSize != "1G" {
		t.Fatalf("expected 1G, got %q", cfg.Heap.MaxHeapSize)
	}
	if cfg.Heap.HeapNewSize != "50M" {
		t.Fatalf("expected default newsize, got %q", cfg.Heap.HeapNewSize)
	}
	tmpl, ok := cfg.Template(ProductDSE)
	if !ok || tmpl != "http://mirror.local/dse-%s.tar.gz" {
		t.Fatalf("unexpected dse template %q (ok=%v)", tmpl, ok)
	}
	if _, ok := cfg.Template(ProductHCD); ok {
		t.Fatal("expected no hcd override")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("heap: [unterminated"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected unmarshal error")
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	cfg := Default()
	cfg.RepositoryDir = "/var/cache/ccm"
	cfg.Repositories = map[string]string{ProductHCD: "http://mirror.local/hcd-%s.tar.gz"}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.RepositoryDir != cfg.RepositoryDir {
		t.Fatalf("expected repository dir %q, got %q", cfg.RepositoryDir, loaded.RepositoryDir)
	}
	if loaded.Repositories[ProductHCD] != cfg.Repositories[ProductHCD] {
		t.Fatalf("expected hcd override to survive, got %v", loaded.Repositories)
	}
}

func TestValidateRepositories(t *testing.T) {
	cfg := Default()
	cfg.Repositories = map[string]string{
		ProductDSE:       "http://mirror.local/dse.tar.gz",
		ProductCassandra: "http://mirror.local/%s/apache-cassandra-%s-bin.tar.gz",
		ProductOpsCenter: "http://mirror.local/opscenter-%d.tar.gz",
		"spark":          "http://mirror.local/spark-%s.tar.gz",
	}

	results := cfg.Validate()
	var errs, warns []string
	for _, r := range results {
		switch r.Level {
		case "error":
			errs = append(errs, r.Message)
		case "warning":
			warns = append(warns, r.Message)
		}
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	if !strings.Contains(errs[0], "repositories.dse") {
		t.Fatalf("expected dse error first, got %v", errs)
	}
	if !strings.Contains(errs[1], "repositories.opscenter") {
		t.Fatalf("expected opscenter error, got %v", errs)
	}
	if len(warns) != 1 || !strings.Contains(warns[0], "spark") {
		t.Fatalf("expected spark warning, got %v", warns)
	}

	err := Err(results)
	if err == nil || !strings.Contains(err.Error(), "no %s placeholder") {
		t.Fatalf("expected folded error, got %v", err)
	}
}

func TestValidateHeap(t *testing.T) {
	cfg := Default()
	if results := cfg.Validate(); len(results) != 0 {
		t.Fatalf("expected defaults to validate, got %v", results)
	}

	cfg.Heap.HeapNewSize = "fifty megs"
	results := cfg.Validate()
	if len(results) != 1 || results[0].Level != "error" || !strings.Contains(results[0].Message, "heap_newsize") {
		t.Fatalf("unexpected results: %v", results)
	}
}
