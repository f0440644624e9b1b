package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the user configuration file inside the config root.
const FileName = "config.yaml"

// Product keys accepted under repositories.
const (
	ProductDSE       = "dse"
	ProductHCD       = "hcd"
	ProductOpsCenter = "opscenter"
	ProductCassandra = "cassandra"
)

// Config captures user-level settings shared by every cluster.
type Config struct {
	Version int `yaml:"version"`
	// Repositories overrides archive URL templates by product key.
	Repositories  map[string]string `yaml:"repositories,omitempty"`
	RepositoryDir string            `yaml:"repository_dir,omitempty"`
	Heap          HeapConfig        `yaml:"heap"`
}

// HeapConfig describes the JVM sizing handed to node processes.
type HeapConfig struct {
	MaxHeapSize     string `yaml:"max_heap_size"`
	HeapNewSize     string `yaml:"heap_newsize"`
	MaxDirectMemory string `yaml:"max_direct_memory"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Version: 1,
		Heap: HeapConfig{
			MaxHeapSize:     "500M",
			HeapNewSize:     "50M",
			MaxDirectMemory: "2048M",
		},
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills fields the YAML left empty.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if c.Heap.MaxHeapSize == "" {
		c.Heap.MaxHeapSize = defaults.Heap.MaxHeapSize
	}
	if c.Heap.HeapNewSize == "" {
		c.Heap.HeapNewSize = defaults.Heap.HeapNewSize
	}
	if c.Heap.MaxDirectMemory == "" {
		c.Heap.MaxDirectMemory = defaults.Heap.MaxDirectMemory
	}
}

// Template returns the configured archive template for product, if any.
func (c Config) Template(product string) (string, bool) {
	t, ok := c.Repositories[product]
	return t, ok && t != ""
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}

// Save writes the configuration to path, creating parent directories.
func (c Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
