package cluster

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"ccm/internal/variant"
)

// StateFile holds a cluster's persisted description inside its directory.
const StateFile = "cluster.yaml"

// State is the persisted description of a cluster.
type State struct {
	Name       string          `yaml:"name"`
	Variant    string          `yaml:"variant"`
	InstallDir string          `yaml:"install_dir"`
	VersionID  string          `yaml:"version,omitempty"`
	Options    variant.Options `yaml:"options"`
	Nodes      []NodeState     `yaml:"nodes"`
}

// NodeState is the persisted description of a node.
type NodeState struct {
	Name       string `yaml:"name"`
	Index      int    `yaml:"index"`
	Address    string `yaml:"address"`
	JMXPort    int    `yaml:"jmx_port"`
	ThriftPort int    `yaml:"thrift_port"`
	NativePort int    `yaml:"native_port"`
}

func loadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, fmt.Errorf("cluster state %s: %w", path, err)
		}
		return State{}, fmt.Errorf("read cluster state: %w", err)
	}
	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("parse cluster state %s: %w", path, err)
	}
	return st, nil
}

// saveState writes through a temp file so a crash never leaves a truncated
// state file behind.
func saveState(path string, st State) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode cluster state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+StateFile+"-*")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cluster state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
