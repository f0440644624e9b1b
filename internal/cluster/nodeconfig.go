package cluster

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const engineConfigFile = "cassandra.yaml"

// writeNodeConfig points the node's private engine config at its own
// directories and address. Installs without an engine config are left alone.
func writeNodeConfig(confDir, clusterName, nodePath string, n NodeState, dataDirs int) error {
	path := filepath.Join(confDir, engineConfigFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read node config: %w", err)
	}
	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if dataDirs < 1 {
		dataDirs = 1
	}
	dataFileDirs := make([]string, 0, dataDirs)
	for i := 0; i < dataDirs; i++ {
		dataFileDirs = append(dataFileDirs, filepath.Join(nodePath, "data"+strconv.Itoa(i)))
	}
	doc["cluster_name"] = clusterName
	doc["listen_address"] = n.Address
	doc["rpc_address"] = n.Address
	doc["native_transport_port"] = n.NativePort
	doc["commitlog_directory"] = filepath.Join(nodePath, "commitlogs")
	doc["saved_caches_directory"] = filepath.Join(nodePath, "saved_caches")
	doc["data_file_directories"] = dataFileDirs

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode node config: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}
