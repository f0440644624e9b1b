package dse

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"ccm/internal/variant"
)

// configProducts are the bundled sub-products whose conf directories nodes
// receive private copies of.
var configProducts = []string{
	"dse", "cassandra", "hadoop", "hadoop2-client", "sqoop", "hive",
	"tomcat", "spark", "shark", "mahout", "pig", "solr", "graph",
}

const (
	aossThriftBase = 10000
	aossWebUIBase  = 9077
)

// Node is a DSE node.
type Node struct {
	variant.Packaged
	heap map[string]string
}

func (n *Node) Environment() map[string]string {
	return variant.MergeMaps(n.heap, n.EngineEnv(), map[string]string{
		"DSE_HOME":     n.Root,
		"DSE_CONF":     filepath.Join(n.Spec.Path, "resources", "dse", "conf"),
		"DSE_LOG_ROOT": filepath.Join(n.Spec.Path, "logs", "dse"),
	})
}

// CopyConfigFiles copies the bundled configs and enables AlwaysOn SQL in the
// node's dse.yaml when requested.
func (n *Node) CopyConfigFiles() error {
	if err := n.Packaged.CopyConfigFiles(); err != nil {
		return err
	}
	if !n.Spec.Options.EnableAOSS {
		return nil
	}
	return enableAOSS(filepath.Join(n.Spec.Path, "resources", "dse", "conf", "dse.yaml"), n.Spec.Index)
}

// enableAOSS turns on alwayson_sql_options with ports offset by the node
// index so nodes on one host do not collide.
func enableAOSS(path string, index int) error {
	doc := map[string]any{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read dse.yaml: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse dse.yaml: %w", err)
		}
	}

	opts, _ := doc["alwayson_sql_options"].(map[string]any)
	if opts == nil {
		opts = map[string]any{}
	}
	opts["enabled"] = true
	opts["thrift_port"] = aossThriftBase + index
	opts["web_ui_port"] = aossWebUIBase + index
	doc["alwayson_sql_options"] = opts

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode dse.yaml: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
