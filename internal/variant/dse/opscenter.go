package dse

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"

	"ccm/internal/sidecar"
	"ccm/internal/variant"
)

func opscenterDir(clusterPath string) string {
	return filepath.Join(clusterPath, "opscenter")
}

// OpsCenterPIDFile is written by OpsCenter itself once it is running.
func OpsCenterPIDFile(clusterPath string) string {
	return filepath.Join(opscenterDir(clusterPath), "twistd.pid")
}

func hasOpsCenter(clusterPath string) bool {
	info, err := os.Stat(opscenterDir(clusterPath))
	return err == nil && info.IsDir()
}

func (v *Variant) startOpsCenter(c variant.Cluster) error {
	if !hasOpsCenter(c.Path()) {
		return nil
	}
	if err := writeOpsCenterClusterConfig(c); err != nil {
		return err
	}
	dir := opscenterDir(c.Path())
	bin := filepath.Join(dir, variant.BinDir, opscenterLauncher)
	if _, err := v.sidecar.Start(bin, nil, sidecar.StartOptions{Dir: dir}); err != nil {
		return fmt.Errorf("start opscenter: %w", err)
	}
	v.log.WithField("cluster", c.Name()).Info("started opscenter")
	return nil
}

func (v *Variant) stopOpsCenter(c variant.Cluster) error {
	if err := v.sidecar.Stop(OpsCenterPIDFile(c.Path())); err != nil {
		return fmt.Errorf("stop opscenter: %w", err)
	}
	return nil
}

// writeOpsCenterClusterConfig points OpsCenter at the first node. It is
// written once, when the clusters directory is first created.
func writeOpsCenterClusterConfig(c variant.Cluster) error {
	confDir := filepath.Join(opscenterDir(c.Path()), "conf", "clusters")
	if _, err := os.Stat(confDir); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(confDir, 0o755); err != nil {
		return fmt.Errorf("create opscenter cluster conf dir: %w", err)
	}
	nodes := c.Nodes()
	if len(nodes) == 0 {
		return nil
	}
	node := nodes[0]

	cfg := ini.Empty()
	jmx, err := cfg.NewSection("jmx")
	if err != nil {
		return err
	}
	if _, err := jmx.NewKey("port", fmt.Sprint(node.JMXPort)); err != nil {
		return err
	}
	cassandra, err := cfg.NewSection("cassandra")
	if err != nil {
		return err
	}
	if _, err := cassandra.NewKey("seed_hosts", node.Address); err != nil {
		return err
	}
	if _, err := cassandra.NewKey("api_port", fmt.Sprint(node.ThriftPort)); err != nil {
		return err
	}
	return cfg.SaveTo(filepath.Join(confDir, c.Name()+".conf"))
}
