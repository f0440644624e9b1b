package variant

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// NodeDirectories are created in every node regardless of flavor.
var NodeDirectories = []string{"commitlogs", "saved_caches", "logs", "bin"}

// Packaged is the node layout shared by distributions that bundle several
// sub-products under resources/<product>/conf with the storage engine in
// resources/cassandra.
type Packaged struct {
	Spec NodeSpec
	// Root is the product root inside the install directory.
	Root string
	// Products are the sub-products whose config directories are copied.
	Products []string
	// Launcher is the script in <Root>/bin that starts the node.
	Launcher string
	// EnvScript is patched with HomeVar after EnvAnchor.
	EnvScript string
	EnvAnchor string
	HomeVar   string
}

func (p Packaged) node(elem ...string) string {
	return filepath.Join(append([]string{p.Spec.Path}, elem...)...)
}

func (p Packaged) root(elem ...string) string {
	return filepath.Join(append([]string{p.Root}, elem...)...)
}

// RequiredDirectories lists the node's fixed directories plus one data
// directory per configured index.
func (p Packaged) RequiredDirectories() []string {
	dirs := make([]string, 0, len(NodeDirectories)+1+p.Spec.Options.DataDirCount())
	for _, d := range NodeDirectories {
		dirs = append(dirs, p.node(d))
	}
	dirs = append(dirs, p.node("resources"))
	for i := 0; i < p.Spec.Options.DataDirCount(); i++ {
		dirs = append(dirs, p.node("data"+strconv.Itoa(i)))
	}
	return dirs
}

// CopyConfigFiles replaces each bundled product's config copy. Products the
// install does not ship are skipped.
func (p Packaged) CopyConfigFiles() error {
	for _, product := range p.Products {
		if _, err := ReplaceDir(p.root("resources", product, "conf"), p.node("resources", product, "conf")); err != nil {
			return fmt.Errorf("copy %s config: %w", product, err)
		}
	}
	return nil
}

// ImportBinFiles copies the install's bin directory and the engine's bin
// and tools directories into the node.
func (p Packaged) ImportBinFiles() error {
	if err := CopyTree(p.Spec.InstallDir.Join(BinDir), p.node(BinDir)); err != nil {
		return fmt.Errorf("import bin: %w", err)
	}
	engineBin := p.node("resources", "cassandra", "bin")
	if err := os.RemoveAll(engineBin); err != nil {
		return err
	}
	if err := os.MkdirAll(engineBin, 0o755); err != nil {
		return err
	}
	if err := CopyTree(p.root("resources", "cassandra", "bin"), engineBin); err != nil {
		return fmt.Errorf("import engine bin: %w", err)
	}
	if _, err := ReplaceDir(p.root("resources", "cassandra", "tools"), p.node("resources", "cassandra", "tools")); err != nil {
		return fmt.Errorf("import engine tools: %w", err)
	}
	return nil
}

// PostImportFixups exports the product home from the node's env script. A
// missing script is left alone.
func (p Packaged) PostImportFixups() error {
	script := p.node(BinDir, p.EnvScript)
	if _, err := os.Stat(script); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	_, err := PatchLauncherScript(script, p.EnvAnchor, p.HomeVar, p.Root)
	return err
}

// LaunchBinary copies the product launcher into the node's bin directory and
// returns the copy.
func (p Packaged) LaunchBinary() (string, error) {
	dst := p.node(BinDir, p.Launcher)
	if err := CopyFile(p.root(BinDir, p.Launcher), dst); err != nil {
		return "", fmt.Errorf("copy launcher: %w", err)
	}
	return dst, nil
}

// LaunchArgs starts the storage engine service of the distribution.
func (p Packaged) LaunchArgs() []string {
	return []string{"cassandra"}
}

func (p Packaged) ConfDir() string {
	return p.node("resources", "cassandra", "conf")
}

func (p Packaged) LogFile() string {
	return p.node("logs", "system.log")
}

// EngineEnv returns the engine variables every packaged node sets.
func (p Packaged) EngineEnv() map[string]string {
	return map[string]string{
		"CASSANDRA_HOME":    p.root("resources", "cassandra"),
		"CASSANDRA_CONF":    p.node("resources", "cassandra", "conf"),
		"CASSANDRA_LOG_DIR": p.node("logs"),
	}
}
