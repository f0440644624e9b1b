package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ccm/internal/cluster"
	"ccm/internal/variant"
)

type createOptions struct {
	versionID  string
	installDir string
	flavor     flavorFlags
	creds      credentialFlags
	opscenter  string
	nodes      int
	dataDirs   int
	enableAOSS bool
	noSwitch   bool
}

func newCreateCmd() *cobra.Command {
	opts := &createOptions{}
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a cluster from a version or an existing installation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, args[0], opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.versionID, "version", "v", "", "Version to download and cache")
	fs.StringVar(&opts.installDir, "install-dir", "", "Existing installation directory")
	fs.StringVarP(&opts.opscenter, "opscenter", "o", "", "OpsCenter version to install alongside DSE")
	fs.IntVarP(&opts.nodes, "nodes", "n", 0, "Number of nodes to add")
	fs.IntVar(&opts.dataDirs, "data-dirs", 1, "Number of data directories per node")
	fs.BoolVar(&opts.enableAOSS, "enable-aoss", false, "Enable AlwaysOn SQL (DSE 6.0 and later)")
	fs.BoolVar(&opts.noSwitch, "no-switch", false, "Do not make the new cluster current")
	opts.flavor.register(cmd)
	opts.creds.register(fs)
	cmd.MarkFlagsMutuallyExclusive("version", "install-dir")
	cmd.MarkFlagsOneRequired("version", "install-dir")

	return cmd
}

func runCreate(cmd *cobra.Command, name string, opts *createOptions) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	vopts := variant.Options{
		Flavor:       opts.flavor.flavor(),
		OpsCenter:    opts.opscenter,
		DataDirs:     opts.dataDirs,
		EnableAOSS:   opts.enableAOSS,
		ShowProgress: !noProgress,
	}
	opts.creds.apply(&vopts)

	c, err := env.manager.Create(cmd.Context(), cluster.Params{
		Name:       name,
		InstallDir: opts.installDir,
		VersionID:  opts.versionID,
		Options:    vopts,
		Nodes:      opts.nodes,
	})
	env.finishProgress()
	if err != nil {
		return err
	}

	if !opts.noSwitch {
		if err := env.manager.SetCurrent(name); err != nil {
			return fmt.Errorf("set current cluster: %w", err)
		}
	}

	st := c.State()
	fmt.Fprintf(cmd.OutOrStdout(), "Created cluster %s (%s, %d nodes) from %s\n",
		st.Name, st.Variant, len(st.Nodes), st.InstallDir)
	return nil
}

func newAddCmd() *cobra.Command {
	var clusterName string
	cmd := &cobra.Command{
		Use:   "add NODE",
		Short: "Add a node to a cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			c, err := env.targetCluster(clusterName)
			if err != nil {
				return err
			}
			if err := c.AddNode(cmd.Context(), args[0]); err != nil {
				return err
			}
			for _, n := range c.State().Nodes {
				if n.Name == args[0] {
					fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s at %s\n", n.Name, c.Name(), n.Address)
				}
			}
			return nil
		},
	}
	addClusterFlag(cmd.Flags(), &clusterName)
	return cmd
}
