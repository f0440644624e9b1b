package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ccm/internal/tui"
)

func newStatusCmd() *cobra.Command {
	var clusterName string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether each node of a cluster is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			c, err := env.targetCluster(clusterName)
			if err != nil {
				return err
			}

			st := c.State()
			ver := "-"
			if v, err := c.Version(cmd.Context()); err == nil {
				ver = v.String()
			} else {
				env.log.WithError(err).Debug("resolve cluster version")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cluster: %s (%s %s)\n", st.Name, st.Variant, ver)
			fmt.Fprintf(cmd.OutOrStdout(), "Install: %s\n\n", st.InstallDir)

			rows := make([][]string, 0, len(st.Nodes))
			for _, n := range c.Status() {
				status := "down"
				if n.Running {
					status = "running"
				}
				rows = append(rows, []string{n.Name, tui.NonEmptyOrDash(n.Address), status})
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderTable([]tui.Column{
				{Header: "NODE"},
				{Header: "ADDRESS"},
				{Header: "STATUS"},
			}, rows))
			return nil
		},
	}
	addClusterFlag(cmd.Flags(), &clusterName)
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List clusters; the current one is marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			names, err := env.manager.List()
			if err != nil {
				return err
			}
			current, err := env.manager.Current()
			if err != nil {
				return err
			}
			for _, name := range names {
				marker := " "
				if name == current {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", marker, name)
			}
			return nil
		},
	}
}

func newSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch NAME",
		Short: "Make NAME the current cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if _, err := env.manager.Load(args[0]); err != nil {
				return err
			}
			return env.manager.SetCurrent(args[0])
		},
	}
}
