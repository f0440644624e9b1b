package cli

import (
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ccm/internal/cluster"
	"ccm/internal/tui"
)

func newStartCmd() *cobra.Command {
	var (
		clusterName string
		noWait      bool
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start every node of a cluster",
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
			return startCluster(cmd, env, c, noWait)
		},
	}
	addClusterFlag(cmd.Flags(), &clusterName)
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Do not wait for nodes to accept clients")
	return cmd
}

func startCluster(cmd *cobra.Command, env *environment, c *cluster.Cluster, noWait bool) error {
	out := cmd.OutOrStdout()
	if env.mode != tui.ModeTUI {
		var mu sync.Mutex
		err := c.Start(cmd.Context(), cluster.StartOptions{
			NoWait: noWait,
			Report: func(node string, phase cluster.Phase) {
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, "%s: %s\n", node, phase)
			},
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Cluster %s started\n", c.Name())
		return nil
	}

	model := tui.NewNodeModel("Starting " + c.Name())
	for _, n := range c.State().Nodes {
		model.AddNode(n.Name, n.Address)
	}
	return tui.RunWithWork(out, model, func(send func(tea.Msg)) error {
		return c.Start(cmd.Context(), cluster.StartOptions{
			NoWait: noWait,
			Report: func(node string, phase cluster.Phase) {
				send(tui.NodePhaseMsg{Node: node, Phase: string(phase)})
			},
		})
	})
}

func newStopCmd() *cobra.Command {
	var (
		clusterName string
		hard        bool
	)
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop every node of a cluster",
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
			if err := c.Stop(cmd.Context(), !hard); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cluster %s stopped\n", c.Name())
			return nil
		},
	}
	addClusterFlag(cmd.Flags(), &clusterName)
	cmd.Flags().BoolVar(&hard, "hard", false, "Kill nodes instead of asking them to shut down")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	var clusterName string
	cmd := &cobra.Command{
		Use:     "remove",
		Aliases: []string{"rm"},
		Short:   "Stop a cluster and delete its directory",
		Args:    cobra.NoArgs,
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
			if err := c.Remove(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cluster %s removed\n", c.Name())
			return nil
		},
	}
	addClusterFlag(cmd.Flags(), &clusterName)
	return cmd
}
