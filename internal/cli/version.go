package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ccm/internal/variant"
)

func newVersionCmd() *cobra.Command {
	var (
		installDir string
		engine     bool
		flavor     flavorFlags
	)
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the product version of an installation directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			dir, err := variant.NewInstallDir(installDir)
			if err != nil {
				return err
			}
			v, ok, err := env.registry.Resolve(dir, variant.Options{Flavor: flavor.flavor()})
			if err != nil {
				return err
			}
			if !ok {
				return &variant.ConfigurationError{Path: dir.Path(), Reason: "no known product found in installation directory"}
			}
			ver, err := v.ResolveVersion(cmd.Context(), dir, engine)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", v.Name(), ver)
			return nil
		},
	}
	cmd.Flags().StringVar(&installDir, "install-dir", "", "Installation directory to inspect")
	cmd.Flags().BoolVar(&engine, "engine", false, "Report the wrapped Cassandra engine version")
	flavor.register(cmd)
	_ = cmd.MarkFlagRequired("install-dir")
	return cmd
}
