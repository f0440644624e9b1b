package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ccm/internal/repository"
	"ccm/internal/tui"
	"ccm/internal/variant"
	"ccm/internal/variant/cassandra"
	"ccm/internal/variant/dse"
)

func newRepoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Inspect or populate the local archive cache",
	}
	cmd.AddCommand(newRepoEnsureCmd())
	cmd.AddCommand(newRepoListCmd())
	return cmd
}

type repoEnsureOptions struct {
	flavor flavorFlags
	opsc   bool
	creds  credentialFlags
	force  bool
}

// opsCenterEnsurer is satisfied by the DSE variant.
type opsCenterEnsurer interface {
	EnsureOpsCenter(ctx context.Context, repo variant.Provisioner, opts variant.Options) (string, error)
}

func newRepoEnsureCmd() *cobra.Command {
	opts := &repoEnsureOptions{}
	cmd := &cobra.Command{
		Use:   "ensure VERSION",
		Short: "Download and extract VERSION into the cache unless already present",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepoEnsure(cmd, args[0], opts)
		},
	}
	opts.flavor.register(cmd)
	cmd.Flags().BoolVar(&opts.opsc, "opsc", false, "Fetch an OpsCenter archive")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Replace an existing cache entry")
	opts.creds.register(cmd.Flags())
	cmd.MarkFlagsMutuallyExclusive("opsc", "hcd")
	return cmd
}

func runRepoEnsure(cmd *cobra.Command, versionID string, opts *repoEnsureOptions) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	vopts := variant.Options{Flavor: opts.flavor.flavor(), ShowProgress: !noProgress}
	opts.creds.apply(&vopts)

	var prov variant.Provisioner = env.repo
	if opts.force {
		prov = forceProvisioner{env.repo}
	}

	var dir string
	if opts.opsc {
		v, _ := env.registry.Named(dse.Name)
		ensurer, ok := v.(opsCenterEnsurer)
		if !ok {
			return fmt.Errorf("variant %s cannot fetch OpsCenter", dse.Name)
		}
		vopts.OpsCenter = versionID
		dir, err = ensurer.EnsureOpsCenter(cmd.Context(), prov, vopts)
	} else {
		name := string(vopts.Flavor)
		if vopts.Flavor == variant.FlavorNone {
			name = cassandra.Name
		}
		v, ok := env.registry.Named(name)
		if !ok {
			return fmt.Errorf("unknown variant %q", name)
		}
		dir, err = v.Install(cmd.Context(), variant.InstallEnv{Repository: prov, Options: vopts}, versionID)
	}
	env.finishProgress()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), dir)
	return nil
}

// forceProvisioner replaces cache entries instead of reusing them.
type forceProvisioner struct {
	repo *repository.Repository
}

func (f forceProvisioner) Ensure(ctx context.Context, req repository.Request) (string, error) {
	req.Force = true
	return f.repo.Ensure(ctx, req)
}

func newRepoListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			ids, err := env.repo.List()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(ids))
			for _, id := range ids {
				kind := "engine"
				if strings.HasPrefix(id, dse.OpsCenterPrefix) {
					kind = "opscenter"
				}
				rows = append(rows, []string{id, kind, env.repo.Path(id)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Repository: %s\n", env.repo.Root())
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(empty)")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderTable([]tui.Column{
				{Header: "VERSION"},
				{Header: "KIND"},
				{Header: "PATH"},
			}, rows))
			return nil
		},
	}
}
