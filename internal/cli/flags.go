package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"ccm/internal/variant"
)

// flavorFlags are the mutually exclusive product assertions.
type flavorFlags struct {
	dse bool
	hcd bool
}

func (f *flavorFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.BoolVar(&f.dse, "dse", false, "Use a DSE installation or archive")
	fs.BoolVar(&f.hcd, "hcd", false, "Use an HCD installation or archive")
	cmd.MarkFlagsMutuallyExclusive("dse", "hcd")
}

func (f flavorFlags) flavor() variant.Flavor {
	switch {
	case f.dse:
		return variant.FlavorDSE
	case f.hcd:
		return variant.FlavorHCD
	default:
		return variant.FlavorNone
	}
}

// credentialFlags are the DSE download credentials.
type credentialFlags struct {
	username string
	password string
	file     string
}

func (c *credentialFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&c.username, "dse-username", "", "Username for DSE and OpsCenter downloads")
	fs.StringVar(&c.password, "dse-password", "", "Password for DSE and OpsCenter downloads")
	fs.StringVar(&c.file, "dse-credentials", "", "ini file holding [dse_credentials] (default <config-dir>/.dse.ini)")
}

func (c credentialFlags) apply(opts *variant.Options) {
	opts.Username = c.username
	opts.Password = c.password
	opts.CredentialsFile = c.file
}

func addClusterFlag(fs *pflag.FlagSet, target *string) {
	fs.StringVarP(target, "cluster", "c", "", "Cluster to operate on (default: current cluster)")
}
