package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand creates the root command of the rfm CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rfm",
		Short: "RFM customer segmentation",
		Long: `Score customers by Recency, Frequency and Monetary value.

rfm reads a transaction ledger, cleans it, aggregates one RFM row per
customer, assigns quintile scores and segments, and prepares scaled
features for clustering.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
