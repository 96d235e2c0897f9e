package main

import (
	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/fidematch/pkg/fidematch"
)

func newRootCommand(svcOpts ...fidematch.Option) *cobra.Command {
	ctx := newCommandContext(svcOpts...)

	rootCmd := &cobra.Command{
		Use:           "fidematch",
		Short:         "Look up FIDE ratings for a tournament roster",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path (.toml or .yaml)")
	flags.BoolVarP(&ctx.debug, "debug", "v", false, "Enable debug logging")
	flags.BoolVar(&ctx.noCache, "no-cache", false, "Disable the registry markup cache")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newLookupCommand(ctx))
	rootCmd.AddCommand(newDenyCommand(ctx))
	rootCmd.AddCommand(newPurgeCommand(ctx))

	return rootCmd
}
