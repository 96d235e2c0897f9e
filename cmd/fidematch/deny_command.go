package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/fidematch/pkg/fidematch"
)

func newDenyCommand(ctx *commandContext) *cobra.Command {
	denyCmd := &cobra.Command{
		Use:   "deny",
		Short: "Manage candidates rejected for a search term",
		Long: "A search term is \"last, first\" as sent to the registry. Denied FIDE IDs are\n" +
			"never returned for that term until removed again.",
	}

	denyCmd.AddCommand(&cobra.Command{
		Use:   "add <term> <id>",
		Short: "Reject a candidate for a term",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(svc *fidematch.Service) error {
				return svc.Deny(cmd.Context(), args[0], args[1])
			})
		},
	})

	denyCmd.AddCommand(&cobra.Command{
		Use:     "rm <term> <id>",
		Aliases: []string{"remove"},
		Short:   "Restore a rejected candidate",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(svc *fidematch.Service) error {
				return svc.Undeny(cmd.Context(), args[0], args[1])
			})
		},
	})

	denyCmd.AddCommand(&cobra.Command{
		Use:     "ls <term>",
		Aliases: []string{"list"},
		Short:   "List rejected candidates for a term",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(svc *fidematch.Service) error {
				ids, err := svc.Denied(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	})

	return denyCmd
}

func newPurgeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove cached matches from previous months",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withStore(cmd, func(svc *fidematch.Service) error {
				n, err := svc.Purge(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d stale entries\n", n)
				return nil
			})
		},
	}
}

// withStore opens a Service for commands that only touch the match store.
func (c *commandContext) withStore(cmd *cobra.Command, fn func(*fidematch.Service) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	cfg.HTTP.NoCache = true
	cfg.HTTP.BrowserCookies = false
	return c.withService(cmd.Context(), cfg, cmd.ErrOrStderr(), nil, fn)
}
