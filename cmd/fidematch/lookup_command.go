package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/fidematch/pkg/fidematch"
)

func newLookupCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "lookup <first> <last>",
		Short: "Look up a single player",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			return ctx.withService(cmd.Context(), cfg, cmd.ErrOrStderr(), nil, func(svc *fidematch.Service) error {
				res := svc.Resolve(cmd.Context(), args[1], args[0], force)
				out := cmd.OutOrStdout()
				if len(res.Players) == 0 {
					fmt.Fprintf(out, "no candidates (%s)\n", res.Provenance)
					return nil
				}

				headers := []string{"FIDE ID", "Name", "Title", "Fed", "FRtg", "FRpd", "FBlz", "B-Year"}
				rows := make([][]string, 0, len(res.Players))
				for _, p := range res.Players {
					title := p.Title
					if p.TrainerTitle != "" {
						title = joinNonEmpty(title, p.TrainerTitle)
					}
					rows = append(rows, []string{
						p.FIDEID, p.Name, title, p.Federation, p.Standard, p.Rapid, p.Blitz, p.BirthYear,
					})
				}
				fmt.Fprintln(out, renderTable(headers, rows, 1, 5, 6, 7, 8))
				fmt.Fprintf(out, "search: %s\n", res.Provenance)
				if !res.Accurate {
					fmt.Fprintln(out, multipleResults)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Ignore cached matches and query the registry again")
	return cmd
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
