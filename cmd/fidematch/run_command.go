package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/fidematch/pkg/fidematch"
	"github.com/codeGROOVE-dev/fidematch/pkg/metrics"
	"github.com/codeGROOVE-dev/fidematch/pkg/player"
)

// multipleResults marks rows whose match could not be confirmed.
const multipleResults = "multiple results"

type runOptions struct {
	concurrency int
	force       bool
	rating      string
	policy      string
	align       bool
	output      string
	table       bool
	metricsFile string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Resolve every row of a tab-separated roster",
		Long: "Reads a tab-separated roster from file (or stdin), looks up each player in the\n" +
			"FIDE registry and writes the roster back with a rating column appended.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("concurrency") {
				cfg.Concurrency = opts.concurrency
			}
			if flags.Changed("rating") {
				cfg.Rating = opts.rating
			}
			if flags.Changed("policy") {
				cfg.Policy = opts.policy
			}
			if flags.Changed("align") {
				cfg.Align = opts.align
			}
			if flags.Changed("metrics-file") {
				cfg.Metrics.File = opts.metricsFile
			}

			input, err := readRoster(cmd, args)
			if err != nil {
				return err
			}

			var extra []fidematch.Option
			if cfg.Metrics.File != "" {
				extra = append(extra, fidematch.WithMetrics(metrics.New()))
			}

			return ctx.withService(cmd.Context(), cfg, cmd.ErrOrStderr(), extra, func(svc *fidematch.Service) error {
				return runRoster(cmd, svc, input, opts)
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.concurrency, "concurrency", 4, "Rows resolved at once")
	flags.BoolVar(&opts.force, "force", false, "Ignore cached matches and query the registry again")
	flags.StringVar(&opts.rating, "rating", string(player.Standard), "Rating to report: standard, rapid or blitz")
	flags.StringVar(&opts.policy, "policy", "anchored", "Column slicing policy: anchored or naive")
	flags.BoolVar(&opts.align, "align", false, "Pad columns instead of separating them with tabs")
	flags.StringVarP(&opts.output, "output", "o", "", "Write the result to this file instead of stdout")
	flags.BoolVar(&opts.table, "table", false, "Print a summary table of matches instead of the roster")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus textfile metrics here")

	return cmd
}

func readRoster(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read roster: %w", err)
	}
	return string(b), nil
}

func runRoster(cmd *cobra.Command, svc *fidematch.Service, input string, opts runOptions) error {
	ctx := cmd.Context()
	headers, rows := svc.Parse(input)
	if len(headers) == 0 {
		return errors.New("roster is empty")
	}

	stderr := cmd.ErrOrStderr()
	showProgress := isTerminal(stderr)
	progress := make(chan fidematch.Progress)
	done := make(chan struct{})
	go func() {
		defer close(done)
		n := 0
		for p := range progress {
			n++
			if showProgress {
				fmt.Fprintf(stderr, "[%d/%d] %s\n", n, len(rows), progressLine(p))
			}
		}
	}()

	resolved, runErr := svc.Run(ctx, rows, opts.force, progress)
	<-done

	var out string
	if opts.table {
		out = summaryTable(resolved, svc.Config().RatingKind())
	} else {
		out = svc.Format(resolved, headers)
	}
	if err := writeOutput(cmd, opts.output, out); err != nil {
		return err
	}
	if err := svc.WriteMetrics(); err != nil {
		return err
	}
	return runErr
}

func progressLine(p fidematch.Progress) string {
	first, last := p.Row.Names()
	name := strings.TrimSpace(last + ", " + first)
	best, ok := p.Result.Best()
	if !ok {
		return fmt.Sprintf("%s: no match (%s)", name, p.Result.Provenance)
	}
	line := fmt.Sprintf("%s: %s %s (%s)", name, best.FIDEID, best.Federation, p.Result.Provenance)
	if !p.Result.Accurate {
		line += ", " + multipleResults
	}
	return line
}

func summaryTable(rows []*fidematch.Row, kind player.RatingKind) string {
	headers := []string{"#", "First", "Last", "FIDE ID", "Registry name", "Fed", kind.Abbrev(), "Search", "Note"}
	lines := make([][]string, 0, len(rows))
	for _, r := range rows {
		first, last := r.Names()
		line := []string{r.ID, first, last, "", "", "", "", "", ""}
		if r.Result != nil {
			line[7] = string(r.Result.Provenance)
			if best, ok := r.Result.Best(); ok {
				line[3] = best.FIDEID
				line[4] = best.Name
				line[5] = best.Federation
				line[6] = best.Rating(kind)
				if !r.Result.Accurate {
					line[8] = multipleResults
				}
			}
		}
		lines = append(lines, line)
	}
	return renderTable(headers, lines, 1, 7)
}

func writeOutput(cmd *cobra.Command, path, out string) error {
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	if path == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), out)
		return err
	}
	if err := os.WriteFile(path, []byte(out), 0o600); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
