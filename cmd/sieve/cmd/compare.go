package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/prime-sieve/internal/formatter"
	"github.com/prime-sieve/internal/runner"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
)

// compareCmd represents the compare command
var compareCmd = &cobra.Command{
	Use:   "compare [backend...]",
	Short: "Run several backends on the same input and check they agree",
	Long: `Run each named backend (all of them by default) with the same LIMIT, K and
worker settings. The command prints the shared prime listing and a timing
table, and fails when any backend produced different primes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backends := make([]model.BackendType, 0, len(args))
		for _, arg := range args {
			b, err := model.ParseBackendType(arg)
			if err != nil {
				return apperrors.Wrap(apperrors.CodeConfigError, "invalid backend", err)
			}
			backends = append(backends, b)
		}

		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		comparison, _, err := svc.Compare(cmd.Context(), backends, svc.Params())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if err := printComparison(out, comparison, cfg.Output.PerLine); err != nil {
			return err
		}
		if !comparison.Equal() {
			return fmt.Errorf("%d backend(s) disagree with %s", len(comparison.Diffs), comparison.Results[0].Backend)
		}
		return nil
	},
}

func printComparison(out io.Writer, c *runner.Comparison, perLine int) error {
	text := &formatter.TextFormatter{PerLine: perLine}
	if _, err := io.WriteString(out, text.Primes(c.Results[0].Primes)); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BACKEND\tWORKERS\tMARK\tCOLLECT\tTOTAL\tMATCH")
	for _, r := range c.Results {
		_, differs := c.Diffs[r.Backend]
		fmt.Fprintf(tw, "%s\t%d\t%v\t%v\t%.6fs\t%t\n",
			r.Backend, r.Workers, r.Phases.Mark, r.Phases.Collect, r.Elapsed.Seconds(), !differs)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	names := make([]string, 0, len(c.Diffs))
	for b := range c.Diffs {
		names = append(names, b.String())
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "\n%s (-%s +%s):\n%s", name, c.Results[0].Backend, name, c.Diffs[model.BackendType(name)])
	}
	return nil
}

func init() {
	rootCmd.AddCommand(compareCmd)
}
