package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/prime-sieve/internal/repository"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
)

var (
	historyBackend string
	historyLimit   int
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Long:  `List the runs recorded in the history database, newest first. Requires database.enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := repository.ListOptions{Limit: historyLimit}
		if historyBackend != "" {
			b, err := model.ParseBackendType(historyBackend)
			if err != nil {
				return apperrors.Wrap(apperrors.CodeConfigError, "invalid backend", err)
			}
			opts.Backend = b
		}

		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		runs, err := svc.History(cmd.Context(), opts)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN ID\tBACKEND\tLIMIT\tCOUNT\tWORKERS\tLAST\tELAPSED\tCREATED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d/%d\t%d\t%d\t%.6fs\t%s\n",
				r.RunID, r.Backend, r.Limit, r.Found, r.Count, r.Workers, r.LastPrime,
				r.Elapsed().Seconds(), r.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()
	},
}

// showCmd represents the history show command
var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		result, err := svc.Show(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return resultFormatter().Format(cmd.OutOrStdout(), result)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyBackend, "only", "", "Only list runs of this backend")
	historyCmd.Flags().IntVar(&historyLimit, "last", repository.DefaultListLimit, "Number of runs to list")
	historyCmd.AddCommand(showCmd)
	rootCmd.AddCommand(historyCmd)
}
