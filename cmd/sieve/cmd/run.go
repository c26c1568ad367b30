package cmd

import (
	"github.com/spf13/cobra"

	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Find the first K primes below LIMIT on one backend",
	Long: `Run the sieve once on the configured backend and print the first K primes,
ten per line, followed by the elapsed time.

When configured, the result is also written to output.dir, recorded in the
run history database and uploaded to artifact storage.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := model.ParseBackendType(cfg.Sieve.Backend)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeConfigError, "invalid backend", err)
		}

		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		report, err := svc.Execute(cmd.Context(), backend, svc.Params())
		if err != nil {
			return err
		}

		if report.File != "" {
			logger.Info("Result written to %s", report.File)
		}
		if report.ArtifactURL != "" {
			logger.Info("Result uploaded to %s", report.ArtifactURL)
		}
		return resultFormatter().Format(cmd.OutOrStdout(), report.Result)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
