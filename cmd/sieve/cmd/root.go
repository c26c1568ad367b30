// Package cmd implements the sieve command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/prime-sieve/internal/formatter"
	"github.com/prime-sieve/internal/service"
	"github.com/prime-sieve/pkg/config"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/profiling"
	"github.com/prime-sieve/pkg/telemetry"
	"github.com/prime-sieve/pkg/utils"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Pprof flags
	pprofEnabled  bool
	pprofDir      string
	pprofProfiles string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger utils.Logger

	v                 *viper.Viper
	telemetryShutdown telemetry.ShutdownFunc
	profileSession    *profiling.Session
)

// flagKeys maps persistent flags to the config keys they override.
var flagKeys = map[string]string{
	"limit":       "sieve.limit",
	"count":       "sieve.count",
	"workers":     "sieve.workers",
	"backend":     "sieve.backend",
	"collectors":  "sieve.collectors",
	"ranks":       "sieve.ranks",
	"transport":   "distributed.transport",
	"addr":        "distributed.addr",
	"timeout":     "distributed.collective_timeout",
	"output-dir":  "output.dir",
	"format":      "output.format",
	"compress":    "output.compression",
	"per-line":    "output.per_line",
	"log-level":   "log.level",
	"log-format":  "log.format",
	"db-enabled":  "database.enabled",
	"storage-dir": "storage.local_path",
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sieve",
	Short: "A parallel segmented Sieve of Eratosthenes",
	Long: `sieve finds the first K primes below LIMIT with a segmented Sieve of
Eratosthenes on one of four concurrency backends: a shared worker pool
(threads), explicitly joined goroutines with a mutex (locks), a parallel-for
over disjoint windows (dataparallel) and isolated ranks joined by collective
operations (distributed).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd); err != nil {
			return err
		}

		loaded, err := config.LoadWithViper(v, configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		level := utils.ParseLogLevel(cfg.Log.Level)
		if verbose {
			level = utils.LevelDebug
		}
		l := utils.NewLogger(level, utils.LogFormat(cfg.Log.Format), cmd.ErrOrStderr())
		utils.SetGlobalLogger(l)
		logger = l

		tcfg := cfg.Telemetry
		if tcfg.ServiceVersion == "" {
			tcfg.ServiceVersion = Version
		}
		shutdown, err := telemetry.Init(cmd.Context(), tcfg)
		if err != nil {
			logger.Warn("Failed to initialize telemetry: %v", err)
		}
		telemetryShutdown = shutdown

		if pprofEnabled {
			profiles, err := profiling.ParseProfileTypes(pprofProfiles)
			if err != nil {
				return apperrors.Wrap(apperrors.CodeConfigError, "invalid --pprof-profiles", err)
			}
			sess, err := profiling.Start(profiling.Config{Dir: pprofDir, Profiles: profiles})
			if err != nil {
				return err
			}
			profileSession = sess
			logger.Info("pprof collection started (dir: %s)", pprofDir)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		finish(cmd.Context())
		return nil
	},
}

// finish stops profiling and flushes telemetry. It runs after failed
// commands too.
func finish(ctx context.Context) {
	if profileSession != nil {
		files, err := profileSession.Stop()
		if err != nil {
			logger.Warn("Failed to write profiles: %v", err)
		}
		logger.Info("pprof data saved to: %s (%d files)", profileSession.Dir(), len(files))
		profileSession = nil
	}
	if telemetryShutdown != nil {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Warn("Failed to flush telemetry: %v", err)
		}
		telemetryShutdown = nil
	}
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return ExecuteContext(ctx, os.Args[1:])
}

// ExecuteContext runs the command line with args.
func ExecuteContext(ctx context.Context, args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if logger != nil {
			finish(context.Background())
		}
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return apperrors.ExitCode(err)
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	pf.Int("limit", 1_000_000, "Exclusive upper bound of the search range")
	pf.Int("count", 1000, "Number of primes to report")
	pf.Int("workers", 0, "Workers or ranks (0 = backend default)")
	pf.String("backend", "threads", "Backend: threads, locks, dataparallel, distributed")
	pf.Int("collectors", 1, "Concurrent prime collectors")
	pf.Int("ranks", 4, "Ranks of the distributed backend when --workers is 0")
	pf.String("transport", "local", "Distributed transport: local or grpc")
	pf.String("addr", "127.0.0.1:7946", "Address of the distributed hub")
	pf.Duration("timeout", 0, "Collective timeout (0 = config value)")
	pf.String("output-dir", "", "Directory for result files")
	pf.String("format", "text", "Output format: text or json")
	pf.String("compress", "none", "Result file compression: none, gzip, zstd")
	pf.Int("per-line", formatter.DefaultPerLine, "Primes per output line")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text or json")
	pf.Bool("db-enabled", false, "Record runs in the history database")
	pf.String("storage-dir", "", "Upload result artifacts below this directory")

	pf.BoolVar(&pprofEnabled, "pprof", false, "Capture pprof profiles of the command")
	pf.StringVar(&pprofDir, "pprof-dir", "./pprof", "Output directory for pprof data")
	pf.StringVar(&pprofProfiles, "pprof-profiles", "cpu,heap,goroutine", "Comma-separated profile types: cpu,heap,goroutine,block,mutex,allocs")

	binName := BinName()
	rootCmd.Example = `  # First 1000 primes below one million on the worker pool
  ` + binName + ` run

  # First 20 primes below 100 on four isolated ranks
  ` + binName + ` run --backend distributed --limit 100 --count 20 --workers 4

  # Run every backend and check they agree
  ` + binName + ` compare --limit 50000 --count 2000

  # Three ranks as separate processes over gRPC
  ` + binName + ` rank --rank 0 --size 3 &
  ` + binName + ` rank --rank 1 --size 3 &
  ` + binName + ` rank --rank 2 --size 3`
}

// bindFlags binds the flags the user set to their config keys, so unset
// flags do not mask file and environment values.
func bindFlags(cmd *cobra.Command) error {
	v = viper.New()
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if name == "storage-dir" {
			v.Set("storage.enabled", true)
			v.Set("storage.type", "local")
		}
		if err := v.BindPFlag(key, f); err != nil {
			return apperrors.Wrap(apperrors.CodeConfigError, "failed to bind --"+name, err)
		}
	}
	return nil
}

// newService builds and initializes the service for cfg.
func newService(ctx context.Context) (*service.Service, error) {
	svc, err := service.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := svc.Initialize(ctx); err != nil {
		svc.Close()
		return nil, err
	}
	return svc, nil
}

// resultFormatter returns the configured output formatter.
func resultFormatter() formatter.ResultFormatter {
	return formatter.NewRegistry(cfg.Output.PerLine).Get(cfg.Output.Format)
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}
