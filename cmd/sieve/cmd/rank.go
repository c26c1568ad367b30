package cmd

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/prime-sieve/internal/sieve/distributed"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
)

var (
	rankID   int
	rankSize int
)

// rankCmd represents the rank command
var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Run one rank of the distributed sieve as its own process",
	Long: `Run a single rank of a distributed world whose ranks are separate
processes. Rank 0 is the coordinator: it serves the collective hub on
distributed.addr, takes part as a rank and is the only process that prints
the result. Every other rank dials the hub at the same address.

Ranks may start in any order; a rank waits for the hub for up to the
collective timeout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		size := rankSize
		if size == 0 {
			size = cfg.Sieve.Ranks
		}
		if size <= 0 || rankID < 0 || rankID >= size {
			return apperrors.Newf(apperrors.CodeConfigError, "rank %d out of range [0, %d)", rankID, size)
		}

		params := model.Params{
			Limit:      cfg.Sieve.Limit,
			Count:      cfg.Sieve.Count,
			Workers:    size,
			Collectors: cfg.Sieve.Collectors,
		}
		if rankID == distributed.Root {
			return runCoordinator(cmd, size, params)
		}
		return runMember(cmd.Context(), size, params)
	},
}

func runCoordinator(cmd *cobra.Command, size int, params model.Params) error {
	ctx := cmd.Context()
	addr := cfg.Distributed.Addr

	hub, err := distributed.NewHub(size, cfg.Distributed.CollectiveTimeout)
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCollectiveError, "listen on "+addr, err)
	}
	srv := distributed.ServeHub(lis, hub)
	defer srv.GracefulStop()
	logger.Info("Hub serving %d ranks on %s", size, lis.Addr())

	comm, err := distributed.NewHubComm(hub, distributed.Root)
	if err != nil {
		return err
	}
	defer comm.Close()

	createdAt := time.Now()
	res, err := distributed.RunRank(ctx, comm, params, logger)
	if err != nil {
		return err
	}

	result := &model.Result{
		RunID:     uuid.NewString(),
		Backend:   model.BackendDistributed,
		Params:    params,
		Workers:   size,
		Primes:    res.Primes,
		Phases:    model.Phases{Mark: res.Mark, Collect: res.Gather},
		Elapsed:   time.Since(createdAt),
		CreatedAt: createdAt,
	}
	logger.Info("Gathered %d of %d primes below %d", result.Len(), res.Total, params.Limit)

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()
	if _, err := svc.Record(ctx, result); err != nil {
		return err
	}

	return resultFormatter().Format(cmd.OutOrStdout(), result)
}

func runMember(ctx context.Context, size int, params model.Params) error {
	addr := cfg.Distributed.Addr
	conn, err := distributed.DialHub(addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	joinCtx, cancel := context.WithTimeout(ctx, cfg.Distributed.CollectiveTimeout)
	comm, err := distributed.NewGRPCCommunicator(joinCtx, conn, rankID)
	cancel()
	if err != nil {
		return err
	}
	defer comm.Close()

	if comm.Size() != size {
		return apperrors.Newf(apperrors.CodeConfigError, "hub at %s serves %d ranks, expected %d", addr, comm.Size(), size)
	}

	res, err := distributed.RunRank(ctx, comm, params, logger)
	if err != nil {
		return err
	}
	logger.Info("Rank %d done: %d primes in %s", rankID, res.Local, res.Range)
	return nil
}

func init() {
	rankCmd.Flags().IntVar(&rankID, "rank", 0, "Rank of this process (0 = coordinator)")
	rankCmd.Flags().IntVar(&rankSize, "size", 0, "World size (0 = --ranks)")
	rootCmd.AddCommand(rankCmd)
}
