package distributed

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/prime-sieve/internal/sieve"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
	"github.com/prime-sieve/pkg/parallel"
	"github.com/prime-sieve/pkg/utils"
)

// Transport selects how the ranks of an in-process run talk to each other.
type Transport string

const (
	// TransportLocal shares one Hub in memory.
	TransportLocal Transport = "local"
	// TransportGRPC sends every collective through a gRPC hub server.
	TransportGRPC Transport = "grpc"
)

// DefaultRanks is the rank count when neither the config nor the run
// parameters set one.
const DefaultRanks = 4

// Config configures the distributed backend.
type Config struct {
	// Ranks is the world size used when params.Workers is zero.
	Ranks int

	// Transport is local or grpc.
	Transport Transport

	// Addr is the listen address of the gRPC hub. Port 0 picks a free port.
	Addr string

	// CollectiveTimeout bounds the wait at each collective step.
	CollectiveTimeout time.Duration
}

// DefaultConfig returns the default distributed configuration.
func DefaultConfig() Config {
	return Config{
		Ranks:             DefaultRanks,
		Transport:         TransportLocal,
		Addr:              "127.0.0.1:0",
		CollectiveTimeout: DefaultCollectiveTimeout,
	}
}

// Backend runs every rank of a world as a goroutine in this process. The
// ranks share no sieve memory; all coordination goes through collectives.
type Backend struct {
	config   Config
	logger   utils.Logger
	newWorld func(ctx context.Context, size int) (World, error)
}

// NewBackend creates the distributed backend.
func NewBackend(config Config, logger utils.Logger) *Backend {
	if config.Ranks <= 0 {
		config.Ranks = DefaultRanks
	}
	if config.Transport == "" {
		config.Transport = TransportLocal
	}
	b := &Backend{config: config, logger: utils.OrNull(logger)}
	b.newWorld = b.defaultWorld
	return b
}

// Name returns the backend identifier.
func (b *Backend) Name() model.BackendType {
	return model.BackendDistributed
}

// Run executes the sieve on params.Workers ranks, or Config.Ranks when zero.
// The root gathers the result itself, so params.Collectors is ignored.
// The first failing rank cancels the others and its error is returned.
func (b *Backend) Run(ctx context.Context, params model.Params) (*model.Result, error) {
	if err := sieve.ValidateParams(params); err != nil {
		return nil, err
	}

	size := params.Workers
	if size == 0 {
		size = b.config.Ranks
	}

	start := time.Now()
	world, err := b.newWorld(ctx, size)
	if err != nil {
		return nil, err
	}
	defer world.Close()

	results := make([]*RankResult, size)
	g, gctx := errgroup.WithContext(ctx)
	for rank := 0; rank < size; rank++ {
		g.Go(func() (err error) {
			defer func() {
				if v := recover(); v != nil {
					err = apperrors.Wrap(apperrors.CodeWorkerFailed, fmt.Sprintf("rank %d failed", rank), &parallel.PanicError{Value: v})
				}
			}()

			comm, err := world.Comm(gctx, rank)
			if err != nil {
				return err
			}
			defer comm.Close()

			res, err := RunRank(gctx, comm, params, b.logger.WithField("transport", b.config.Transport))
			if err != nil {
				return err
			}
			results[rank] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	root := results[Root]
	return &model.Result{
		Backend: model.BackendDistributed,
		Params:  params,
		Workers: size,
		Primes:  root.Primes,
		Phases: model.Phases{
			Mark:    root.Mark,
			Collect: root.Gather,
		},
		Elapsed: time.Since(start),
	}, nil
}

func (b *Backend) defaultWorld(_ context.Context, size int) (World, error) {
	switch b.config.Transport {
	case TransportLocal:
		return NewLocalWorld(size, b.config.CollectiveTimeout)
	case TransportGRPC:
		lis, err := net.Listen("tcp", b.config.Addr)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeCollectiveError, "listen on "+b.config.Addr, err)
		}
		world, err := NewGRPCWorld(lis, "", size, b.config.CollectiveTimeout)
		if err != nil {
			lis.Close()
			return nil, err
		}
		return world, nil
	default:
		return nil, apperrors.Newf(apperrors.CodeConfigError, "unknown transport %q", b.config.Transport)
	}
}

// ParseTransport parses a transport name.
func ParseTransport(s string) (Transport, error) {
	switch Transport(s) {
	case TransportLocal, TransportGRPC:
		return Transport(s), nil
	default:
		return "", fmt.Errorf("unknown transport: %s (valid: local, grpc)", s)
	}
}
