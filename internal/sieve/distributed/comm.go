// Package distributed runs the sieve on isolated ranks that share no memory
// and talk only through collective operations: broadcast, sum-reduction and
// gather. Ranks can live in one process (LocalWorld) or in separate processes
// joined over gRPC (GRPCWorld, GRPCCommunicator).
package distributed

import (
	"context"
	"fmt"

	apperrors "github.com/prime-sieve/pkg/errors"
)

// Communicator is one rank's handle on the collective operations of a world.
//
// Every rank must call the same collectives in the same order, like MPI.
// A rank that calls a different operation, or uses a different root, than the
// other ranks at the same step fails that step with COLLECTIVE_ERROR on every
// rank. A Communicator is used by a single goroutine.
type Communicator interface {
	// Rank returns this participant's rank in [0, Size).
	Rank() int

	// Size returns the number of ranks in the world.
	Size() int

	// Broadcast returns root's value on every rank. Non-root values are ignored.
	Broadcast(ctx context.Context, root, value int) (int, error)

	// ReduceSum returns the sum of every rank's value at root and 0 elsewhere.
	ReduceSum(ctx context.Context, root, value int) (int, error)

	// Gather returns every rank's values at root, indexed by rank, and nil
	// elsewhere.
	Gather(ctx context.Context, root int, values []int) ([][]int, error)

	// Close releases the communicator's resources.
	Close() error
}

// World creates the communicators of a fixed set of ranks.
type World interface {
	Size() int
	Comm(ctx context.Context, rank int) (Communicator, error)
	Close() error
}

// Collective operation names.
const (
	OpBroadcast = "broadcast"
	OpReduceSum = "reduce_sum"
	OpGather    = "gather"
)

// exchangeFunc delivers one rank's contribution to step seq and returns the
// contributions of all ranks, indexed by rank.
type exchangeFunc func(ctx context.Context, seq uint64, kind string, payload []int) ([][]int, error)

// comm implements Communicator on top of an all-to-all exchange.
type comm struct {
	rank     int
	size     int
	seq      uint64
	exchange exchangeFunc
	closer   func() error
}

func (c *comm) Rank() int { return c.rank }

func (c *comm) Size() int { return c.size }

func (c *comm) Broadcast(ctx context.Context, root, value int) (int, error) {
	var payload []int
	if c.rank == root {
		payload = []int{value}
	}
	parts, err := c.step(ctx, OpBroadcast, root, payload)
	if err != nil {
		return 0, err
	}
	if len(parts[root]) != 1 {
		return 0, apperrors.Newf(apperrors.CodeCollectiveError,
			"broadcast step %d: root %d sent %d values", c.seq, root, len(parts[root]))
	}
	return parts[root][0], nil
}

func (c *comm) ReduceSum(ctx context.Context, root, value int) (int, error) {
	parts, err := c.step(ctx, OpReduceSum, root, []int{value})
	if err != nil {
		return 0, err
	}
	if c.rank != root {
		return 0, nil
	}
	sum := 0
	for rank, part := range parts {
		if len(part) != 1 {
			return 0, apperrors.Newf(apperrors.CodeCollectiveError,
				"reduce step %d: rank %d sent %d values", c.seq, rank, len(part))
		}
		sum += part[0]
	}
	return sum, nil
}

func (c *comm) Gather(ctx context.Context, root int, values []int) ([][]int, error) {
	parts, err := c.step(ctx, OpGather, root, values)
	if err != nil {
		return nil, err
	}
	if c.rank != root {
		return nil, nil
	}
	out := make([][]int, len(parts))
	for i, part := range parts {
		out[i] = append([]int(nil), part...)
	}
	return out, nil
}

func (c *comm) Close() error {
	if c.closer != nil {
		return c.closer()
	}
	return nil
}

func (c *comm) step(ctx context.Context, op string, root int, payload []int) ([][]int, error) {
	if root < 0 || root >= c.size {
		return nil, apperrors.Newf(apperrors.CodeCollectiveError, "%s: root %d out of range [0, %d)", op, root, c.size)
	}
	c.seq++
	parts, err := c.exchange(ctx, c.seq, stepKind(op, root), payload)
	if err != nil {
		return nil, err
	}
	if len(parts) != c.size {
		return nil, apperrors.Newf(apperrors.CodeCollectiveError,
			"%s step %d: got %d contributions, want %d", op, c.seq, len(parts), c.size)
	}
	return parts, nil
}

func stepKind(op string, root int) string {
	return fmt.Sprintf("%s/root=%d", op, root)
}
