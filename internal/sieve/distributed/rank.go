package distributed

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/prime-sieve/internal/sieve"
	"github.com/prime-sieve/pkg/collections"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
	"github.com/prime-sieve/pkg/telemetry"
	"github.com/prime-sieve/pkg/utils"
)

// Root is the coordinator rank. It discovers the small primes, receives the
// reductions and is the only rank holding the final result.
const Root = 0

// endOfPrimes is broadcast after the last small prime.
const endOfPrimes = 0

// RankRange returns the sub-range of [2, limit) owned by rank. Every rank but
// the last gets (limit-2)/size integers; the last one absorbs the remainder.
func RankRange(limit, size, rank int) sieve.Segment {
	span := (limit - 2) / size
	lo := 2 + rank*span
	hi := lo + span
	if rank == size-1 {
		hi = limit
	}
	return sieve.Segment{Start: lo, End: hi}
}

// RankResult is what one rank produced. Primes and Total are only set on
// the root.
type RankResult struct {
	Rank   int
	Range  sieve.Segment
	Local  int
	Total  int
	Primes []int
	Mark   time.Duration
	Gather time.Duration
}

// RunRank runs one rank of the distributed sieve on comm.
//
// The root sieves [2, sqrt(limit)] on its own and broadcasts each small
// prime in increasing order, then endOfPrimes. Every rank strikes the
// multiples of each received prime inside its private range. The ranks then
// sum their prime counts and gather their prime lists at the root, which
// concatenates them in rank order and keeps the first params.Count.
func RunRank(ctx context.Context, comm Communicator, params model.Params, logger utils.Logger) (result *RankResult, err error) {
	if err := sieve.ValidateParams(params); err != nil {
		return nil, err
	}

	rank, size := comm.Rank(), comm.Size()
	seg := RankRange(params.Limit, size, rank)

	ctx, span := telemetry.StartSpan(ctx, "distributed.rank",
		attribute.Int("sieve.rank", rank),
		attribute.Int("sieve.ranks", size),
		attribute.Int("sieve.limit", params.Limit),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	log := utils.OrNull(logger).WithField("rank", rank)
	log.Debug("owning %s", seg)

	timer := utils.NewTimer(fmt.Sprintf("rank %d", rank), utils.WithLogger(log))
	timer.Start("mark")

	local := collections.NewBitset(seg.Len())
	local.SetAll()

	strike := func(p int) {
		for j := sieve.FirstMultiple(p, seg.Start); j < seg.End; j += p {
			local.Clear(j - seg.Start)
		}
	}

	if rank == Root {
		small, err := smallPrimes(params.Limit)
		if err != nil {
			return nil, err
		}
		for _, p := range small {
			if _, err := comm.Broadcast(ctx, Root, p); err != nil {
				return nil, err
			}
			strike(p)
		}
		if _, err := comm.Broadcast(ctx, Root, endOfPrimes); err != nil {
			return nil, err
		}
		log.Debug("broadcast %d small primes", len(small))
	} else {
		for {
			p, err := comm.Broadcast(ctx, Root, 0)
			if err != nil {
				return nil, err
			}
			if p == endOfPrimes {
				break
			}
			if p < 2 {
				return nil, apperrors.Newf(apperrors.CodeCollectiveError, "received invalid prime %d", p)
			}
			strike(p)
		}
	}
	mark := timer.StopPhase("mark")
	timer.Start("gather")

	count := local.Count()
	primes := make([]int, 0, min(count, params.Count))
	local.Iterate(func(i int) bool {
		if len(primes) == params.Count {
			return false
		}
		primes = append(primes, seg.Start+i)
		return true
	})

	total, err := comm.ReduceSum(ctx, Root, count)
	if err != nil {
		return nil, err
	}
	parts, err := comm.Gather(ctx, Root, primes)
	if err != nil {
		return nil, err
	}

	result = &RankResult{
		Rank:  rank,
		Range: seg,
		Local: count,
		Mark:  mark,
	}
	if rank == Root {
		result.Total = total
		result.Primes = concatFirst(parts, params.Count)
		log.Debug("gathered %d primes of %d below %d", len(result.Primes), total, params.Limit)
	}
	result.Gather = timer.StopPhase("gather")
	timer.PrintSummary()
	return result, nil
}

// smallPrimes returns the primes in [2, sqrt(limit)] in increasing order.
func smallPrimes(limit int) ([]int, error) {
	root := sieve.SqrtLimit(limit)
	if root < 2 {
		return nil, nil
	}
	buf, err := sieve.NewBuffer(root + 1)
	if err != nil {
		return nil, err
	}
	if scan := sieve.ScanRange(root + 1); !scan.Empty() {
		sieve.MarkShared(buf, scan)
	}
	var out []int
	buf.Freeze().Primes(func(p int) bool {
		out = append(out, p)
		return true
	})
	return out, nil
}

// concatFirst joins parts in order and keeps at most k values.
func concatFirst(parts [][]int, k int) []int {
	out := make([]int, 0, k)
	for _, part := range parts {
		for _, p := range part {
			if len(out) == k {
				return out
			}
			out = append(out, p)
		}
	}
	return out
}
