package sieve

import (
	"context"

	"github.com/prime-sieve/pkg/model"
	"github.com/prime-sieve/pkg/parallel"
)

// ThreadsBackend marks on a fixed-size worker pool. Every worker owns a slice
// of the candidate range [2, sqrt(limit)] and strikes multiples across the
// whole shared buffer. Pool completion is the barrier before collection.
type ThreadsBackend struct {
	opts options
}

// NewThreadsBackend creates the worker-pool backend.
func NewThreadsBackend(opts ...Option) *ThreadsBackend {
	return &ThreadsBackend{opts: newOptions(opts)}
}

// Name returns the backend identifier.
func (b *ThreadsBackend) Name() model.BackendType {
	return model.BackendThreads
}

// Run executes the sieve. Zero params.Workers uses the hardware concurrency.
func (b *ThreadsBackend) Run(ctx context.Context, params model.Params) (*model.Result, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}

	config := parallel.DefaultPoolConfig().WithMetrics()
	if params.Workers > 0 {
		config = config.WithWorkers(params.Workers)
	}
	pool := parallel.NewWorkerPool[Segment, int](config)

	p := &pipeline{
		backend: model.BackendThreads,
		params:  params,
		workers: pool.Workers(),
		opts:    b.opts,
		newList: NewResultList,
	}
	p.mark = func(ctx context.Context, buf *Buffer) error {
		segs, err := PartitionSegment(ScanRange(buf.Limit()), pool.Workers())
		if err != nil {
			return err
		}

		results := pool.ExecuteFunc(ctx, segs, func(ctx context.Context, seg Segment) (int, error) {
			b.opts.enterSegment(seg)
			return MarkShared(buf, seg), nil
		})
		m := pool.Metrics()
		b.opts.logger.Debug("pool ran %d segments (%d failed), slowest %v",
			m.TotalTasks, m.FailedTasks, m.MaxTaskTime)
		if err := parallel.FirstError(results); err != nil {
			return workerFailed(model.BackendThreads, err)
		}
		return nil
	}
	return p.run(ctx)
}
