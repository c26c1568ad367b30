package sieve

import (
	"context"
	"runtime"

	"github.com/prime-sieve/pkg/model"
	"github.com/prime-sieve/pkg/parallel"
)

// windowsPerWorker is how many write windows each loop worker gets on average.
const windowsPerWorker = 4

// DataParallelBackend runs a parallel-for over disjoint write windows of
// [2, limit). Each iteration strikes multiples of every candidate, but only
// inside its own window, so no two iterations write the same slot.
type DataParallelBackend struct {
	opts options
}

// NewDataParallelBackend creates the parallel-for backend.
func NewDataParallelBackend(opts ...Option) *DataParallelBackend {
	return &DataParallelBackend{opts: newOptions(opts)}
}

// Name returns the backend identifier.
func (b *DataParallelBackend) Name() model.BackendType {
	return model.BackendDataParallel
}

// Run executes the sieve. Zero params.Workers lets the runtime decide.
func (b *DataParallelBackend) Run(ctx context.Context, params model.Params) (*model.Result, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}

	workers := params.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := &pipeline{
		backend: model.BackendDataParallel,
		params:  params,
		workers: workers,
		opts:    b.opts,
		newList: NewResultList,
	}
	p.mark = func(ctx context.Context, buf *Buffer) error {
		domain := Segment{Start: 2, End: buf.Limit()}
		windows, err := PartitionSegment(domain, min(workers*windowsPerWorker, domain.Len()))
		if err != nil {
			return err
		}

		candidates := ScanRange(buf.Limit())
		err = parallel.For(ctx, 0, len(windows), parallel.ForOptions{Workers: workers},
			func(_ context.Context, i int) {
				b.opts.enterSegment(windows[i])
				MarkOwned(buf, candidates, windows[i])
			})
		if err != nil {
			return workerFailed(model.BackendDataParallel, err)
		}
		return nil
	}
	return p.run(ctx)
}
