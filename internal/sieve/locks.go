package sieve

import (
	"context"
	"sync"

	"github.com/prime-sieve/pkg/model"
	"github.com/prime-sieve/pkg/parallel"
)

// DefaultLockWorkers is the worker count of the locks backend when none is
// configured.
const DefaultLockWorkers = 4

// LocksBackend spawns one goroutine per segment and joins each through its
// handle. Markers share the buffer; the result list is guarded by an
// explicit mutex owned by the backend.
type LocksBackend struct {
	opts options
	mu   sync.Mutex
}

// NewLocksBackend creates the spawn/join backend.
func NewLocksBackend(opts ...Option) *LocksBackend {
	return &LocksBackend{opts: newOptions(opts)}
}

// Name returns the backend identifier.
func (b *LocksBackend) Name() model.BackendType {
	return model.BackendLocks
}

// Run executes the sieve. Zero params.Workers uses DefaultLockWorkers.
func (b *LocksBackend) Run(ctx context.Context, params model.Params) (*model.Result, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}

	workers := params.Workers
	if workers == 0 {
		workers = DefaultLockWorkers
	}

	p := &pipeline{
		backend: model.BackendLocks,
		params:  params,
		workers: workers,
		opts:    b.opts,
		newList: func(k int) *ResultList {
			return NewResultListWithLocker(k, &b.mu)
		},
	}
	p.mark = func(ctx context.Context, buf *Buffer) error {
		segs, err := PartitionSegment(ScanRange(buf.Limit()), workers)
		if err != nil {
			return err
		}

		handles := make([]*joinHandle, len(segs))
		for i, seg := range segs {
			handles[i] = spawn(func() error {
				b.opts.enterSegment(seg)
				MarkShared(buf, seg)
				return nil
			})
		}

		// Join every handle before reporting, so no marker outlives the run.
		var first error
		for _, h := range handles {
			if err := h.join(); err != nil && first == nil {
				first = err
			}
		}
		if first != nil {
			return workerFailed(model.BackendLocks, first)
		}
		return nil
	}
	return p.run(ctx)
}

// joinHandle is the result of a spawned goroutine.
type joinHandle struct {
	done chan struct{}
	err  error
}

func spawn(fn func() error) *joinHandle {
	h := &joinHandle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer func() {
			if v := recover(); v != nil {
				h.err = &parallel.PanicError{Value: v}
			}
		}()
		h.err = fn()
	}()
	return h
}

// join blocks until the goroutine returns and yields its error.
func (h *joinHandle) join() error {
	<-h.done
	return h.err
}
