package parallel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// ForOptions tunes a parallel loop. The zero value lets the runtime decide.
type ForOptions struct {
	// Workers is the number of goroutines. Default: runtime.GOMAXPROCS(0).
	Workers int

	// Chunk is the number of consecutive iterations a worker claims at once.
	// Default: enough for roughly four chunks per worker.
	Chunk int
}

func (o ForOptions) resolve(n int) (workers, chunk int) {
	workers = o.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	chunk = o.Chunk
	if chunk <= 0 {
		chunk = n / (workers * 4)
		if chunk < 1 {
			chunk = 1
		}
	}
	return workers, chunk
}

// For runs body(i) for every i in [lo, hi) on a set of goroutines and
// returns once all iterations are done.
//
// Iterations are handed out in chunks from a shared atomic cursor, so faster
// workers take more chunks. Iterations may run in any order and concurrently;
// body must be safe for that. A panicking iteration stops its worker and For
// returns a *PanicError once the other workers have finished.
func For(ctx context.Context, lo, hi int, opts ForOptions, body func(ctx context.Context, i int)) error {
	n := hi - lo
	if n <= 0 {
		return nil
	}
	workers, chunk := opts.resolve(n)

	var (
		cursor   atomic.Int64
		wg       sync.WaitGroup
		panicErr atomic.Pointer[PanicError]
	)
	cursor.Store(int64(lo))

	worker := func() {
		defer wg.Done()
		defer func() {
			if v := recover(); v != nil {
				panicErr.CompareAndSwap(nil, &PanicError{Value: v})
			}
		}()
		for {
			start := int(cursor.Add(int64(chunk))) - chunk
			if start >= hi {
				return
			}
			end := min(start+chunk, hi)
			for i := start; i < end; i++ {
				body(ctx, i)
			}
		}
	}

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go worker()
	}
	wg.Wait()

	if p := panicErr.Load(); p != nil {
		return p
	}
	return nil
}
