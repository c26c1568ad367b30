package runner

import (
	"context"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/prime-sieve/internal/sieve"
	"github.com/prime-sieve/pkg/model"
	"github.com/prime-sieve/pkg/utils"
)

// Runner runs backends and stamps their results.
type Runner struct {
	factory *Factory
	logger  utils.Logger
	clock   utils.Clock
	newID   func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock sets the clock used for CreatedAt.
func WithClock(clock utils.Clock) Option {
	return func(r *Runner) {
		r.clock = clock
	}
}

// WithIDGenerator replaces the run id generator.
func WithIDGenerator(fn func() string) Option {
	return func(r *Runner) {
		r.newID = fn
	}
}

// New creates a Runner.
func New(factory *Factory, logger utils.Logger, opts ...Option) *Runner {
	r := &Runner{
		factory: factory,
		logger:  utils.OrNull(logger),
		clock:   utils.NewRealClock(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one backend.
func (r *Runner) Run(ctx context.Context, backend model.BackendType, params model.Params) (*model.Result, error) {
	b, err := r.factory.CreateBackend(backend)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, b, params)
}

func (r *Runner) run(ctx context.Context, b sieve.Backend, params model.Params) (*model.Result, error) {
	id := r.newID()
	log := r.logger.WithFields(map[string]interface{}{"run_id": id, "backend": b.Name()})
	log.Info("starting run: limit=%d count=%d workers=%d", params.Limit, params.Count, params.Workers)

	createdAt := r.clock.Now()
	result, err := b.Run(ctx, params)
	if err != nil {
		log.Error("run failed: %v", err)
		return nil, err
	}

	result.RunID = id
	result.CreatedAt = createdAt
	log.Info("run finished: %d primes, last=%d, elapsed=%v", result.Len(), result.Last(), result.Elapsed)
	return result, nil
}

// Comparison is the outcome of running several backends on the same input.
type Comparison struct {
	Results []*model.Result

	// Diffs maps a backend to the difference between its primes and the
	// primes of the first backend. Matching backends are absent.
	Diffs map[model.BackendType]string
}

// Equal reports whether every backend produced the same primes.
func (c *Comparison) Equal() bool {
	return len(c.Diffs) == 0
}

// Compare runs each backend in turn on params and diffs their primes.
// Any backend failure aborts the comparison.
func (r *Runner) Compare(ctx context.Context, backends []model.BackendType, params model.Params) (*Comparison, error) {
	if len(backends) == 0 {
		backends = model.AllBackends()
	}

	c := &Comparison{Diffs: make(map[model.BackendType]string)}
	for _, t := range backends {
		result, err := r.Run(ctx, t, params)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		c.Results = append(c.Results, result)

		if base := c.Results[0]; len(c.Results) > 1 {
			if diff := cmp.Diff(base.Primes, result.Primes); diff != "" {
				c.Diffs[t] = diff
				r.logger.Warn("%s disagrees with %s (-%s +%s):\n%s", t, base.Backend, base.Backend, t, diff)
			}
		}
	}
	return c, nil
}
