package sieve

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
	"github.com/prime-sieve/pkg/telemetry"
	"github.com/prime-sieve/pkg/utils"
)

// Backend runs a complete sieve on one concurrency substrate.
type Backend interface {
	// Name returns the backend identifier.
	Name() model.BackendType

	// Run computes the first params.Count primes below params.Limit.
	// Any worker failure aborts the run and no result is returned.
	Run(ctx context.Context, params model.Params) (*model.Result, error)
}

// Option configures a backend.
type Option func(*options)

type options struct {
	logger utils.Logger
	clock  utils.Clock

	// onSegment runs before a worker marks its segment. Tests use it to
	// inject failures.
	onSegment func(seg Segment)
}

// WithLogger sets the logger a backend reports progress to.
func WithLogger(logger utils.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock sets the clock used for phase timings.
func WithClock(clock utils.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = utils.OrNull(o.logger)
	if o.clock == nil {
		o.clock = utils.NewRealClock()
	}
	return o
}

// ValidateParams rejects parameters no backend can run with.
// Zero Workers and Collectors mean "use the backend default".
func ValidateParams(params model.Params) error {
	switch {
	case params.Limit < 2:
		return apperrors.Newf(apperrors.CodeConfigError, "limit must be at least 2, got %d", params.Limit)
	case params.Limit > MaxLimit:
		return apperrors.Newf(apperrors.CodeResourceExhausted, "limit %d exceeds maximum %d", params.Limit, MaxLimit)
	case params.Count <= 0:
		return apperrors.Newf(apperrors.CodeConfigError, "prime count must be positive, got %d", params.Count)
	case params.Workers < 0:
		return apperrors.Newf(apperrors.CodeConfigError, "worker count must not be negative, got %d", params.Workers)
	case params.Collectors < 0:
		return apperrors.Newf(apperrors.CodeConfigError, "collector count must not be negative, got %d", params.Collectors)
	}
	return nil
}

// markFunc strikes every composite of buf. It is only called when the scan
// range is non-empty.
type markFunc func(ctx context.Context, buf *Buffer) error

// pipeline is the run shared by the in-process backends: allocate, mark,
// barrier, freeze, collect.
type pipeline struct {
	backend model.BackendType
	params  model.Params
	workers int
	opts    options
	mark    markFunc
	newList func(k int) *ResultList
}

func (p *pipeline) run(ctx context.Context) (result *model.Result, err error) {
	ctx, span := telemetry.StartSpan(ctx, "sieve.run",
		attribute.String("sieve.backend", p.backend.String()),
		attribute.Int("sieve.limit", p.params.Limit),
		attribute.Int("sieve.count", p.params.Count),
		attribute.Int("sieve.workers", p.workers),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	log := p.opts.logger.WithFields(map[string]interface{}{
		"backend": p.backend,
		"workers": p.workers,
	})
	timer := utils.NewTimer(string(p.backend), utils.WithClock(p.opts.clock), utils.WithLogger(log))

	buf, err := NewBuffer(p.params.Limit)
	if err != nil {
		return nil, err
	}

	markTimer := timer.Start("mark")
	if ScanRange(p.params.Limit).Empty() {
		log.Debug("no candidates below sqrt(%d), skipping marking", p.params.Limit)
	} else {
		markCtx, markSpan := telemetry.StartSpan(ctx, "sieve.mark")
		err = p.mark(markCtx, buf)
		telemetry.EndSpan(markSpan, err)
		if err != nil {
			return nil, err
		}
	}
	markTimer.Stop()

	view := buf.Freeze()

	collectors := p.params.Collectors
	if collectors == 0 {
		collectors = 1
	}
	collectTimer := timer.Start("collect")
	collectCtx, collectSpan := telemetry.StartSpan(ctx, "sieve.collect", attribute.Int("sieve.collectors", collectors))
	primes, err := CollectInto(collectCtx, view, p.newList(p.params.Count), collectors)
	telemetry.EndSpan(collectSpan, err)
	if err != nil {
		return nil, err
	}
	collectTimer.Stop()

	log.Debug("collected %d primes", len(primes))
	timer.PrintSummary()

	return &model.Result{
		Backend: p.backend,
		Params:  p.params,
		Workers: p.workers,
		Primes:  primes,
		Phases: model.Phases{
			Mark:    timer.GetDuration("mark"),
			Collect: timer.GetDuration("collect"),
		},
		Elapsed: timer.TotalDuration(),
	}, nil
}

func (o options) enterSegment(seg Segment) {
	if o.onSegment != nil {
		o.onSegment(seg)
	}
}

// workerFailed wraps an error raised inside a marker.
func workerFailed(backend model.BackendType, err error) error {
	return apperrors.Wrap(apperrors.CodeWorkerFailed, string(backend)+" marker failed", err)
}
